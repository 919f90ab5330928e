package web

import (
	"notesync/models"
	"notesync/web/api"
	"notesync/web/pages"

	"github.com/rohanthewiz/rweb"
)

// setupRoutes configures all hub routes
func setupRoutes(s *rweb.Server) {
	s.Get("/", func(ctx rweb.Context) error {
		ctx.Response().SetHeader("Content-Type", "text/html; charset=utf-8")
		status, err := models.GetSyncStatus()
		return ctx.WriteHTML(pages.NewStatusPage(status, err).Render())
	})

	s.Get("/api/v1/health", api.Health)

	// Auth
	s.Post("/api/v1/auth/register", api.Register)
	s.Post("/api/v1/auth/login", api.Login)
	s.Get("/api/v1/auth/me", api.GetCurrentUser)
	s.Post("/api/v1/auth/refresh", api.RefreshToken)

	// Sync protocol
	s.Post("/api/v1/sync/notes", api.PushNotes)
	s.Put("/api/v1/sync/notes/:id/content", api.PushContent)
	s.Get("/api/v1/sync/notes/:id/content", api.GetContent)
	s.Get("/api/v1/sync/pull", api.Pull)
	s.Put("/api/v1/sync/pages/:notebook/:index", api.PushPage)
	s.Get("/api/v1/sync/pages/:notebook/:index", api.GetPage)

	// Note lifecycle and sharing, outside the sync loop
	s.Post("/api/v1/notes/:id/trash", api.TrashNote)
	s.Post("/api/v1/notes/:id/restore", api.RestoreNote)
	s.Delete("/api/v1/notes/:id", api.DeleteNote)
	s.Get("/api/v1/notes/:id/shares", api.ListShares)
	s.Post("/api/v1/notes/:id/shares", api.GrantShare)
	s.Delete("/api/v1/notes/:id/shares/:grantee", api.RevokeShare)
}
