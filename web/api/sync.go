package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"notesync/models"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
)

// Health handles GET /api/v1/health. No authentication; clients use it to
// check the hub and read its clock.
func Health(ctx rweb.Context) error {
	return writeSuccess(ctx, http.StatusOK, models.NewHealthResponse())
}

// PushNotes handles POST /api/v1/sync/notes.
// Each record is decided independently; the response lists which ids were
// written and why the others were not.
func PushNotes(ctx rweb.Context) error {
	userGUID, ok := requireUser(ctx)
	if !ok {
		return nil
	}

	var req models.PushNotesRequest
	if err := json.Unmarshal(ctx.Request().Body(), &req); err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid JSON body")
	}

	resp, err := models.UpsertNoteMetadataBatch(userGUID, req.Notes)
	if err != nil {
		return writeStoreError(ctx, err, "failed to push notes", "user_guid", userGUID, "count", len(req.Notes))
	}
	return writeSuccess(ctx, http.StatusOK, resp)
}

// PushContent handles PUT /api/v1/sync/notes/:id/content.
// Responds {status:"synced"} or {status:"ignored",reason:"stale"}.
func PushContent(ctx rweb.Context) error {
	userGUID, ok := requireUser(ctx)
	if !ok {
		return nil
	}
	noteGUID := ctx.Request().Param("id")

	var req models.ContentPushRequest
	if err := json.Unmarshal(ctx.Request().Body(), &req); err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid JSON body")
	}

	content, err := models.DecodeContent(req.Type, req.Data)
	if err != nil {
		return writeStoreError(ctx, err, "failed to decode content")
	}

	resp, err := models.UpsertNoteContent(userGUID, noteGUID, content, req.UpdatedAt)
	if err != nil {
		return writeStoreError(ctx, err, "failed to push content", "note_guid", noteGUID)
	}
	return writeSuccess(ctx, http.StatusOK, resp)
}

// GetContent handles GET /api/v1/sync/notes/:id/content.
func GetContent(ctx rweb.Context) error {
	userGUID, ok := requireUser(ctx)
	if !ok {
		return nil
	}
	noteGUID := ctx.Request().Param("id")

	nc, err := models.GetNoteContent(userGUID, noteGUID)
	if err != nil {
		return writeStoreError(ctx, err, "failed to get content", "note_guid", noteGUID)
	}
	out, err := nc.ToOutput()
	if err != nil {
		return writeStoreError(ctx, err, "failed to encode content", "note_guid", noteGUID)
	}
	return writeSuccess(ctx, http.StatusOK, out)
}

// Pull handles GET /api/v1/sync/pull?since=<RFC3339>.
// A missing since pulls everything visible to the caller.
func Pull(ctx rweb.Context) error {
	userGUID, ok := requireUser(ctx)
	if !ok {
		return nil
	}

	var since time.Time
	if sinceStr := ctx.Request().QueryParam("since"); sinceStr != "" {
		parsed, err := time.Parse(time.RFC3339Nano, sinceStr)
		if err != nil {
			return writeError(ctx, http.StatusBadRequest, "invalid since parameter: must be RFC3339 format")
		}
		since = parsed
	}

	resp, err := models.GetNotesChangedSince(userGUID, since)
	if err != nil {
		return writeStoreError(ctx, err, "failed to pull notes", "user_guid", userGUID)
	}

	logger.Debug("Pull served", "user_guid", userGUID, "since", since, "count", len(resp.Notes))
	return writeSuccess(ctx, http.StatusOK, resp)
}

// PushPage handles PUT /api/v1/sync/pages/:notebook/:index.
func PushPage(ctx rweb.Context) error {
	userGUID, ok := requireUser(ctx)
	if !ok {
		return nil
	}
	notebook, index, ok := pageParams(ctx)
	if !ok {
		return nil
	}

	var req models.PagePushRequest
	if err := json.Unmarshal(ctx.Request().Body(), &req); err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid JSON body")
	}

	resp, err := models.UpsertPage(userGUID, notebook, index, req.Layers, req.UpdatedAt)
	if err != nil {
		return writeStoreError(ctx, err, "failed to push page", "notebook", notebook, "index", index)
	}
	return writeSuccess(ctx, http.StatusOK, resp)
}

// GetPage handles GET /api/v1/sync/pages/:notebook/:index.
func GetPage(ctx rweb.Context) error {
	userGUID, ok := requireUser(ctx)
	if !ok {
		return nil
	}
	notebook, index, ok := pageParams(ctx)
	if !ok {
		return nil
	}

	page, err := models.GetPage(userGUID, notebook, index)
	if err != nil {
		return writeStoreError(ctx, err, "failed to get page", "notebook", notebook, "index", index)
	}
	return writeSuccess(ctx, http.StatusOK, page)
}

func pageParams(ctx rweb.Context) (string, int, bool) {
	notebook := ctx.Request().Param("notebook")
	index, err := strconv.Atoi(ctx.Request().Param("index"))
	if err != nil || index < 0 {
		_ = writeError(ctx, http.StatusBadRequest, "invalid page index")
		return "", 0, false
	}
	return notebook, index, true
}
