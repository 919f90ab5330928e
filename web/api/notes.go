package api

import (
	"encoding/json"
	"net/http"

	"notesync/models"

	"github.com/rohanthewiz/rweb"
)

// TrashNote handles POST /api/v1/notes/:id/trash. Idempotent.
func TrashNote(ctx rweb.Context) error {
	userGUID, ok := requireUser(ctx)
	if !ok {
		return nil
	}
	id := ctx.Request().Param("id")

	meta, err := models.SoftDeleteNote(userGUID, id)
	if err != nil {
		return writeStoreError(ctx, err, "failed to trash note", "note_guid", id)
	}
	return writeSuccess(ctx, http.StatusOK, meta)
}

// RestoreNote handles POST /api/v1/notes/:id/restore. Idempotent.
func RestoreNote(ctx rweb.Context) error {
	userGUID, ok := requireUser(ctx)
	if !ok {
		return nil
	}
	id := ctx.Request().Param("id")

	meta, err := models.RestoreNote(userGUID, id)
	if err != nil {
		return writeStoreError(ctx, err, "failed to restore note", "note_guid", id)
	}
	return writeSuccess(ctx, http.StatusOK, meta)
}

// DeleteNote handles DELETE /api/v1/notes/:id.
// Permanently removes the note's content, pages, shares and metadata.
func DeleteNote(ctx rweb.Context) error {
	userGUID, ok := requireUser(ctx)
	if !ok {
		return nil
	}
	id := ctx.Request().Param("id")

	if err := models.PermanentlyDeleteNote(userGUID, id); err != nil {
		return writeStoreError(ctx, err, "failed to delete note", "note_guid", id)
	}
	return writeSuccess(ctx, http.StatusOK, map[string]interface{}{"deleted": true, "id": id})
}

// ListShares handles GET /api/v1/notes/:id/shares.
func ListShares(ctx rweb.Context) error {
	userGUID, ok := requireUser(ctx)
	if !ok {
		return nil
	}
	id := ctx.Request().Param("id")

	shares, err := models.ListShares(userGUID, id)
	if err != nil {
		return writeStoreError(ctx, err, "failed to list shares", "note_guid", id)
	}
	return writeSuccess(ctx, http.StatusOK, shares)
}

// GrantShare handles POST /api/v1/notes/:id/shares with
// {grantee_guid, permission}. Re-granting replaces the permission.
func GrantShare(ctx rweb.Context) error {
	userGUID, ok := requireUser(ctx)
	if !ok {
		return nil
	}
	id := ctx.Request().Param("id")

	var input models.GrantAccessInput
	if err := json.Unmarshal(ctx.Request().Body(), &input); err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid JSON body")
	}

	share, err := models.GrantAccess(userGUID, id, input)
	if err != nil {
		return writeStoreError(ctx, err, "failed to share note", "note_guid", id)
	}
	return writeSuccess(ctx, http.StatusOK, share)
}

// RevokeShare handles DELETE /api/v1/notes/:id/shares/:grantee.
func RevokeShare(ctx rweb.Context) error {
	userGUID, ok := requireUser(ctx)
	if !ok {
		return nil
	}
	id := ctx.Request().Param("id")
	grantee := ctx.Request().Param("grantee")

	if err := models.RevokeAccess(userGUID, id, grantee); err != nil {
		return writeStoreError(ctx, err, "failed to revoke share", "note_guid", id)
	}
	return writeSuccess(ctx, http.StatusOK, map[string]interface{}{"revoked": true, "grantee_guid": grantee})
}
