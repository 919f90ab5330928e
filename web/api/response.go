package api

import (
	"errors"
	"net/http"

	"notesync/models"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"
)

// APIResponse provides a consistent JSON response structure for all API endpoints.
// Success responses include data, error responses include an error message.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// writeSuccess sends a successful JSON response with data.
func writeSuccess(ctx rweb.Context, status int, data interface{}) error {
	ctx.SetStatus(status)
	return ctx.WriteJSON(APIResponse{Success: true, Data: data})
}

// writeError sends an error JSON response.
func writeError(ctx rweb.Context, status int, message string) error {
	ctx.SetStatus(status)
	return ctx.WriteJSON(APIResponse{Success: false, Error: message})
}

// writeStoreError maps a store error onto the status code taxonomy:
// 400 malformed, 403 forbidden, 404 not found, 500 anything else.
func writeStoreError(ctx rweb.Context, err error, msg string, kv ...any) error {
	switch {
	case models.IsMalformed(err):
		return writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrForbidden):
		return writeError(ctx, http.StatusForbidden, "permission denied")
	case errors.Is(err, models.ErrNotFound):
		return writeError(ctx, http.StatusNotFound, "not found")
	}
	logger.LogErr(serr.Wrap(err, msg), kv...)
	return writeError(ctx, http.StatusInternalServerError, msg)
}

// requireUser returns the caller's GUID, writing a 401 when there is none.
func requireUser(ctx rweb.Context) (string, bool) {
	userGUID := GetCurrentUserGUID(ctx)
	if userGUID == "" {
		_ = writeError(ctx, http.StatusUnauthorized, "authentication required")
		return "", false
	}
	return userGUID, true
}
