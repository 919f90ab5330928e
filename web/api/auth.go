package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"notesync/models"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
	"github.com/rohanthewiz/serr"
)

// AuthResponse contains the user and token returned on successful authentication
type AuthResponse struct {
	User  models.UserOutput `json:"user"`
	Token string            `json:"token"`
}

// Register creates a new user account and returns a JWT token.
// POST /api/v1/auth/register
//
// Errors:
//   - 400: Invalid input (missing/weak password, invalid username)
//   - 409: Username already exists
func Register(ctx rweb.Context) error {
	var input models.UserCredentials
	if err := json.Unmarshal(ctx.Request().Body(), &input); err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if input.Username == "" {
		return writeError(ctx, http.StatusBadRequest, "username is required")
	}
	if input.Password == "" {
		return writeError(ctx, http.StatusBadRequest, "password is required")
	}

	user, err := models.CreateUser(input)
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "already exists") {
			return writeError(ctx, http.StatusConflict, "username already exists")
		}
		if strings.Contains(errMsg, "must be") || strings.Contains(errMsg, "can only") {
			return writeError(ctx, http.StatusBadRequest, errMsg)
		}
		logger.LogErr(serr.Wrap(err, "failed to create user"), "username", input.Username)
		return writeError(ctx, http.StatusInternalServerError, "failed to create user")
	}

	token, err := models.GenerateToken(user)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to generate token"), "user_id", user.ID)
		return writeError(ctx, http.StatusInternalServerError, "failed to generate token")
	}

	logger.Info("User registered", "username", user.Username)
	return writeSuccess(ctx, http.StatusCreated, AuthResponse{User: user.ToOutput(), Token: token})
}

// Login authenticates a user and returns a JWT token.
// POST /api/v1/auth/login
//
// Errors:
//   - 400: Missing username or password
//   - 401: Invalid credentials
//   - 403: Account is disabled
func Login(ctx rweb.Context) error {
	var input models.UserCredentials
	if err := json.Unmarshal(ctx.Request().Body(), &input); err != nil {
		return writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if input.Username == "" || input.Password == "" {
		return writeError(ctx, http.StatusBadRequest, "username and password are required")
	}

	user, err := models.AuthenticateUser(input)
	if err != nil {
		if strings.Contains(err.Error(), "disabled") {
			return writeError(ctx, http.StatusForbidden, "account is disabled")
		}
		logger.LogErr(serr.Wrap(err, "authentication error"), "username", input.Username)
		return writeError(ctx, http.StatusInternalServerError, "authentication error")
	}
	if user == nil {
		// Don't reveal whether the username exists
		return writeError(ctx, http.StatusUnauthorized, "invalid credentials")
	}

	token, err := models.GenerateToken(user)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to generate token"), "user_id", user.ID)
		return writeError(ctx, http.StatusInternalServerError, "failed to generate token")
	}

	return writeSuccess(ctx, http.StatusOK, AuthResponse{User: user.ToOutput(), Token: token})
}

// GetCurrentUser returns the authenticated user's profile.
// GET /api/v1/auth/me
func GetCurrentUser(ctx rweb.Context) error {
	userGUID, ok := requireUser(ctx)
	if !ok {
		return nil
	}

	user, err := models.GetUserByGUID(userGUID)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to get user"), "user_guid", userGUID)
		return writeError(ctx, http.StatusInternalServerError, "failed to get user")
	}
	if user == nil {
		return writeError(ctx, http.StatusUnauthorized, "user not found")
	}

	return writeSuccess(ctx, http.StatusOK, user.ToOutput())
}

// RefreshToken issues a fresh token for a still-active user.
// POST /api/v1/auth/refresh
func RefreshToken(ctx rweb.Context) error {
	userGUID, ok := requireUser(ctx)
	if !ok {
		return nil
	}

	user, err := models.GetUserByGUID(userGUID)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to get user"), "user_guid", userGUID)
		return writeError(ctx, http.StatusInternalServerError, "failed to get user")
	}
	if user == nil {
		return writeError(ctx, http.StatusUnauthorized, "user not found")
	}
	if !user.IsActive {
		return writeError(ctx, http.StatusForbidden, "account is disabled")
	}

	token, err := models.GenerateToken(user)
	if err != nil {
		logger.LogErr(serr.Wrap(err, "failed to generate token"), "user_id", user.ID)
		return writeError(ctx, http.StatusInternalServerError, "failed to generate token")
	}

	return writeSuccess(ctx, http.StatusOK, map[string]string{"token": token})
}

// GetCurrentUserGUID extracts the user GUID set by JWTAuthMiddleware.
// Returns empty string if not authenticated.
func GetCurrentUserGUID(ctx rweb.Context) string {
	guid, _ := ctx.Get("user_guid").(string)
	return guid
}
