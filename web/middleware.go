package web

import (
	"net/http"
	"strings"
	"time"

	"notesync/models"

	"github.com/rohanthewiz/logger"
	"github.com/rohanthewiz/rweb"
)

// CorsMiddleware lets browser-based clients reach the sync API.
func CorsMiddleware(c rweb.Context) error {
	c.Response().SetHeader("Access-Control-Allow-Origin", "*")
	c.Response().SetHeader("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
	c.Response().SetHeader("Access-Control-Allow-Headers", "Content-Type, Authorization")

	if c.Request().Method() == "OPTIONS" {
		c.SetStatus(http.StatusOK)
		return nil
	}
	return c.Next()
}

// JWTAuthMiddleware resolves the caller identity from a Bearer token and
// stores it as user_guid. Requests without a valid token continue with an
// empty identity; handlers that need one answer 401.
func JWTAuthMiddleware(c rweb.Context) error {
	c.Set("user_guid", "")

	authHeader := c.Request().Header("Authorization")
	tokenString, found := strings.CutPrefix(authHeader, "Bearer ")
	if !found || tokenString == "" {
		return c.Next()
	}

	claims, err := models.ValidateToken(tokenString)
	if err != nil {
		// Invalid tokens are common after a secret rotation; not worth an error log
		logger.Debug("Rejected bearer token", "path", c.Request().Path())
		return c.Next()
	}

	c.Set("user_guid", claims.UserGUID)
	c.Set("username", claims.Username)
	return c.Next()
}

// LoggingMiddleware logs each request with its duration at debug level.
func LoggingMiddleware(c rweb.Context) error {
	start := time.Now()
	err := c.Next()

	logger.Debug("Request completed",
		"method", c.Request().Method(),
		"path", c.Request().Path(),
		"duration", time.Since(start).String(),
		"error", err,
	)
	return err
}
