// Package middleware holds fiber middleware for the session host API.
package middleware

import (
	"crypto/subtle"
	"os"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/loocor/codmate/internal/logger"
	"github.com/loocor/codmate/internal/models"
)

// AuthMiddleware guards the API with a shared token. The server binds to
// loopback by default; the token matters when the host is exposed beyond
// that, or when other local users must be kept out.
type AuthMiddleware struct {
	token []byte
}

// NewAuthMiddleware reads CODMATE_AUTH_TOKEN; when unset, auth is disabled
// and the returned middleware passes everything through.
func NewAuthMiddleware() *AuthMiddleware {
	token := os.Getenv("CODMATE_AUTH_TOKEN")
	if token == "" {
		return nil
	}
	return &AuthMiddleware{token: []byte(token)}
}

// RequireAuth checks the request token before letting it through
func (am *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	if am == nil {
		return c.Next()
	}

	if c.Path() == "/health" {
		return c.Next()
	}

	token := am.extractToken(c)
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{
			Error: "authentication required",
		})
	}

	if subtle.ConstantTimeCompare([]byte(token), am.token) != 1 {
		logger.Debugf("Rejected request with invalid token for %s", c.Path())
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{
			Error: "invalid token",
		})
	}

	return c.Next()
}

// extractToken pulls the token from the Authorization header or, for
// WebSocket upgrades where headers are awkward for browser clients, from
// the token query parameter.
func (am *AuthMiddleware) extractToken(c *fiber.Ctx) string {
	authHeader := c.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
	}

	return c.Query("token")
}
