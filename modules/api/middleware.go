package api

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/mneiter/nuro/domain/user"
	"github.com/mneiter/nuro/modules/auth"
)

// UserContextKey is the Fiber locals key holding the authenticated claims.
const UserContextKey = "user"

// AuthMiddleware validates the bearer token and stores the resolved
// owner in the request context.
func AuthMiddleware(port auth.Port) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if header == "" {
			return unauthorized(c, "Authorization header is required")
		}
		if !strings.HasPrefix(header, "Bearer ") {
			return unauthorized(c, "Invalid authorization header format. Use: Bearer <token>")
		}
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" {
			return unauthorized(c, "Token is required")
		}

		claims, err := port.ValidateToken(c.UserContext(), token)
		if err != nil {
			return unauthorized(c, "Invalid or expired token")
		}

		c.Locals(UserContextKey, claims)
		return c.Next()
	}
}

// currentUser returns the claims stored by AuthMiddleware, or nil.
func currentUser(c *fiber.Ctx) *user.Claims {
	claims, _ := c.Locals(UserContextKey).(*user.Claims)
	return claims
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{
		Error:   "unauthorized",
		Message: message,
	})
}
