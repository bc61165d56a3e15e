package auth

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/parts-support/internal/domain"
	apperrors "github.com/spec-kit/parts-support/pkg/util"
)

// RequireRole admits callers holding role and fixes it as the acting role
// for the rest of the chain.
func RequireRole(role domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		if !principal.User.Roles.Has(role) {
			return apperrors.NewForbidden(string(role) + " role required")
		}
		c.Locals(actingRoleKey, role)
		return c.Next()
	}
}

// RequireAuthenticated ensures a principal was loaded.
func RequireAuthenticated() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return apperrors.NewUnauthorized("authentication required")
		}
		return c.Next()
	}
}
