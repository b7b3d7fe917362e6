package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/models"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/utils"
)

const principalKey = "principal"

// AttachJWTLocals turns verified claims into the request Principal.
func AttachJWTLocals() fiber.Handler {
	return func(c *fiber.Ctx) error {
		claims, ok := c.Locals("claims").(*utils.Claims)
		if !ok || claims == nil {
			return fiber.ErrUnauthorized
		}

		uid, err := uuid.Parse(strings.TrimSpace(claims.UserID))
		if err != nil {
			return fiber.ErrUnauthorized
		}
		role, ok := models.ParseRole(claims.Role)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "forbidden: unknown role")
		}

		c.Locals(principalKey, models.Principal{ID: uid, Role: role})
		c.Locals("userId", uid.String())
		c.Locals("role", string(role))

		return c.Next()
	}
}

func PrincipalFrom(c *fiber.Ctx) (models.Principal, bool) {
	p, ok := c.Locals(principalKey).(models.Principal)
	return p, ok
}
