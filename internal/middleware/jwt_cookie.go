package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/utils"
)

const TokenCookie = "jm_token"

// tokenFrom looks at the Authorization header, then the session cookie.
// Websocket upgrades may also pass ?token= since browsers cannot set headers there.
func tokenFrom(c *fiber.Ctx) string {
	if h := c.Get(fiber.HeaderAuthorization); h != "" {
		if strings.HasPrefix(strings.ToLower(h), "bearer ") {
			return strings.TrimSpace(h[7:])
		}
	}
	if v := c.Cookies(TokenCookie); v != "" {
		return v
	}
	if websocket.IsWebSocketUpgrade(c) {
		return c.Query("token")
	}
	return ""
}

func JWTFromCookie(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := tokenFrom(c)
		if tokenStr == "" {
			return fiber.ErrUnauthorized
		}

		claims, err := utils.ParseJWT(secret, tokenStr)
		if err != nil {
			return fiber.ErrUnauthorized
		}

		c.Locals("claims", claims)
		return c.Next()
	}
}
