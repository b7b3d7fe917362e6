package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Windi-Fikriyansyah/inspection_be/internal/models"
	"github.com/Windi-Fikriyansyah/inspection_be/internal/utils"
)

const secret = "test-secret"

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(RequestLogger())
	g := app.Group("/", JWTFromCookie(secret), AttachJWTLocals())
	g.Get("/me", func(c *fiber.Ctx) error {
		p, _ := PrincipalFrom(c)
		return c.JSON(p)
	})
	g.Get("/admin", RequireRoles(models.RoleAdmin), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func token(t *testing.T, uid, role string) string {
	t.Helper()
	tok, err := utils.SignJWT(secret, uid, role, 10)
	require.NoError(t, err)
	return tok
}

func TestJWTSources(t *testing.T) {
	app := newApp()
	uid := uuid.NewString()

	req := httptest.NewRequest("GET", "/me", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, uid, "provider"))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("GET", "/me", nil)
	req.AddCookie(&http.Cookie{Name: TokenCookie, Value: token(t, uid, "client")})
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	req = httptest.NewRequest("GET", "/me?token="+token(t, uid, "client"), nil)
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, "query token only for websocket upgrades")
}

func TestJWTRejects(t *testing.T) {
	app := newApp()

	cases := map[string]struct {
		header string
		want   int
	}{
		"missing":       {"", fiber.StatusUnauthorized},
		"garbage":       {"Bearer nope", fiber.StatusUnauthorized},
		"non-uuid user": {"Bearer " + token(t, "42", "client"), fiber.StatusUnauthorized},
		"unknown role":  {"Bearer " + token(t, uuid.NewString(), "freelancer"), fiber.StatusForbidden},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestRequireRoles(t *testing.T) {
	app := newApp()

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, uuid.NewString(), "inspector"))
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)

	req = httptest.NewRequest("GET", "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, uuid.NewString(), "ADMIN"))
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
