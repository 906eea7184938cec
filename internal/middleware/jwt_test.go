package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func protectedApp() *fiber.App {
	app := fiber.New()
	app.Use(JWTProtected(testSecret))
	app.Get("/me", func(c *fiber.Ctx) error {
		userID, _ := c.Locals("user_id").(string)
		role, _ := c.Locals("user_role").(string)
		return c.JSON(fiber.Map{"user_id": userID, "role": role})
	})
	return app
}

func TestJWTProtectedAcceptsValidToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub":  "mentor@school.test",
		"role": "Mentor",
		"exp":  time.Now().Add(time.Hour).Unix(),
	}, testSecret)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "bearer "+token)

	resp, err := protectedApp().Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestJWTProtectedAcceptsQueryToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{"sub": "admin-1", "role": "admin"}, testSecret)

	req := httptest.NewRequest(http.MethodGet, "/me?access_token="+token, nil)
	resp, err := protectedApp().Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestJWTProtectedRejects(t *testing.T) {
	expired := signToken(t, jwt.MapClaims{"sub": "a", "exp": time.Now().Add(-time.Minute).Unix()}, testSecret)
	forged := signToken(t, jwt.MapClaims{"sub": "a"}, "other-secret")

	cases := map[string]string{
		"missing":   "",
		"scheme":    "Basic abc",
		"empty":     "Bearer ",
		"expired":   "Bearer " + expired,
		"signature": "Bearer " + forged,
	}

	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			resp, err := protectedApp().Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}

func TestClaimExtraction(t *testing.T) {
	require.Equal(t, "42", extractUserIDFromClaims(jwt.MapClaims{"user_id": float64(42)}))
	require.Equal(t, "staff-1", extractUserIDFromClaims(jwt.MapClaims{"sub": " staff-1 "}))
	require.Equal(t, "admin", extractUserRoleFromClaims(jwt.MapClaims{"roles": []interface{}{"", "Admin"}}))
	require.Empty(t, extractUserRoleFromClaims(jwt.MapClaims{"role": 7}))
}
