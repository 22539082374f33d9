package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rutadirecta/boleteria/internal/model"
	"github.com/rutadirecta/boleteria/internal/utils"
)

const testSecret = "test-secret"

func doRequest(t *testing.T, mw echo.MiddlewareFunc, authHeader string, inspect func(echo.Context)) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	handler := mw(func(c echo.Context) error {
		if inspect != nil {
			inspect(c)
		}
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, handler(c))
	return rec
}

func TestJWTAuthInjectsIdentity(t *testing.T) {
	token, err := utils.NewAccessToken(testSecret, 42, model.RoleOperator, "KIOSK", 5)
	require.NoError(t, err)

	var actor uint64
	var role, channel string
	rec := doRequest(t, JWTAuth(testSecret), "Bearer "+token.Token, func(c echo.Context) {
		actor = ActorID(c)
		role = Role(c)
		channel = Channel(c)
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(42), actor)
	assert.Equal(t, model.RoleOperator, role)
	assert.Equal(t, "KIOSK", channel)
}

func TestJWTAuthRejectsBadTokens(t *testing.T) {
	token, err := utils.NewAccessToken("other-secret", 42, model.RoleOperator, "WEB", 5)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not.a.jwt"},
		{"wrong secret", "Bearer " + token.Token},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doRequest(t, JWTAuth(testSecret), tc.header, nil)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestRequireRole(t *testing.T) {
	guard := RequireRole(model.RoleDispatcher)

	e := echo.New()
	run := func(role interface{}) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if role != nil {
			c.Set("role", role)
		}
		handler := guard(func(c echo.Context) error { return c.NoContent(http.StatusOK) })
		require.NoError(t, handler(c))
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, run(model.RoleDispatcher))
	assert.Equal(t, http.StatusForbidden, run(model.RoleOperator))
	assert.Equal(t, http.StatusForbidden, run(nil))
	assert.Equal(t, http.StatusForbidden, run(123))
}

func TestIdentityDefaults(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	assert.Zero(t, ActorID(c))
	assert.Empty(t, Role(c))
	assert.Empty(t, Channel(c))
}
