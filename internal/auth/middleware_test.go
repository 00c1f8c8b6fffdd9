package auth

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/spec-kit/doorman/pkg/util"
)

func newProtectedApp(t *testing.T, store *TokenStore) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).SendString(de.Message)
		},
	})
	app.Get("/me", NewAuthMiddleware(store).Handle, func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok {
			return fiber.ErrInternalServerError
		}
		return c.SendString(principal)
	})
	return app
}

func TestAuthMiddleware(t *testing.T) {
	store := newStore(t, "middleware-secret", 60, nil)
	other := newStore(t, "other-secret", 60, nil)

	valid, err := store.Generate("alice")
	require.NoError(t, err)
	foreign, err := other.Generate("alice")
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantBody   string
	}{
		{name: "valid bearer", header: "Bearer " + valid, wantStatus: http.StatusOK, wantBody: "alice"},
		{name: "case-insensitive scheme", header: "bearer " + valid, wantStatus: http.StatusOK, wantBody: "alice"},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized, wantBody: "missing authorization header"},
		{name: "wrong scheme", header: "Basic " + valid, wantStatus: http.StatusUnauthorized, wantBody: "invalid authorization header"},
		{name: "empty token", header: "Bearer ", wantStatus: http.StatusUnauthorized, wantBody: "invalid authorization header"},
		{name: "foreign token", header: "Bearer " + foreign, wantStatus: http.StatusUnauthorized, wantBody: "invalid token"},
		{name: "garbage", header: "Bearer abc.def.ghi", wantStatus: http.StatusUnauthorized, wantBody: "invalid token"},
	}

	app := newProtectedApp(t, store)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Equal(t, tt.wantBody, string(body))
		})
	}
}

func TestAuthenticateKeepsCause(t *testing.T) {
	store := newStore(t, "middleware-secret", 60, nil)

	_, err := Authenticate(store, "Bearer not-a-token")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	var de *apperrors.DomainError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "UNAUTHORIZED", de.Code)
	assert.Equal(t, "invalid token", de.Message)
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer  abc ")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = BearerToken("abc")
	assert.False(t, ok)
}
