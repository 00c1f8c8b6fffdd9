package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/doorman/pkg/util"
)

const principalKey = "auth_principal"

// TokenParser is the part of TokenStore the middleware needs.
type TokenParser interface {
	Parse(token string) (string, error)
}

// AuthMiddleware validates bearer tokens and stores the principal on the request.
type AuthMiddleware struct {
	tokens TokenParser
}

// NewAuthMiddleware constructs middleware.
func NewAuthMiddleware(tokens TokenParser) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	principal, err := Authenticate(m.tokens, c.Get(fiber.HeaderAuthorization))
	if err != nil {
		return err
	}
	SetPrincipal(c, principal)
	return c.Next()
}

// Authenticate parses an Authorization header value. Failures are returned as
// UNAUTHORIZED domain errors carrying the parse cause.
func Authenticate(tokens TokenParser, authHeader string) (string, error) {
	if authHeader == "" {
		return "", apperrors.NewUnauthorized("missing authorization header")
	}

	token, ok := BearerToken(authHeader)
	if !ok {
		return "", apperrors.NewUnauthorized("invalid authorization header")
	}

	principal, err := tokens.Parse(token)
	if err != nil {
		return "", apperrors.WrapUnauthorized("invalid token", err)
	}
	return principal, nil
}

// BearerToken extracts the token from a "Bearer <token>" header value.
func BearerToken(authHeader string) (string, bool) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// SetPrincipal records the authenticated principal on the request.
func SetPrincipal(c *fiber.Ctx, principal string) {
	c.Locals(principalKey, principal)
}

// PrincipalFromContext retrieves the authenticated principal.
func PrincipalFromContext(c *fiber.Ctx) (string, bool) {
	principal, ok := c.Locals(principalKey).(string)
	return principal, ok
}
