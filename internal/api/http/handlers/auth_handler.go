package handlers

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/doorman/internal/api/dto"
	"github.com/spec-kit/doorman/internal/auth"
	"github.com/spec-kit/doorman/internal/service"
	apperrors "github.com/spec-kit/doorman/pkg/util"
)

// AuthHandler exposes doorman's register, login and validate endpoints.
type AuthHandler struct {
	auth *service.AuthService
}

// NewAuthHandler constructs handler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: authService}
}

// Register handles POST /rest/register.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req dto.CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}

	user, err := h.auth.Register(c.UserContext(), req.Username, req.Password)
	if err != nil {
		return err
	}

	return c.Status(http.StatusCreated).JSON(fiber.Map{
		"data": fiber.Map{
			"user": dto.UserResponse{ID: user.ID, Username: user.Username},
		},
	})
}

// Login handles POST /rest/login. The token is returned both in the
// Authorization header and in the body.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.CredentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.Username == "" || req.Password == "" {
		return apperrors.NewValidationError("username and password required", nil)
	}

	token, exp, err := h.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			return apperrors.NewUnauthorized("invalid credentials")
		}
		return err
	}

	c.Set(fiber.HeaderAuthorization, "Bearer "+token)
	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"auth": dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// Validate handles POST /rest/validate. The token may come in the body or as
// a bearer Authorization header.
func (h *AuthHandler) Validate(c *fiber.Ctx) error {
	var req dto.ValidateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, "invalid payload")
		}
	}
	if req.Token == "" {
		if bearer, ok := auth.BearerToken(c.Get(fiber.HeaderAuthorization)); ok {
			req.Token = bearer
		}
	}
	if req.Token == "" {
		return apperrors.NewValidationError("token required", nil)
	}

	username, err := h.auth.Validate(c.UserContext(), req.Token)
	if err != nil {
		return apperrors.WrapUnauthorized("invalid token", err)
	}

	return c.JSON(fiber.Map{"data": fiber.Map{"username": username}})
}

// Me handles GET /rest/me for requests that passed AuthMiddleware.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	username, ok := auth.PrincipalFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("not authenticated")
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"username": username}})
}
