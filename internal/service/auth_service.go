package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/doorman/internal/auth"
	"github.com/spec-kit/doorman/internal/domain"
	"github.com/spec-kit/doorman/internal/observability"
	"github.com/spec-kit/doorman/internal/repository"
	apperrors "github.com/spec-kit/doorman/pkg/util"
)

// ErrInvalidCredentials is returned by Login for unknown users and wrong passwords alike.
var ErrInvalidCredentials = errors.New("invalid credentials")

const maxPasswordBytes = 72 // bcrypt ignores anything longer

// AuthService coordinates registration, login and token validation.
type AuthService struct {
	users   repository.UserRepository
	tokens  *auth.TokenStore
	hasher  *auth.PasswordHasher
	metrics *observability.Metrics
	logger  *zap.Logger

	// dummyHash is compared against when the user does not exist so that
	// login latency does not reveal which usernames are registered.
	dummyHash string
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo repository.UserRepository
	Tokens   *auth.TokenStore
	Hasher   *auth.PasswordHasher
	Metrics  *observability.Metrics
	Logger   *zap.Logger
}

// NewAuthService builds the service.
func NewAuthService(deps AuthDependencies) (*AuthService, error) {
	if deps.UserRepo == nil || deps.Tokens == nil || deps.Hasher == nil {
		return nil, errors.New("auth service requires a user repository, token store and hasher")
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	dummy, err := deps.Hasher.Hash("doorman-timing-equalizer")
	if err != nil {
		return nil, err
	}

	return &AuthService{
		users:     deps.UserRepo,
		tokens:    deps.Tokens,
		hasher:    deps.Hasher,
		metrics:   deps.Metrics,
		logger:    logger,
		dummyHash: dummy,
	}, nil
}

// Register creates a new account.
func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, apperrors.NewValidationError("username and password required", nil)
	}
	if !utf8.ValidString(username) {
		return nil, apperrors.NewValidationError("username must be valid UTF-8", nil)
	}
	if len(username) > auth.MaxPrincipalBytes {
		return nil, apperrors.NewValidationError("username too long", map[string]any{"max_bytes": auth.MaxPrincipalBytes})
	}
	if len(password) > maxPasswordBytes {
		return nil, apperrors.NewValidationError("password too long", map[string]any{"max_bytes": maxPasswordBytes})
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &domain.User{Username: username, PasswordHash: hash}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return nil, apperrors.NewConflict("username already registered", nil)
		}
		return nil, err
	}

	s.logger.Info("user registered", zap.String("user_id", user.ID))
	return user, nil
}

// Login checks credentials and issues a token for the username.
func (s *AuthService) Login(ctx context.Context, username, password string) (string, time.Time, error) {
	username = strings.TrimSpace(username)
	if !utf8.ValidString(username) {
		// never stored, see Register
		_ = s.hasher.Compare(s.dummyHash, password)
		return "", time.Time{}, ErrInvalidCredentials
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return "", time.Time{}, err
		}
		_ = s.hasher.Compare(s.dummyHash, password)
		return "", time.Time{}, ErrInvalidCredentials
	}
	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return "", time.Time{}, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.GenerateWithExpiry(user.Username)
	if err != nil {
		return "", time.Time{}, err
	}
	s.metrics.RecordToken(observability.TokenIssued)
	return token, expiresAt, nil
}

// Validate returns the username a token was issued to. Failures match
// auth.ErrTokenInvalid; the cause is only logged.
func (s *AuthService) Validate(_ context.Context, token string) (string, error) {
	username, err := s.tokens.Parse(token)
	if err != nil {
		s.metrics.RecordToken(observability.TokenRejected)
		s.logger.Debug("token rejected", zap.Error(errors.Unwrap(err)))
		return "", err
	}
	s.metrics.RecordToken(observability.TokenAccepted)
	return username, nil
}

// TokenStore exposes the underlying store for middleware usage.
func (s *AuthService) TokenStore() *auth.TokenStore {
	return s.tokens
}
