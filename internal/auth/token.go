package auth

import (
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// DefaultSecret is the well-known development signing secret. Anyone who
// knows it can mint valid tokens, so it is only used when a caller opts in
// through TokenStoreConfig.AllowDefaultSecret.
const DefaultSecret = "someSecretKey"

// MaxPrincipalBytes bounds the subject embedded in a token.
const MaxPrincipalBytes = 1024

var signingMethod = jwt.SigningMethodHS512

var (
	// ErrTokenInvalid is the single failure category returned by Parse.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrEmptySecret is returned when no secret is configured and the default was not requested.
	ErrEmptySecret = errors.New("signing secret is empty")
	// ErrInvalidExpiration is returned for a non-positive expiration.
	ErrInvalidExpiration = errors.New("token expiration must be positive")
	// ErrInvalidPrincipal is returned by Generate for principals that cannot be embedded as-is.
	ErrInvalidPrincipal = errors.New("invalid principal")
)

// TokenError wraps the reason a token was rejected. It matches ErrTokenInvalid
// through errors.Is and unwraps to the underlying cause for diagnostics.
type TokenError struct {
	cause error
}

func (e *TokenError) Error() string {
	if e.cause == nil {
		return ErrTokenInvalid.Error()
	}
	return fmt.Sprintf("%s: %v", ErrTokenInvalid, e.cause)
}

// Is reports whether target is ErrTokenInvalid.
func (e *TokenError) Is(target error) bool {
	return target == ErrTokenInvalid
}

func (e *TokenError) Unwrap() error {
	return e.cause
}

// TokenStoreConfig configures a TokenStore.
type TokenStoreConfig struct {
	Secret             string
	ExpirationSeconds  int
	AllowDefaultSecret bool
	Logger             *zap.Logger
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// TokenStore issues and verifies HS512 signed JWTs carrying a subject and an
// expiration. It holds no per-token state and is safe for concurrent use.
type TokenStore struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

// NewTokenStore validates cfg and builds a store.
func NewTokenStore(cfg TokenStoreConfig) (*TokenStore, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	secret := cfg.Secret
	if secret == "" {
		if !cfg.AllowDefaultSecret {
			return nil, ErrEmptySecret
		}
		logger.Warn("using built-in default signing secret; tokens can be forged by anyone who knows it")
		secret = DefaultSecret
	}
	if cfg.ExpirationSeconds <= 0 {
		return nil, fmt.Errorf("%w: got %d seconds", ErrInvalidExpiration, cfg.ExpirationSeconds)
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &TokenStore{
		secret: []byte(secret),
		ttl:    time.Duration(cfg.ExpirationSeconds) * time.Second,
		now:    now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{signingMethod.Alg()}),
			jwt.WithExpirationRequired(),
			jwt.WithStrictDecoding(),
			jwt.WithTimeFunc(now),
		),
	}, nil
}

// Expiration returns the lifetime given to new tokens.
func (s *TokenStore) Expiration() time.Duration {
	return s.ttl
}

// Generate signs a token for principal that expires after the configured lifetime.
func (s *TokenStore) Generate(principal string) (string, error) {
	token, _, err := s.GenerateWithExpiry(principal)
	return token, err
}

// GenerateWithExpiry is Generate that also reports the embedded expiration.
// The exp claim has whole-second precision and is truncated, so a token can
// expire up to one second before now plus Expiration, never after it.
func (s *TokenStore) GenerateWithExpiry(principal string) (string, time.Time, error) {
	if !utf8.ValidString(principal) {
		return "", time.Time{}, fmt.Errorf("%w: not valid UTF-8", ErrInvalidPrincipal)
	}
	if len(principal) > MaxPrincipalBytes {
		return "", time.Time{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrInvalidPrincipal, len(principal), MaxPrincipalBytes)
	}

	expiresAt := jwt.NewNumericDate(s.now().Add(s.ttl))
	claims := jwt.RegisteredClaims{
		Subject:   principal,
		ExpiresAt: expiresAt,
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt.Time, nil
}

// Parse verifies tokenStr and returns its subject. Any failure, including
// expiry, yields an error matching ErrTokenInvalid.
func (s *TokenStore) Parse(tokenStr string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	parsed, err := s.parser.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method != signingMethod {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", &TokenError{cause: err}
	}
	if !parsed.Valid {
		return "", &TokenError{cause: jwt.ErrTokenInvalidClaims}
	}
	return claims.Subject, nil
}
