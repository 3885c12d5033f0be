package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"microblog/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	Issuer   = "microblog-api"
	Audience = "microblog-client"
)

// ErrMissingSigningKey is returned when the token service is built without a key.
var ErrMissingSigningKey = errors.New("session signing key is not configured")

// Claims is the verified content of a session token.
type Claims struct {
	UserID    uint
	ID        string
	ExpiresAt time.Time
}

// TokenService issues and verifies HS256-signed session tokens.
type TokenService struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewTokenService builds a token service signing with key. Tokens expire after ttl.
func NewTokenService(key string, ttl time.Duration) (*TokenService, error) {
	if key == "" {
		return nil, ErrMissingSigningKey
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive, got %s", ttl)
	}
	return &TokenService{key: []byte(key), ttl: ttl, now: time.Now}, nil
}

// TTL is the lifetime of issued tokens.
func (s *TokenService) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token naming userID.
func (s *TokenService) Issue(userID uint) (string, time.Time, error) {
	if userID == 0 {
		return "", time.Time{}, errors.New("cannot issue a session for user 0")
	}
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(userID), 10),
		Issuer:    Issuer,
		Audience:  jwt.ClaimStrings{Audience},
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ID:        uuid.NewString(),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// Verify checks the signature, issuer, audience and expiry of token and
// returns its claims. Every failure is an INVALID_SESSION AppError.
func (s *TokenService) Verify(token string) (*Claims, error) {
	if token == "" {
		return nil, models.NewInvalidSessionError(errors.New("empty token"))
	}

	var registered jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &registered, func(*jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithAudience(Audience),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, models.NewInvalidSessionError(err)
	}

	userID, err := strconv.ParseUint(registered.Subject, 10, 64)
	if err != nil || userID == 0 || userID > uint64(^uint(0)) {
		return nil, models.NewInvalidSessionError(fmt.Errorf("invalid subject %q", registered.Subject))
	}

	return &Claims{
		UserID:    uint(userID),
		ID:        registered.ID,
		ExpiresAt: registered.ExpiresAt.Time,
	}, nil
}
