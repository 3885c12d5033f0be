package auth

import (
	"context"
	"time"

	"microblog/internal/middleware"
	"microblog/internal/models"
)

// RevocationStore records tokens that were ended before their expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Guard resolves presented session tokens to user ids.
type Guard struct {
	tokens      *TokenService
	revocations RevocationStore
}

// NewGuard builds a guard. revocations may be nil.
func NewGuard(tokens *TokenService, revocations RevocationStore) *Guard {
	return &Guard{tokens: tokens, revocations: revocations}
}

// RequireUser returns the user id named by token, or an UNAUTHENTICATED error
// when the token is absent, invalid or revoked.
func (g *Guard) RequireUser(ctx context.Context, token string) (uint, error) {
	if token == "" {
		return 0, models.NewUnauthenticatedError("Authentication required")
	}
	claims, err := g.tokens.Verify(token)
	if err != nil {
		return 0, &models.AppError{
			Code:    models.CodeUnauthenticated,
			Message: "Invalid or expired session",
			Err:     err,
		}
	}
	if g.isRevoked(ctx, claims.ID) {
		return 0, models.NewUnauthenticatedError("Session has been revoked")
	}
	return claims.UserID, nil
}

// OptionalUser is RequireUser with every failure mapped to "anonymous".
func (g *Guard) OptionalUser(ctx context.Context, token string) (uint, bool) {
	userID, err := g.RequireUser(ctx, token)
	if err != nil {
		return 0, false
	}
	return userID, true
}

// Revoke ends token before its expiry. Tokens that do not verify are ignored.
func (g *Guard) Revoke(ctx context.Context, token string) error {
	if g.revocations == nil || token == "" {
		return nil
	}
	claims, err := g.tokens.Verify(token)
	if err != nil || claims.ID == "" {
		return nil
	}
	return g.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt)
}

// isRevoked fails open: a store outage keeps sessions alive.
func (g *Guard) isRevoked(ctx context.Context, tokenID string) bool {
	if g.revocations == nil || tokenID == "" {
		return false
	}
	revoked, err := g.revocations.IsRevoked(ctx, tokenID)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "revocation check failed", "error", err)
		return false
	}
	return revoked
}
