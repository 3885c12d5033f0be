package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"microblog/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	err     error
}

func newMemoryRevocations() *memoryRevocations {
	return &memoryRevocations{revoked: make(map[string]time.Time)}
}

func (m *memoryRevocations) Revoke(_ context.Context, tokenID string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[tokenID] = until
	return nil
}

func (m *memoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.revoked[tokenID]
	return ok, nil
}

func TestGuardRequireUser(t *testing.T) {
	t.Parallel()
	tokens := newTestTokens(t)
	guard := NewGuard(tokens, nil)
	ctx := context.Background()

	token, _, err := tokens.Issue(9)
	require.NoError(t, err)

	userID, err := guard.RequireUser(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, uint(9), userID)

	_, err = guard.RequireUser(ctx, "")
	assert.True(t, models.IsCode(err, models.CodeUnauthenticated))

	_, err = guard.RequireUser(ctx, token+"x")
	assert.True(t, models.IsCode(err, models.CodeUnauthenticated))
}

func TestGuardOptionalUser(t *testing.T) {
	t.Parallel()
	tokens := newTestTokens(t)
	guard := NewGuard(tokens, nil)
	ctx := context.Background()

	token, _, err := tokens.Issue(3)
	require.NoError(t, err)

	userID, ok := guard.OptionalUser(ctx, token)
	assert.True(t, ok)
	assert.Equal(t, uint(3), userID)

	for _, bad := range []string{"", "garbage", token[:len(token)-5]} {
		userID, ok = guard.OptionalUser(ctx, bad)
		assert.False(t, ok)
		assert.Zero(t, userID)
	}
}

func TestGuardRevoke(t *testing.T) {
	t.Parallel()
	tokens := newTestTokens(t)
	store := newMemoryRevocations()
	guard := NewGuard(tokens, store)
	ctx := context.Background()

	token, _, err := tokens.Issue(11)
	require.NoError(t, err)
	other, _, err := tokens.Issue(11)
	require.NoError(t, err)

	require.NoError(t, guard.Revoke(ctx, token))

	_, err = guard.RequireUser(ctx, token)
	assert.True(t, models.IsCode(err, models.CodeUnauthenticated))
	_, ok := guard.OptionalUser(ctx, token)
	assert.False(t, ok)

	userID, err := guard.RequireUser(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, uint(11), userID)

	assert.NoError(t, guard.Revoke(ctx, "garbage"))
}

func TestGuardRevocationStoreFailureFailsOpen(t *testing.T) {
	t.Parallel()
	tokens := newTestTokens(t)
	store := newMemoryRevocations()
	store.err = errors.New("connection refused")
	guard := NewGuard(tokens, store)

	token, _, err := tokens.Issue(4)
	require.NoError(t, err)

	userID, err := guard.RequireUser(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, uint(4), userID)
}
