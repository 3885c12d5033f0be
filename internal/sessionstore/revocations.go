package sessionstore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "session:revoked:"

// Revocations stores revoked token ids until the token would have expired anyway.
type Revocations struct {
	rdb *redis.Client
	now func() time.Time
}

func NewRevocations(rdb *redis.Client) *Revocations {
	return &Revocations{rdb: rdb, now: time.Now}
}

// Revoke marks tokenID revoked until the given time. Already expired tokens are skipped.
func (r *Revocations) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	return r.rdb.Set(ctx, revokedKeyPrefix+tokenID, 1, ttl).Err()
}

func (r *Revocations) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.rdb.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
