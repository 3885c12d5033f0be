// Package sessionstore holds the Redis client used for session revocation and
// rate limiting.
package sessionstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"microblog/internal/middleware"
	"microblog/internal/observability"

	"github.com/redis/go-redis/v9"
	"github.com/redis/go-redis/v9/maintnotifications"
)

type metricsHook struct{}

func (h metricsHook) DialHook(next redis.DialHook) redis.DialHook {
	return next
}

func (h metricsHook) ProcessHook(next redis.ProcessHook) redis.ProcessHook {
	return func(ctx context.Context, cmd redis.Cmder) error {
		err := next(ctx, cmd)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues(cmd.Name()).Inc()
		}
		return err
	}
}

func (h metricsHook) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return func(ctx context.Context, cmds []redis.Cmder) error {
		err := next(ctx, cmds)
		if err != nil && !errors.Is(err, redis.Nil) {
			observability.RedisErrors.WithLabelValues("pipeline").Inc()
		}
		return err
	}
}

// NewClient builds a client for addr, which may be a redis:// URL or host:port.
func NewClient(addr string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.Contains(addr, "://") {
		parsed, err := redis.ParseURL(addr)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: addr}
	}
	// Servers without the maintenance-notifications subcommand reject the handshake.
	opts.MaintNotificationsConfig = &maintnotifications.Config{Mode: maintnotifications.ModeDisabled}

	client := redis.NewClient(opts)
	client.AddHook(metricsHook{})
	return client, nil
}

// Connect returns a pinged client, or nil when addr is empty or Redis is
// unreachable. The service runs without revocation and rate limiting then.
func Connect(ctx context.Context, addr string) *redis.Client {
	if addr == "" {
		middleware.Logger.Info("REDIS_URL not set; session revocation and rate limiting disabled")
		return nil
	}

	client, err := NewClient(addr)
	if err != nil {
		middleware.Logger.Warn("Redis connection warning (continuing without Redis)", "error", err)
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		middleware.Logger.Warn("Redis connection warning (continuing without Redis)", "error", err)
		_ = client.Close()
		return nil
	}
	middleware.Logger.Info("Redis connected successfully")
	return client
}
