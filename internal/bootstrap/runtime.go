// Package bootstrap brings up the stores a binary needs and ensures the
// admin account exists.
package bootstrap

import (
	"context"
	"fmt"

	"microblog/internal/auth"
	"microblog/internal/config"
	"microblog/internal/database"
	"microblog/internal/middleware"
	"microblog/internal/repository"
	"microblog/internal/service"
	"microblog/internal/sessionstore"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SkipAdmin leaves the admin account alone, for tools that only read.
	SkipAdmin bool
}

// InitRuntime connects to the database (migrating it) and, when configured,
// Redis. The returned client is nil when Redis is absent or unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	rdb := sessionstore.Connect(ctx, cfg.RedisURL)

	if !opts.SkipAdmin {
		if _, err := EnsureAdmin(ctx, cfg, db); err != nil {
			return nil, nil, fmt.Errorf("failed to bootstrap admin account: %w", err)
		}
	}

	return db, rdb, nil
}

// EnsureAdmin creates the configured admin account unless its username is
// already taken. It reports whether an account was created.
func EnsureAdmin(ctx context.Context, cfg *config.Config, db *gorm.DB) (bool, error) {
	users := service.NewUserService(repository.NewUserRepository(db), auth.NewPasswordHasher(cfg.BcryptCost), nil)
	created, err := users.EnsureAccount(ctx, service.RegisterInput{
		Username: cfg.AdminUsername,
		Email:    cfg.AdminEmail,
		Password: cfg.AdminPassword,
	})
	if err != nil {
		return false, err
	}
	if created {
		middleware.Logger.InfoContext(ctx, "admin account created", "username", cfg.AdminUsername)
	}
	return created, nil
}
