// Package server contains the HTTP handlers and routing for the microblog API.
package server

import (
	"context"
	"errors"
	"time"

	"microblog/internal/auth"
	"microblog/internal/config"
	"microblog/internal/middleware"
	"microblog/internal/models"
	"microblog/internal/observability"
	"microblog/internal/repository"
	"microblog/internal/service"
	"microblog/internal/sessionstore"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server holds all dependencies and provides handlers
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	tokens         *auth.TokenService
	guard          *auth.Guard
	userService    *service.UserService
	postService    *service.PostService
}

// NewServer creates a Server using already-initialized dependencies.
// rdb may be nil; logout revocation and rate limiting are then disabled.
func NewServer(cfg *config.Config, db *gorm.DB, rdb *redis.Client) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.SessionSecretKey, cfg.SessionTTL)
	if err != nil {
		return nil, err
	}

	var revocations auth.RevocationStore
	if rdb != nil {
		revocations = sessionstore.NewRevocations(rdb)
	}

	userRepo := repository.NewUserRepository(db)
	postRepo := repository.NewPostRepository(db)

	return &Server{
		config:         cfg,
		db:             db,
		redis:          rdb,
		promMiddleware: middleware.InitMetrics(observability.ServiceName),
		tokens:         tokens,
		guard:          auth.NewGuard(tokens, revocations),
		userService:    service.NewUserService(userRepo, auth.NewPasswordHasher(cfg.BcryptCost), tokens),
		postService:    service.NewPostService(postRepo),
	}, nil
}

// NewApp builds the fiber app with middleware and routes installed.
func (s *Server) NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "Microblog API",
		ErrorHandler: errorHandler,
	})
	s.SetupMiddleware(app)
	s.SetupRoutes(app)
	return app
}

// errorHandler renders errors that escape a handler. fiber's own errors keep
// their status; everything else goes through the AppError mapping.
func errorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(models.ErrorResponse{Error: fe.Message})
	}
	status := models.StatusFor(err)
	if status >= fiber.StatusInternalServerError {
		middleware.Logger.ErrorContext(c.UserContext(), "unhandled error", "error", err)
	}
	return models.RespondWithError(c, status, err)
}

// SetupMiddleware configures all middleware for the application
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())

	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}

	// Propagates request, trace and user ids into the request context.
	app.Use(middleware.ContextMiddleware())

	if s.promMiddleware != nil {
		middleware.RegisterMetrics(app, s.promMiddleware)
	}

	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	// CORS runs before the limiter so rejected requests still carry CORS headers.
	origins := s.config.AllowedOrigins
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: origins != "" && origins != "*",
		MaxAge:           86400,
	}))

	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
		Next: func(c *fiber.Ctx) bool {
			return c.Method() == fiber.MethodOptions || middleware.RateLimitExempt(s.config.Env)
		},
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				models.NewRateLimitedError("Too many requests, please try again later."))
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.Redirect("/posts", fiber.StatusSeeOther)
	})

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health", s.ReadinessCheck)

	authRoutes := app.Group("/auth")
	authRoutes.Post("/register", middleware.RateLimit(
		s.redis, s.config.Env, s.config.AuthRateLimit, s.config.AuthRateWindow, "register"), s.Register)
	authRoutes.Post("/login", middleware.RateLimit(
		s.redis, s.config.Env, s.config.AuthRateLimit, s.config.AuthRateWindow, "login"), s.Login)
	authRoutes.Post("/logout", s.Logout)
	authRoutes.Get("/me", s.AuthRequired(), s.Me)

	posts := app.Group("/posts")
	posts.Get("/", s.ListPosts)
	posts.Post("/", s.AuthRequired(), s.CreatePost)
	// Specific /:id/:resource routes before the generic /:id routes.
	posts.Post("/:id/like", s.AuthRequired(), s.ToggleLike)
	posts.Get("/:id", s.GetPost)
	posts.Delete("/:id", s.AuthRequired(), s.DeletePost)

	users := app.Group("/users")
	users.Delete("/me", s.AuthRequired(), s.DeleteAccount)
	users.Get("/:username", s.GetUserByUsername)
}

// LivenessCheck handles liveness probe requests
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "up",
		"time":   time.Now().UTC(),
	})
}

// ReadinessCheck pings the database and, when configured, Redis. Redis is
// optional, so its absence does not fail the probe.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	dbStatus := "healthy"
	sqlDB, err := s.db.DB()
	if err != nil {
		dbStatus = "unhealthy"
	} else if err := sqlDB.PingContext(ctx); err != nil {
		dbStatus = "unhealthy"
	}

	redisStatus := "disabled"
	if s.redis != nil {
		redisStatus = "healthy"
		if err := s.redis.Ping(ctx).Err(); err != nil {
			redisStatus = "unhealthy"
		}
	}

	status := fiber.StatusOK
	overallStatus := "healthy"
	if dbStatus == "unhealthy" || redisStatus == "unhealthy" {
		status = fiber.StatusServiceUnavailable
		overallStatus = "unhealthy"
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overallStatus,
		"checks": fiber.Map{
			"database": dbStatus,
			"redis":    redisStatus,
		},
		"time": time.Now().UTC(),
	})
}

// Start builds the app and listens on the configured port. It blocks until
// the listener stops.
func (s *Server) Start() error {
	s.app = s.NewApp()
	middleware.Logger.Info("server starting", "port", s.config.Port, "env", s.config.Env)
	return s.app.Listen(":" + s.config.Port)
}

// Shutdown gracefully shuts down the server and closes its stores.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("error shutting down HTTP server", "error", err)
		}
	}

	if sqlDB, err := s.db.DB(); err == nil {
		if cerr := sqlDB.Close(); cerr != nil {
			middleware.Logger.Error("error closing sql DB", "error", cerr)
		}
	}

	if s.redis != nil {
		if rerr := s.redis.Close(); rerr != nil {
			middleware.Logger.Error("error closing redis", "error", rerr)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
