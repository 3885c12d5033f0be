// Package service implements the microblog operations on top of the
// repositories: registration, login and account lifecycle in UserService,
// posting, threads and likes in PostService.
package service

import (
	"context"
	"time"

	"microblog/internal/auth"
	"microblog/internal/middleware"
	"microblog/internal/models"
	"microblog/internal/observability"
	"microblog/internal/repository"
	"microblog/internal/validation"
)

type UserService struct {
	userRepo repository.UserRepository
	hasher   *auth.PasswordHasher
	tokens   *auth.TokenService
}

type RegisterInput struct {
	Username string `json:"username" validate:"required,max=32,handle"`
	Email    string `json:"email" validate:"required,max=128,email"`
	Password string `json:"-"`
}

type LoginInput struct {
	Username string
	Password string
}

// Session is the result of a successful login.
type Session struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

func NewUserService(userRepo repository.UserRepository, hasher *auth.PasswordHasher, tokens *auth.TokenService) *UserService {
	return &UserService{
		userRepo: userRepo,
		hasher:   hasher,
		tokens:   tokens,
	}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	ctx, span := observability.StartSpan(ctx, "UserService.Register")
	user, err := s.register(ctx, in)
	observability.EndSpan(span, err)
	return user, err
}

func (s *UserService) register(ctx context.Context, in RegisterInput) (*models.User, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if err := validation.ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Username already registered")
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: hash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	middleware.Logger.InfoContext(ctx, "user registered", "user_id", user.ID, "username", user.Username)
	return user, nil
}

// Login checks credentials and issues a session token. Unknown users and
// wrong passwords fail identically.
func (s *UserService) Login(ctx context.Context, in LoginInput) (*Session, error) {
	ctx, span := observability.StartSpan(ctx, "UserService.Login")
	session, err := s.login(ctx, in)
	observability.EndSpan(span, err)

	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	observability.LoginAttempts.WithLabelValues(outcome).Inc()
	return session, err
}

func (s *UserService) login(ctx context.Context, in LoginInput) (*Session, error) {
	if in.Username == "" || in.Password == "" {
		return nil, models.NewUnauthenticatedError("Invalid credentials")
	}

	user, err := s.userRepo.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if user == nil || !s.hasher.Verify(in.Password, user.Password) {
		return nil, models.NewUnauthenticatedError("Invalid credentials")
	}

	token, expiresAt, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return &Session{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *UserService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", id)
	}
	return user, nil
}

func (s *UserService) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewNotFoundError("User", username)
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.userRepo.List(ctx)
}

// DeleteAccount removes userID together with their posts and likes.
func (s *UserService) DeleteAccount(ctx context.Context, userID uint) error {
	if userID == 0 {
		return models.NewUnauthenticatedError("Authentication required")
	}
	deleted, err := s.userRepo.Delete(ctx, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return models.NewNotFoundError("User", userID)
	}
	middleware.Logger.InfoContext(ctx, "account deleted", "deleted_user_id", userID)
	return nil
}

// EnsureAccount creates the account unless the username already exists.
// It reports whether a new account was created.
func (s *UserService) EnsureAccount(ctx context.Context, in RegisterInput) (bool, error) {
	existing, err := s.userRepo.GetByUsername(ctx, in.Username)
	if err != nil {
		return false, err
	}
	if existing != nil {
		return false, nil
	}

	if _, err := s.register(ctx, in); err != nil {
		// Lost a race with a concurrent bootstrap.
		if models.IsCode(err, models.CodeConflict) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
