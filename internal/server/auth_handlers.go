package server

import (
	"time"

	"microblog/internal/middleware"
	"microblog/internal/models"
	"microblog/internal/service"

	"github.com/gofiber/fiber/v2"
)

// accountResponse is the caller's own view of their account. Email is only
// ever shown to its owner.
type accountResponse struct {
	ID        uint      `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func newAccountResponse(u *models.User) accountResponse {
	return accountResponse{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		CreatedAt: u.CreatedAt,
	}
}

// Register handles POST /auth/register. It accepts JSON or form bodies and
// does not start a session.
func (s *Server) Register(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username" form:"username"`
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	user, err := s.userService.Register(c.UserContext(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(newAccountResponse(user))
}

// Login handles POST /auth/login. The token is set as the session cookie and
// also returned for API clients.
func (s *Server) Login(c *fiber.Ctx) error {
	var req struct {
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	session, err := s.userService.Login(c.UserContext(), service.LoginInput{
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return respondError(c, err)
	}

	s.setSessionCookie(c, session.Token, session.ExpiresAt)
	return c.JSON(fiber.Map{
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
		"user":       newAccountResponse(session.User),
	})
}

// Logout handles POST /auth/logout. It clears the cookie and, when a
// revocation store is configured, ends the token server-side.
func (s *Server) Logout(c *fiber.Ctx) error {
	if err := s.guard.Revoke(c.UserContext(), sessionToken(c)); err != nil {
		middleware.Logger.WarnContext(c.UserContext(), "session revocation failed", "error", err)
	}
	s.clearSessionCookie(c)
	return c.JSON(fiber.Map{"message": "Logged out"})
}

// Me handles GET /auth/me
func (s *Server) Me(c *fiber.Ctx) error {
	user, err := s.userService.GetUserByID(c.UserContext(), currentUserID(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(newAccountResponse(user))
}
