package server

import (
	"strings"
	"time"

	"microblog/internal/middleware"
	"microblog/internal/models"

	"github.com/gofiber/fiber/v2"
)

const sessionCookieName = "session_token"

// sessionToken returns the presented token. An Authorization: Bearer header
// wins over the session cookie.
func sessionToken(c *fiber.Ctx) string {
	if header := c.Get(fiber.HeaderAuthorization); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return strings.TrimSpace(parts[1])
		}
		return ""
	}
	return c.Cookies(sessionCookieName)
}

func (s *Server) setSessionCookie(c *fiber.Ctx, token string, expiresAt time.Time) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.tokens.TTL().Seconds()),
		Expires:  expiresAt,
		Secure:   s.config.CookieSecure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(c *fiber.Ctx) {
	c.Cookie(&fiber.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   s.config.CookieSecure,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
}

// AuthRequired rejects requests without a valid, unrevoked session with 401
// and stores the caller's id in c.Locals("userID").
func (s *Server) AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		userID, err := s.guard.RequireUser(c.UserContext(), sessionToken(c))
		if err != nil {
			return models.RespondWithError(c, fiber.StatusUnauthorized, err)
		}

		c.Locals("userID", userID)
		c.SetUserContext(middleware.WithUserID(c.UserContext(), userID))
		return c.Next()
	}
}

// optionalUserID resolves the caller if a valid session is presented. Any
// failure means anonymous.
func (s *Server) optionalUserID(c *fiber.Ctx) (uint, bool) {
	return s.guard.OptionalUser(c.UserContext(), sessionToken(c))
}

// currentUserID reads the id stored by AuthRequired.
func currentUserID(c *fiber.Ctx) uint {
	userID, _ := c.Locals("userID").(uint)
	return userID
}
