package server

import (
	"microblog/internal/middleware"
	"microblog/internal/models"
	"microblog/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetUserByUsername handles GET /users/:username and returns the user with
// their posts, newest first.
func (s *Server) GetUserByUsername(c *fiber.Ctx) error {
	ctx := c.UserContext()
	user, err := s.userService.GetUserByUsername(ctx, c.Params("username"))
	if err != nil {
		return respondError(c, err)
	}
	viewerID, _ := s.optionalUserID(c)

	posts, err := s.postService.ListPosts(ctx, service.ListPostsInput{
		Filter:   models.PostFilter{Scope: models.ScopeByAuthor, AuthorID: user.ID},
		ViewerID: viewerID,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(fiber.Map{
		"user":  user,
		"posts": posts,
	})
}

// DeleteAccount handles DELETE /users/me. The account's posts and likes go
// with it and the current session is ended.
func (s *Server) DeleteAccount(c *fiber.Ctx) error {
	ctx := c.UserContext()
	if err := s.userService.DeleteAccount(ctx, currentUserID(c)); err != nil {
		return respondError(c, err)
	}

	if err := s.guard.Revoke(ctx, sessionToken(c)); err != nil {
		middleware.Logger.WarnContext(ctx, "session revocation failed", "error", err)
	}
	s.clearSessionCookie(c)
	return c.SendStatus(fiber.StatusNoContent)
}
