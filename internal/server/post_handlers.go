package server

import (
	"bytes"
	"encoding/json"

	"microblog/internal/models"
	"microblog/internal/service"
	"microblog/internal/validation"

	"github.com/gofiber/fiber/v2"
)

// optionalID is a reply reference as submitted: a JSON number, a JSON
// string, null, or a form value. It is parsed by validation.OptionalID.
type optionalID string

func (o *optionalID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*o = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*o = optionalID(s)
	default:
		*o = optionalID(data)
	}
	return nil
}

// ListPosts handles GET /posts?scope=all|top
func (s *Server) ListPosts(c *fiber.Ctx) error {
	scope, err := models.ParsePostScope(c.Query("scope"))
	if err != nil {
		return respondError(c, err)
	}
	viewerID, _ := s.optionalUserID(c)

	posts, err := s.postService.ListPosts(c.UserContext(), service.ListPostsInput{
		Filter:   models.PostFilter{Scope: scope},
		ViewerID: viewerID,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(posts)
}

// GetPost handles GET /posts/:id and returns the post with its replies.
func (s *Server) GetPost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	viewerID, _ := s.optionalUserID(c)

	thread, err := s.postService.GetThread(c.UserContext(), id, viewerID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(thread)
}

// CreatePost handles POST /posts. Empty reply references mean none.
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req struct {
		Content         string     `json:"content" form:"content"`
		InReplyToPostID optionalID `json:"in_reply_to_post_id" form:"in_reply_to_post_id"`
		InReplyToUserID optionalID `json:"in_reply_to_user_id" form:"in_reply_to_user_id"`
	}
	if err := c.BodyParser(&req); err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	replyPost, err := validation.OptionalID(string(req.InReplyToPostID))
	if err != nil {
		return respondError(c, err)
	}
	replyUser, err := validation.OptionalID(string(req.InReplyToUserID))
	if err != nil {
		return respondError(c, err)
	}

	post, err := s.postService.CreatePost(c.UserContext(), service.CreatePostInput{
		AuthorID:        currentUserID(c),
		Content:         req.Content,
		InReplyToPostID: replyPost,
		InReplyToUserID: replyUser,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// DeletePost handles DELETE /posts/:id. Deleting someone else's post, or one
// that does not exist, answers 200 with deleted=false.
func (s *Server) DeletePost(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	outcome, err := s.postService.DeletePost(c.UserContext(), service.DeletePostInput{
		UserID: currentUserID(c),
		PostID: id,
	})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{"deleted": outcome.Deleted()})
}

// ToggleLike handles POST /posts/:id/like. It likes the post if the caller
// has not, and unlikes it otherwise.
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	id, err := parseID(c, "id")
	if err != nil {
		return nil
	}

	state, post, err := s.postService.ToggleLike(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"state":      state,
		"like_count": post.LikeCount,
	})
}
