package service

import (
	"context"

	"microblog/internal/models"
	"microblog/internal/observability"
	"microblog/internal/repository"
	"microblog/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

type PostService struct {
	postRepo repository.PostRepository
}

// CreatePostInput carries already-parsed reply references; nil means none.
type CreatePostInput struct {
	AuthorID        uint
	Content         string
	InReplyToPostID *uint
	InReplyToUserID *uint
}

type ListPostsInput struct {
	Filter   models.PostFilter
	ViewerID uint
}

type DeletePostInput struct {
	UserID uint
	PostID uint
}

// Thread is a post with its direct replies.
type Thread struct {
	Post    *models.Post   `json:"post"`
	Replies []*models.Post `json:"replies"`
}

func NewPostService(postRepo repository.PostRepository) *PostService {
	return &PostService{postRepo: postRepo}
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	if in.AuthorID == 0 {
		return nil, models.NewUnauthenticatedError("Authentication required")
	}
	content, err := validation.ValidateContent(in.Content)
	if err != nil {
		return nil, err
	}

	ctx, span := observability.StartSpan(ctx, "PostService.CreatePost")
	post := &models.Post{
		AuthorID:        in.AuthorID,
		Content:         content,
		InReplyToPostID: in.InReplyToPostID,
		InReplyToUserID: in.InReplyToUserID,
	}
	err = s.postRepo.Create(ctx, post)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}

	kind := "top_level"
	if post.IsReply() {
		kind = "reply"
	}
	observability.PostsCreated.WithLabelValues(kind).Inc()

	return s.GetPost(ctx, post.ID, in.AuthorID)
}

func (s *PostService) GetPost(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		return nil, models.NewNotFoundError("Post", id)
	}
	return post, nil
}

// GetThread returns the post and its direct replies, oldest reply first.
func (s *PostService) GetThread(ctx context.Context, id uint, viewerID uint) (*Thread, error) {
	post, err := s.GetPost(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	replies, err := s.postRepo.Replies(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	return &Thread{Post: post, Replies: replies}, nil
}

func (s *PostService) ListPosts(ctx context.Context, in ListPostsInput) ([]*models.Post, error) {
	return s.postRepo.List(ctx, in.Filter, in.ViewerID)
}

// DeletePost removes the post if the caller wrote it. Anything else,
// including a missing post, is reported as denied rather than an error.
func (s *PostService) DeletePost(ctx context.Context, in DeletePostInput) (models.DeleteOutcome, error) {
	if in.UserID == 0 {
		return models.DeleteDenied, models.NewUnauthenticatedError("Authentication required")
	}

	ctx, span := observability.StartSpan(ctx, "PostService.DeletePost",
		attribute.Int64("post.id", int64(in.PostID)))
	outcome, err := s.postRepo.Delete(ctx, in.PostID, in.UserID)
	observability.EndSpan(span, err)
	if err != nil {
		return models.DeleteDenied, err
	}

	observability.PostDeletes.WithLabelValues(outcome.String()).Inc()
	return outcome, nil
}

// ToggleLike flips the caller's like on the post and returns the new state
// with the refreshed post.
func (s *PostService) ToggleLike(ctx context.Context, userID, postID uint) (models.LikeState, *models.Post, error) {
	if userID == 0 {
		return "", nil, models.NewUnauthenticatedError("Authentication required")
	}

	ctx, span := observability.StartSpan(ctx, "PostService.ToggleLike",
		attribute.Int64("post.id", int64(postID)))
	state, err := s.postRepo.ToggleLike(ctx, postID, userID)
	observability.EndSpan(span, err)
	if err != nil {
		return "", nil, err
	}
	observability.LikeToggles.WithLabelValues(string(state)).Inc()

	post, err := s.GetPost(ctx, postID, userID)
	if err != nil {
		return "", nil, err
	}
	return state, post, nil
}
