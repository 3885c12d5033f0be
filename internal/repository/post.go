package repository

import (
	"context"
	"errors"

	"microblog/internal/middleware"
	"microblog/internal/models"
	"microblog/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post and like data operations.
//
// Every post returned by GetByID, List and Replies carries its Author,
// InReplyToUser, Likers and LikeCount, loaded in batched queries rather than
// one query per post. LikedByViewer is set for viewerID; 0 means anonymous.
type PostRepository interface {
	// Create inserts post. A missing author, parent post or addressed user
	// is NOT_FOUND.
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	// List returns posts newest first.
	List(ctx context.Context, filter models.PostFilter, viewerID uint) ([]*models.Post, error)
	// Replies returns direct replies to postID, oldest first.
	Replies(ctx context.Context, postID uint, viewerID uint) ([]*models.Post, error)
	// Delete removes the post when requesterID is its author. Replies survive
	// with their parent reference cleared.
	Delete(ctx context.Context, id uint, requesterID uint) (models.DeleteOutcome, error)
	// ToggleLike flips userID's like on postID and returns the new state.
	ToggleLike(ctx context.Context, postID uint, userID uint) (models.LikeState, error)
}

type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	defer observability.TrackQuery("create", "posts")()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &models.User{}, post.AuthorID, "User"); err != nil {
			return err
		}
		if post.InReplyToPostID != nil {
			if err := requireRow(tx, &models.Post{}, *post.InReplyToPostID, "Post"); err != nil {
				return err
			}
		}
		if post.InReplyToUserID != nil {
			if err := requireRow(tx, &models.User{}, *post.InReplyToUserID, "User"); err != nil {
				return err
			}
		}
		return tx.Omit(clause.Associations).Create(post).Error
	})
	return wrapErr(err)
}

func requireRow(tx *gorm.DB, model interface{}, id uint, resource string) error {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return models.NewNotFoundError(resource, id)
	}
	return nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	defer observability.TrackQuery("get_by_id", "posts")()

	var post models.Post
	err := withDetails(r.db.WithContext(ctx)).Where("posts.id = ?", id).Take(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	attachLikes(&post, viewerID)
	return &post, nil
}

func (r *postRepository) List(ctx context.Context, filter models.PostFilter, viewerID uint) ([]*models.Post, error) {
	defer observability.TrackQuery("list", "posts")()

	query := withDetails(r.db.WithContext(ctx))
	switch filter.Scope {
	case models.ScopeTopLevel:
		query = query.Where("posts.in_reply_to_post_id IS NULL")
	case models.ScopeByAuthor:
		query = query.Where("posts.author_id = ?", filter.AuthorID)
	}

	var posts []*models.Post
	if err := query.Order("posts.created_at DESC").Order("posts.id DESC").Find(&posts).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, p := range posts {
		attachLikes(p, viewerID)
	}
	return posts, nil
}

func (r *postRepository) Replies(ctx context.Context, postID uint, viewerID uint) ([]*models.Post, error) {
	defer observability.TrackQuery("replies", "posts")()

	var posts []*models.Post
	err := withDetails(r.db.WithContext(ctx)).
		Where("posts.in_reply_to_post_id = ?", postID).
		Order("posts.created_at ASC").Order("posts.id ASC").
		Find(&posts).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	for _, p := range posts {
		attachLikes(p, viewerID)
	}
	return posts, nil
}

func (r *postRepository) Delete(ctx context.Context, id uint, requesterID uint) (models.DeleteOutcome, error) {
	defer observability.TrackQuery("delete", "posts")()

	outcome := models.DeleteDenied
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var post models.Post
		if err := tx.Select("id", "author_id").Take(&post, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}
		if post.AuthorID != requesterID {
			return nil
		}

		if err := tx.Model(&models.Post{}).
			Where("in_reply_to_post_id = ?", id).
			Update("in_reply_to_post_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.Post{}, id).Error; err != nil {
			return err
		}
		outcome = models.DeleteDeleted
		return nil
	})
	if err != nil {
		return models.DeleteDenied, models.NewInternalError(err)
	}
	return outcome, nil
}

func (r *postRepository) ToggleLike(ctx context.Context, postID uint, userID uint) (models.LikeState, error) {
	defer observability.TrackQuery("toggle_like", "likes")()

	var state models.LikeState
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := requireRow(tx, &models.Post{}, postID, "Post"); err != nil {
			return err
		}
		if err := requireRow(tx, &models.User{}, userID, "User"); err != nil {
			return err
		}

		res := tx.Where("user_id = ? AND post_id = ?", userID, postID).Delete(&models.Like{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			state = models.LikeStateUnliked
			return nil
		}

		var err error
		state, err = insertLike(tx, postID, userID)
		return err
	})
	if err != nil {
		return "", wrapErr(err)
	}
	return state, nil
}

// insertLike adds the like row. A conflict means a concurrent toggle already
// inserted it, which leaves the pair liked all the same.
func insertLike(tx *gorm.DB, postID uint, userID uint) (models.LikeState, error) {
	like := models.Like{UserID: userID, PostID: postID}
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "post_id"}},
		DoNothing: true,
	}).Omit(clause.Associations).Create(&like)
	if res.Error != nil {
		return "", res.Error
	}
	if res.RowsAffected == 0 {
		middleware.Logger.DebugContext(tx.Statement.Context, "like already present",
			"post_id", postID, "user_id", userID)
	}
	return models.LikeStateLiked, nil
}

func withDetails(db *gorm.DB) *gorm.DB {
	return db.Model(&models.Post{}).
		Preload("Author").
		Preload("InReplyToUser").
		Preload("Likes", func(db *gorm.DB) *gorm.DB {
			return db.Order("likes.created_at ASC").Order("likes.id ASC")
		}).
		Preload("Likes.User")
}

func attachLikes(post *models.Post, viewerID uint) {
	post.LikeCount = len(post.Likes)
	post.Likers = make([]models.Liker, 0, len(post.Likes))
	post.LikedByViewer = false
	for _, like := range post.Likes {
		post.Likers = append(post.Likers, models.Liker{UserID: like.UserID, Username: like.User.Username})
		if viewerID != 0 && like.UserID == viewerID {
			post.LikedByViewer = true
		}
	}
}
