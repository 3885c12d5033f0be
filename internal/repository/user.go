package repository

import (
	"context"
	"errors"

	"microblog/internal/models"
	"microblog/internal/observability"

	"gorm.io/gorm"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	// Create inserts user. A taken username or email is a CONFLICT.
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	// Delete removes the user with their likes and posts, clears references
	// other posts hold to them, and reports whether the user existed.
	Delete(ctx context.Context, id uint) (bool, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	defer observability.TrackQuery("create", "users")()

	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Username or email already registered")
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uint) (*models.User, error) {
	return r.first(ctx, "get_by_id", "id = ?", id)
}

func (r *userRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	return r.first(ctx, "get_by_username", "username = ?", username)
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.first(ctx, "get_by_email", "email = ?", email)
}

func (r *userRepository) first(ctx context.Context, op string, query string, arg interface{}) (*models.User, error) {
	defer observability.TrackQuery(op, "users")()

	var user models.User
	err := r.db.WithContext(ctx).Where(query, arg).Take(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context) ([]models.User, error) {
	defer observability.TrackQuery("list", "users")()

	var users []models.User
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return users, nil
}

func (r *userRepository) Delete(ctx context.Context, id uint) (bool, error) {
	defer observability.TrackQuery("delete", "users")()

	var deleted bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Select("id").Take(&user, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		var postIDs []uint
		if err := tx.Model(&models.Post{}).Where("author_id = ?", id).Pluck("id", &postIDs).Error; err != nil {
			return err
		}
		if len(postIDs) > 0 {
			if err := tx.Model(&models.Post{}).
				Where("in_reply_to_post_id IN ?", postIDs).
				Update("in_reply_to_post_id", nil).Error; err != nil {
				return err
			}
			if err := tx.Where("post_id IN ?", postIDs).Delete(&models.Like{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Like{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Post{}).
			Where("in_reply_to_user_id = ?", id).
			Update("in_reply_to_user_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("author_id = ?", id).Delete(&models.Post{}).Error; err != nil {
			return err
		}
		if err := tx.Delete(&models.User{}, id).Error; err != nil {
			return err
		}
		deleted = true
		return nil
	})
	if err != nil {
		return false, models.NewInternalError(err)
	}
	return deleted, nil
}
