package models

import "time"

// Like records that a user liked a post. (user_id, post_id) is unique.
type Like struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post" json:"user_id"`
	User      User      `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	PostID    uint      `gorm:"not null;uniqueIndex:idx_likes_user_post;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}

// LikeState is the per (user, post) like state. A pair with no row is Unliked.
type LikeState string

const (
	LikeStateUnliked LikeState = "unliked"
	LikeStateLiked   LikeState = "liked"
)

// Toggle returns the opposite state.
func (s LikeState) Toggle() LikeState {
	if s == LikeStateLiked {
		return LikeStateUnliked
	}
	return LikeStateLiked
}
