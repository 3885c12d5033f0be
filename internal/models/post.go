package models

import "time"

// Post is a short text entry, optionally a reply to another post and/or
// addressed to another user.
type Post struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	AuthorID        uint      `gorm:"not null;index" json:"author_id"`
	Author          User      `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"author"`
	Content         string    `gorm:"type:text;not null" json:"content"`
	InReplyToPostID *uint     `gorm:"index" json:"in_reply_to_post_id"`
	InReplyToPost   *Post     `gorm:"foreignKey:InReplyToPostID;constraint:OnDelete:SET NULL" json:"-"`
	InReplyToUserID *uint     `gorm:"index" json:"in_reply_to_user_id"`
	InReplyToUser   *User     `gorm:"foreignKey:InReplyToUserID;constraint:OnDelete:SET NULL" json:"in_reply_to_user,omitempty"`
	Likes           []Like    `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt       time.Time `gorm:"index" json:"created_at"`

	// Read projections, filled by the repository.
	LikeCount     int     `gorm:"-" json:"like_count"`
	Likers        []Liker `gorm:"-" json:"likers"`
	LikedByViewer bool    `gorm:"-" json:"liked_by_viewer"`
}

// Liker identifies a user who liked a post.
type Liker struct {
	UserID   uint   `json:"user_id"`
	Username string `json:"username"`
}

// IsReply reports whether the post answers another post.
func (p *Post) IsReply() bool {
	return p.InReplyToPostID != nil
}

// PostScope selects which posts a listing returns.
type PostScope int

const (
	ScopeAll PostScope = iota
	ScopeTopLevel
	ScopeByAuthor
)

// PostFilter narrows a post listing. AuthorID is only read for ScopeByAuthor.
type PostFilter struct {
	Scope    PostScope
	AuthorID uint
}

// ParsePostScope maps the query-string form of a scope. Empty means all.
func ParsePostScope(raw string) (PostScope, error) {
	switch raw {
	case "", "all":
		return ScopeAll, nil
	case "top", "top_level":
		return ScopeTopLevel, nil
	default:
		return ScopeAll, NewValidationError("scope must be one of: all, top")
	}
}

// DeleteOutcome reports whether a delete request removed the post.
type DeleteOutcome int

const (
	// DeleteDenied covers both a missing post and a requester who is not the author.
	DeleteDenied DeleteOutcome = iota
	DeleteDeleted
)

func (o DeleteOutcome) Deleted() bool {
	return o == DeleteDeleted
}

func (o DeleteOutcome) String() string {
	if o == DeleteDeleted {
		return "deleted"
	}
	return "denied"
}
