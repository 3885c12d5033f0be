// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"context"
	"testing"

	"microblog/internal/database"
	"microblog/internal/models"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// NewTestDB returns a migrated in-memory SQLite database private to t.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect("sqlite::memory:")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with a cheap bcrypt hash of "password".
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	user := &models.User{Username: username, Email: username + "@example.com", Password: string(hash)}
	if err := db.WithContext(context.Background()).Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

// CreatePost inserts a post by author, optionally replying to parent.
func CreatePost(t *testing.T, db *gorm.DB, author *models.User, content string, parent *models.Post) *models.Post {
	t.Helper()
	post := &models.Post{AuthorID: author.ID, Content: content}
	if parent != nil {
		post.InReplyToPostID = &parent.ID
		post.InReplyToUserID = &parent.AuthorID
	}
	if err := db.Omit("Author", "InReplyToPost", "InReplyToUser", "Likes").Create(post).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}
	return post
}
