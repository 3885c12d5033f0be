// Package models contains the persisted domain types of the microblog and the
// error type shared by every layer.
package models

import "time"

// User is a registered account. Users are immutable after creation.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:32;uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"size:128;uniqueIndex;not null" json:"-"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}
