// Package user defines the account entity consumed by the auth module.
package user

import "time"

// User is a registered account. Timers are keyed by User.ID.
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	IsActive     bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"-"`
}

// Claims are the authenticated identity extracted from an access token.
type Claims struct {
	UserID string
	Email  string
}
