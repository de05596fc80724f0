package models

import "time"

// User is a registered account. Sign-in accepts either the email or the
// username; the email is the identifier everything else is keyed by.
type User struct {
	ID           uint   `gorm:"primaryKey"`
	Username     string `gorm:"not null"`
	Email        string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
