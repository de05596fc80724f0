package models

import "time"

// ChatRecord stores one persisted transcript for a (user, member) pair.
// Messages is the full message list as JSON; saves replace it wholesale.
type ChatRecord struct {
	ID         uint   `gorm:"primaryKey"`
	Email      string `gorm:"uniqueIndex:idx_email_member;not null"`
	MemberName string `gorm:"uniqueIndex:idx_email_member;not null"`
	Messages   string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
