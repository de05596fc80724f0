package models

import "time"

// Setting stores server-side configuration like the JWT signing secret
type Setting struct {
	Key       string `gorm:"primaryKey"` // Setting key name
	Value     string // Setting value
	CreatedAt time.Time
	UpdatedAt time.Time
}
