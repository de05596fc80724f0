package models

import "time"

// MaxMembersPerUser caps how many member profiles one account may hold.
const MaxMembersPerUser = 4

// Member is one patient profile in an account's member set.
// Slot is the profile's position (1..4). Slots stay contiguous: deleting a
// member shifts everything behind it down one slot.
type Member struct {
	ID            uint      `gorm:"primaryKey" json:"-"`
	Email         string    `gorm:"uniqueIndex:idx_email_slot;not null" json:"-"`
	Slot          int       `gorm:"uniqueIndex:idx_email_slot;not null" json:"memberIndex"`
	FirstName     string    `json:"firstName"`
	LastName      string    `json:"lastName"`
	DOB           string    `json:"dob"`
	Race          string    `json:"race"`
	Gender        string    `json:"gender"`
	Height        string    `json:"height"`
	Weight        string    `json:"weight"`
	A1C           string    `json:"a1c"`
	BloodPressure string    `json:"bloodPressure"`
	Medicine      string    `json:"medicine"`
	Tokens        int       `gorm:"default:0" json:"tokens"`
	CreatedAt     time.Time `json:"-"`
	UpdatedAt     time.Time `json:"-"`
}

// FullName returns the display name used by the chat screen and exports.
func (m *Member) FullName() string {
	return m.FirstName + " " + m.LastName
}
