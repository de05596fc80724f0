package db

import (
	"errors"

	"github.com/medlife-ai/medassist/internal/db/models"
	"gorm.io/gorm"
)

// QuestionTokenLimit caps how many questions a single member may spend.
const QuestionTokenLimit = 100

var (
	// ErrMemberLimit is returned when all four member slots are taken.
	ErrMemberLimit = errors.New("maximum of 4 members allowed per user")
	// ErrMemberNotFound is returned when a slot or name matches no member.
	ErrMemberNotFound = errors.New("member not found")
	// ErrInvalidSlot is returned for slot indexes outside 1..4.
	ErrInvalidSlot = errors.New("invalid member index")
	// ErrQuestionLimit is returned once a member hits QuestionTokenLimit.
	ErrQuestionLimit = errors.New("question limit exceeded")
)

// AddMember inserts a member into the lowest free slot for the account.
// Returns the slot it landed in.
func AddMember(database *gorm.DB, email string, m *models.Member) (int, error) {
	var taken []int
	if err := database.Model(&models.Member{}).
		Where("email = ?", email).
		Order("slot").
		Pluck("slot", &taken).Error; err != nil {
		return 0, err
	}

	slot := 0
	used := make(map[int]bool, len(taken))
	for _, s := range taken {
		used[s] = true
	}
	for i := 1; i <= models.MaxMembersPerUser; i++ {
		if !used[i] {
			slot = i
			break
		}
	}
	if slot == 0 {
		return 0, ErrMemberLimit
	}

	m.Email = email
	m.Slot = slot
	if err := database.Create(m).Error; err != nil {
		return 0, err
	}
	return slot, nil
}

// UpdateMember replaces the profile fields of the member in the given slot.
func UpdateMember(database *gorm.DB, email string, slot int, m *models.Member) error {
	if slot < 1 || slot > models.MaxMembersPerUser {
		return ErrInvalidSlot
	}

	existing, err := GetMember(database, email, slot)
	if err != nil {
		return err
	}

	return database.Model(existing).Updates(map[string]interface{}{
		"first_name":     m.FirstName,
		"last_name":      m.LastName,
		"dob":            m.DOB,
		"race":           m.Race,
		"gender":         m.Gender,
		"height":         m.Height,
		"weight":         m.Weight,
		"a1c":            m.A1C,
		"blood_pressure": m.BloodPressure,
		"medicine":       m.Medicine,
		"tokens":         m.Tokens,
	}).Error
}

// ListMembers returns the account's members in slot order, empty slots excluded.
func ListMembers(database *gorm.DB, email string) ([]models.Member, error) {
	var members []models.Member
	err := database.Where("email = ?", email).Order("slot").Find(&members).Error
	return members, err
}

// GetMember fetches the member in one slot.
func GetMember(database *gorm.DB, email string, slot int) (*models.Member, error) {
	if slot < 1 || slot > models.MaxMembersPerUser {
		return nil, ErrInvalidSlot
	}
	var member models.Member
	err := database.Where("email = ? AND slot = ?", email, slot).First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

// FindMemberByFirstName locates a member by first name. The chat endpoints
// identify members this way, mirroring how transcripts are keyed.
func FindMemberByFirstName(database *gorm.DB, email, firstName string) (*models.Member, error) {
	var member models.Member
	err := database.Where("email = ? AND first_name = ?", email, firstName).
		Order("slot").First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return &member, nil
}

// DeleteMember removes the member in the given slot and shifts every later
// slot down one, keeping slots contiguous.
func DeleteMember(database *gorm.DB, email string, slot int) error {
	target, err := GetMember(database, email, slot)
	if err != nil {
		return err
	}

	return database.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(target).Error; err != nil {
			return err
		}
		for i := slot + 1; i <= models.MaxMembersPerUser; i++ {
			if err := tx.Model(&models.Member{}).
				Where("email = ? AND slot = ?", email, i).
				Update("slot", i-1).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// IncrementTokens bumps a member's question counter by one.
// Fails with ErrQuestionLimit once the counter reaches the cap.
func IncrementTokens(database *gorm.DB, email, firstName string) (int, error) {
	member, err := FindMemberByFirstName(database, email, firstName)
	if err != nil {
		return 0, err
	}
	if member.Tokens >= QuestionTokenLimit {
		return member.Tokens, ErrQuestionLimit
	}

	newTokens := member.Tokens + 1
	if err := database.Model(member).Update("tokens", newTokens).Error; err != nil {
		return 0, err
	}
	return newTokens, nil
}

// GetTokens reads a member's question counter.
func GetTokens(database *gorm.DB, email, firstName string) (int, error) {
	member, err := FindMemberByFirstName(database, email, firstName)
	if err != nil {
		return 0, err
	}
	return member.Tokens, nil
}
