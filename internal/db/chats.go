package db

import (
	"errors"

	"github.com/medlife-ai/medassist/internal/db/models"
	"gorm.io/gorm"
)

// SaveChat stores a transcript for a (user, member) pair, replacing any
// previous one wholesale. messages is the serialized message list.
func SaveChat(database *gorm.DB, email, memberName, messages string) error {
	var record models.ChatRecord
	err := database.Where("email = ? AND member_name = ?", email, memberName).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return database.Create(&models.ChatRecord{
			Email:      email,
			MemberName: memberName,
			Messages:   messages,
		}).Error
	}
	if err != nil {
		return err
	}
	return database.Model(&record).Update("messages", messages).Error
}

// FetchChat returns the stored transcript JSON, or "" when none exists.
func FetchChat(database *gorm.DB, email, memberName string) (string, error) {
	var record models.ChatRecord
	err := database.Where("email = ? AND member_name = ?", email, memberName).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return record.Messages, nil
}
