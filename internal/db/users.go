package db

import (
	"errors"

	"github.com/medlife-ai/medassist/internal/db/models"
	"gorm.io/gorm"
)

var (
	// ErrUserExists is returned when a signup reuses a registered email.
	ErrUserExists = errors.New("email already registered")
	// ErrUserNotFound is returned when no account matches the given login.
	ErrUserNotFound = errors.New("user not found")
)

// CreateUser registers a new account. The email must be unused.
func CreateUser(database *gorm.DB, username, email, passwordHash string) error {
	var count int64
	database.Model(&models.User{}).Where("email = ?", email).Count(&count)
	if count > 0 {
		return ErrUserExists
	}

	return database.Create(&models.User{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
	}).Error
}

// FindUserByLogin looks an account up by email or username.
func FindUserByLogin(database *gorm.DB, login string) (*models.User, error) {
	var user models.User
	err := database.Where("email = ? OR username = ?", login, login).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// GetUsername returns the username for an email, or "" when unknown.
func GetUsername(database *gorm.DB, email string) string {
	var user models.User
	if err := database.Where("email = ?", email).First(&user).Error; err != nil {
		return ""
	}
	return user.Username
}
