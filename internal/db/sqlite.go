package db

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"

	"github.com/glebarez/sqlite"
	"github.com/medlife-ai/medassist/internal/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitDB initializes the SQLite database connection and runs migrations.
func InitDB(dbPath string) (*gorm.DB, error) {
	database, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Auto-migrate all models
	if err := database.AutoMigrate(
		&models.User{},
		&models.Member{},
		&models.ChatRecord{},
		&models.Setting{},
	); err != nil {
		return nil, err
	}

	// Ensure a JWT signing secret exists (generate on first run)
	if err := ensureJWTSecret(database); err != nil {
		return nil, fmt.Errorf("jwt secret setup: %w", err)
	}

	return database, nil
}

// ensureJWTSecret generates a signing secret if not exists
func ensureJWTSecret(database *gorm.DB) error {
	var setting models.Setting
	result := database.Where("key = ?", "jwt_secret").First(&setting)
	if result.Error == nil {
		return nil
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return err
	}

	if err := database.Create(&models.Setting{
		Key:   "jwt_secret",
		Value: hex.EncodeToString(secretBytes),
	}).Error; err != nil {
		return err
	}
	log.Printf("🔑 Generated new JWT signing secret")
	return nil
}

// GetJWTSecret retrieves the JWT signing secret from the database
func GetJWTSecret(database *gorm.DB) string {
	var setting models.Setting
	database.Where("key = ?", "jwt_secret").First(&setting)
	return setting.Value
}
