package auth

import (
	"errors"
	"regexp"

	"golang.org/x/crypto/bcrypt"
)

var emailRegexp = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

var (
	upperRegexp   = regexp.MustCompile(`[A-Z]`)
	lowerRegexp   = regexp.MustCompile(`[a-z]`)
	digitRegexp   = regexp.MustCompile(`[0-9]`)
	specialRegexp = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>\/?]`)
)

// HashPassword hashes a password with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether password matches the stored hash.
func VerifyPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// ValidateEmail checks the address shape accepted at signup.
func ValidateEmail(email string) error {
	if !emailRegexp.MatchString(email) {
		return errors.New("invalid email format")
	}
	return nil
}

// ValidatePassword enforces the signup complexity rules.
func ValidatePassword(password string) error {
	switch {
	case len(password) < 8:
		return errors.New("password must be at least 8 characters long")
	case !upperRegexp.MatchString(password):
		return errors.New("password must contain at least one uppercase letter")
	case !lowerRegexp.MatchString(password):
		return errors.New("password must contain at least one lowercase letter")
	case !digitRegexp.MatchString(password):
		return errors.New("password must contain at least one numeric digit")
	case !specialRegexp.MatchString(password):
		return errors.New("password must contain at least one special character")
	}
	return nil
}
