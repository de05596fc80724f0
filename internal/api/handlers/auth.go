package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/medlife-ai/medassist/internal/auth"
	"github.com/medlife-ai/medassist/internal/db"
	"gorm.io/gorm"
)

type signupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signinRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

// SignupHandler handles POST /signup
func SignupHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signupRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if err := auth.ValidateEmail(req.Email); err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}
		if err := auth.ValidatePassword(req.Password); err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		hash, err := auth.HashPassword(req.Password)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, "Failed to create account")
			return
		}

		if err := db.CreateUser(database, req.Username, req.Email, hash); err != nil {
			if errors.Is(err, db.ErrUserExists) {
				writeDetail(w, http.StatusConflict, "Email already registered")
				return
			}
			writeDetail(w, http.StatusInternalServerError, "Failed to create account")
			return
		}

		log.Printf("✅ New account registered: %s", req.Email)
		writeJSON(w, http.StatusOK, map[string]string{
			"message": "Account created successfully",
			"email":   req.Email,
		})
	}
}

// SigninHandler handles POST /signin.
// Accepts either email or username in the login field and returns a bearer token.
func SigninHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req signinRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		user, err := db.FindUserByLogin(database, req.Login)
		if err != nil || !auth.VerifyPassword(req.Password, user.PasswordHash) {
			writeDetail(w, http.StatusUnauthorized, "Incorrect email/username or password")
			return
		}

		secret := db.GetJWTSecret(database)
		token, err := auth.CreateAccessToken(secret, user.Email, auth.AccessTokenTTL)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, "Failed to issue access token")
			return
		}

		log.Printf("🔑 Login successful: %s (token valid %s)", user.Email, auth.AccessTokenTTL.Round(time.Minute))
		writeJSON(w, http.StatusOK, map[string]string{
			"message":      "Login successful",
			"email":        user.Email,
			"access_token": token,
		})
	}
}

// UsernameHandler handles GET /api/get-username?email=...
func UsernameHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		username := db.GetUsername(database, email)
		writeJSON(w, http.StatusOK, map[string]string{"username": username})
	}
}
