package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/medlife-ai/medassist/internal/db"
	"github.com/medlife-ai/medassist/internal/db/models"
	"gorm.io/gorm"
)

// memberRequest is the add/edit payload: a member profile plus the owning
// account's email.
type memberRequest struct {
	models.Member
	Email string `json:"email"`
}

// memberDetails is the member-details response shape. The chat screen keys
// off fullName, so it is included alongside the stored fields.
type memberDetails struct {
	models.Member
	FullName string `json:"fullName"`
}

// AddMemberHandler handles POST /medlife/addmember
func AddMemberHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req memberRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if req.Email == "" || req.FirstName == "" {
			writeDetail(w, http.StatusBadRequest, "Email and first name are required")
			return
		}

		slot, err := db.AddMember(database, req.Email, &req.Member)
		if err != nil {
			if errors.Is(err, db.ErrMemberLimit) {
				writeDetail(w, http.StatusBadRequest, "Maximum of 4 members allowed per user.")
				return
			}
			writeDetail(w, http.StatusInternalServerError, "Failed to add member")
			return
		}

		log.Printf("✅ Added member%d for %s", slot, req.Email)
		writeJSON(w, http.StatusOK, map[string]string{
			"message": fmt.Sprintf("member%d added successfully", slot),
		})
	}
}

// EditMemberHandler handles POST /medlife/editmember?member_index=N
func EditMemberHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slot, err := strconv.Atoi(r.URL.Query().Get("member_index"))
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid member index")
			return
		}

		var req memberRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if err := db.UpdateMember(database, req.Email, slot, &req.Member); err != nil {
			if errors.Is(err, db.ErrMemberNotFound) {
				writeDetail(w, http.StatusNotFound, fmt.Sprintf("Member %d not found", slot))
				return
			}
			writeDetail(w, http.StatusInternalServerError, "Failed to update member")
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "Member updated successfully"})
	}
}

// GetMembersHandler handles GET /medlife/getmember?email=...
func GetMembersHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		members, err := db.ListMembers(database, email)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, "Failed to list members")
			return
		}
		if members == nil {
			members = []models.Member{}
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"members": members})
	}
}

// DeleteMemberHandler handles DELETE /medlife/deletemember?email=...&member_index=N
func DeleteMemberHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		slot, err := strconv.Atoi(r.URL.Query().Get("member_index"))
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid member index")
			return
		}

		if err := db.DeleteMember(database, email, slot); err != nil {
			if errors.Is(err, db.ErrMemberNotFound) {
				writeDetail(w, http.StatusNotFound, fmt.Sprintf("Member %d not found", slot))
				return
			}
			writeDetail(w, http.StatusInternalServerError, "Failed to delete member")
			return
		}

		log.Printf("🔄 Deleted member%d for %s, remaining slots shifted", slot, email)
		writeJSON(w, http.StatusOK, map[string]string{
			"message": fmt.Sprintf("member%d deleted successfully", slot),
		})
	}
}

// MemberDetailsHandler handles GET /api/member-details/{email}/{memberIndex}
func MemberDetailsHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := chi.URLParam(r, "email")
		slot, err := strconv.Atoi(chi.URLParam(r, "memberIndex"))
		if err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid member index")
			return
		}

		member, err := db.GetMember(database, email, slot)
		if err != nil {
			if errors.Is(err, db.ErrMemberNotFound) {
				writeDetail(w, http.StatusNotFound, fmt.Sprintf("Member %d not found", slot))
				return
			}
			writeDetail(w, http.StatusInternalServerError, "Failed to fetch member")
			return
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"member": memberDetails{Member: *member, FullName: member.FullName()},
		})
	}
}

// UserGenderHandler handles GET /api/get-user-gender?email=...
// The account holder is always the slot 1 member; the gender is null when
// that profile does not exist or has no gender recorded.
func UserGenderHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")

		var gender *string
		if member, err := db.GetMember(database, email, 1); err == nil && member.Gender != "" {
			gender = &member.Gender
		}

		writeJSON(w, http.StatusOK, map[string]*string{"gender": gender})
	}
}

// TokensHandler handles GET /medlife/tokens/?email=...&member_name=...
// Each call counts one question against the member's allowance.
func TokensHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		memberName := r.URL.Query().Get("member_name")

		count, err := db.IncrementTokens(database, email, memberName)
		if err != nil {
			if errors.Is(err, db.ErrQuestionLimit) {
				writeDetail(w, http.StatusBadRequest, "Question limit exceeded.")
				return
			}
			if errors.Is(err, db.ErrMemberNotFound) {
				writeDetail(w, http.StatusNotFound, "Member not found")
				return
			}
			writeDetail(w, http.StatusInternalServerError, "Failed to update question count")
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": strconv.Itoa(count)})
	}
}

// TokensCountHandler handles GET /medlife/tokensCount/?email=...&member_name=...
func TokensCountHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		memberName := r.URL.Query().Get("member_name")

		count, err := db.GetTokens(database, email, memberName)
		if err != nil {
			if errors.Is(err, db.ErrMemberNotFound) {
				writeDetail(w, http.StatusNotFound, "Member not found")
				return
			}
			writeDetail(w, http.StatusInternalServerError, "Failed to fetch question count")
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": strconv.Itoa(count)})
	}
}
