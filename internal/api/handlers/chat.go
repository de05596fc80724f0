package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/medlife-ai/medassist/internal/db"
	"github.com/medlife-ai/medassist/internal/providers"
	"github.com/medlife-ai/medassist/internal/upstream"
	"github.com/medlife-ai/medassist/internal/util"
	"gorm.io/gorm"
)

// Asker answers a health question against one provider's API.
type Asker interface {
	Ask(ctx context.Context, cfg providers.Config, apiKey, model, question string) (string, error)
}

// patientData carries the member profile attached to a question so the
// answer can account for the patient's particulars.
type patientData struct {
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	DOB           string `json:"dob"`
	Race          string `json:"race"`
	Gender        string `json:"gender"`
	Height        string `json:"height"`
	Weight        string `json:"weight"`
	A1C           string `json:"a1c"`
	BloodPressure string `json:"bloodPressure"`
	Medicine      string `json:"medicine"`
}

// AskAIHandler handles GET /medlife/ask_ai/
// Query params: query, api_key, provider, email, member_data (JSON), and an
// optional fallback_provider used when Claude rejects the account for
// insufficient credits.
func AskAIHandler(client Asker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query := q.Get("query")
		apiKey := q.Get("api_key")
		provider := q.Get("provider")
		memberData := q.Get("member_data")
		fallback := strings.ToLower(strings.TrimSpace(q.Get("fallback_provider")))

		if strings.TrimSpace(query) == "" {
			writeDetail(w, http.StatusBadRequest, "Query must not be empty")
			return
		}
		if apiKey == "" {
			writeDetail(w, http.StatusBadRequest, "Please provide a valid API key to continue.")
			return
		}

		cfg, ok := providers.Get(provider)
		if !ok {
			// Unknown provider ids fall through to the default.
			cfg, _ = providers.Get(providers.OpenAI)
		}
		model := cfg.Models[0]

		question := buildQuestion(query, memberData)
		requestId := GetOrGenerateRequestID(r)
		log.Printf("📨 [%s] ask_ai provider=%s model=%s query=%s", requestId, cfg.ID, model, util.TruncateLog(query, 200))

		answer, err := client.Ask(r.Context(), cfg, apiKey, model, question)
		if err != nil && cfg.ID == providers.Claude && errors.Is(err, upstream.ErrInsufficientCredits) {
			if fbAnswer, ok := askFallback(r.Context(), client, fallback, question, requestId); ok {
				writeJSON(w, http.StatusOK, fbAnswer)
				return
			}
		}
		if err != nil {
			log.Printf("⚠️ [%s] ask_ai failed: %v", requestId, err)
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, answer)
	}
}

// askFallback retries a question against the fallback provider using the
// server's own key from the <PROVIDER>_API_KEY environment variable. It
// reports false when no fallback is configured or the retry fails, so the
// caller surfaces the primary rejection unchanged.
func askFallback(ctx context.Context, client Asker, fallback, question, requestId string) (string, bool) {
	cfg, ok := providers.Get(fallback)
	if !ok {
		return "", false
	}
	key := os.Getenv(strings.ToUpper(cfg.ID) + "_API_KEY")
	if key == "" {
		return "", false
	}

	log.Printf("🔄 [%s] retrying with fallback provider %s", requestId, cfg.ID)
	answer, err := client.Ask(ctx, cfg, key, cfg.Models[0], question)
	if err != nil {
		log.Printf("⚠️ [%s] fallback %s failed: %v", requestId, cfg.ID, err)
		return "", false
	}
	return answer, true
}

// PromptHandler handles GET /medlife/prompt/, a bare question endpoint with
// no member context. It always asks OpenAI with the caller's key.
func PromptHandler(client Asker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("query")
		apiKey := r.URL.Query().Get("api_key")
		if apiKey == "" {
			writeDetail(w, http.StatusBadRequest, "OpenAI API key is required")
			return
		}

		cfg, _ := providers.Get(providers.OpenAI)
		question := "Act as a healthcare AI assistant, that means you can answer only health related questions. The given data contains patient details and the patient's question, here it is: " + query

		answer, err := client.Ask(r.Context(), cfg, apiKey, cfg.Models[0], question)
		if err != nil {
			writeDetail(w, http.StatusBadRequest, err.Error())
			return
		}

		writeJSON(w, http.StatusOK, answer)
	}
}

// buildQuestion folds the patient profile into the question text. An empty
// or unparseable member_data leaves the question as-is.
func buildQuestion(query, memberData string) string {
	if memberData == "" {
		return query
	}
	var p patientData
	if err := json.Unmarshal([]byte(memberData), &p); err != nil {
		return query
	}
	if p.FirstName == "" && p.LastName == "" {
		return query
	}

	var b strings.Builder
	b.WriteString("Patient details:\n")
	fields := []struct{ label, value string }{
		{"Name", strings.TrimSpace(p.FirstName + " " + p.LastName)},
		{"Date of birth", p.DOB},
		{"Race", p.Race},
		{"Gender", p.Gender},
		{"Height", p.Height},
		{"Weight", p.Weight},
		{"A1C", p.A1C},
		{"Blood pressure", p.BloodPressure},
		{"Current medication", p.Medicine},
	}
	for _, f := range fields {
		if f.value != "" {
			fmt.Fprintf(&b, "- %s: %s\n", f.label, f.value)
		}
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	return b.String()
}

// SaveChatHandler handles POST /medlife/saveChat/?email=...&member_name=...
func SaveChatHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		memberName := r.URL.Query().Get("member_name")
		if email == "" || memberName == "" {
			writeDetail(w, http.StatusBadRequest, "email and member_name are required")
			return
		}

		var req struct {
			Chat json.RawMessage `json:"chat"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid request body")
			return
		}

		if err := db.SaveChat(database, email, memberName, string(req.Chat)); err != nil {
			writeDetail(w, http.StatusInternalServerError, "Failed to save chat")
			return
		}

		writeJSON(w, http.StatusOK, map[string]string{"message": "Chat data saved successfully"})
	}
}

// FetchChatHandler handles GET /medlife/fetchChat/?email=...&member_name=...
// Returns {"chat": []} when no transcript exists yet.
func FetchChatHandler(database *gorm.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email := r.URL.Query().Get("email")
		memberName := r.URL.Query().Get("member_name")

		stored, err := db.FetchChat(database, email, memberName)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, "Failed to fetch chat")
			return
		}
		if stored == "" {
			stored = "[]"
		}

		writeJSON(w, http.StatusOK, map[string]interface{}{
			"chat": json.RawMessage(stored),
		})
	}
}
