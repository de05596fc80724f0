package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/medlife-ai/medassist/internal/export"
)

// ExportChatHandler handles POST /medlife/exportChat/
// The body carries the subject name and the transcript entries; the response
// is a downloadable HTML document.
func ExportChatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Subject string         `json:"subject"`
			Chat    []export.Entry `json:"chat"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeDetail(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		if len(req.Chat) == 0 {
			writeDetail(w, http.StatusBadRequest, "Nothing to export")
			return
		}
		if req.Subject == "" {
			req.Subject = strings.ReplaceAll(r.URL.Query().Get("member_name"), "_", " ")
		}

		doc := export.Render(req.Subject, req.Chat)
		filename := "chat_transcript"
		if s := strings.TrimSpace(req.Subject); s != "" {
			filename = strings.ReplaceAll(s, " ", "_") + "_transcript"
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename+".html"))
		w.WriteHeader(http.StatusOK)
		w.Write(doc)
	}
}
