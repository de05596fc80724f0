package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
)

// writeJSON encodes v as the response body with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️ Failed to encode response: %v", err)
	}
}

// writeDetail writes an error body in the form {"detail": "..."}.
// Every error surface in the API uses this shape so clients can rely on it.
func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// GetOrGenerateRequestID retrieves X-Request-ID from header or generates a new one.
// Format: "web-{uuid}" if generated.
func GetOrGenerateRequestID(r *http.Request) string {
	if requestId := r.Header.Get("X-Request-ID"); requestId != "" {
		return requestId
	}
	return "web-" + uuid.New().String()
}
