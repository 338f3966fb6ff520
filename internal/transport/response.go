package transport

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every non-2xx JSON answer.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError sends an ErrorResponse. Details maps a field to the rule it broke.
func WriteError(w http.ResponseWriter, status int, message string, details map[string]string) {
	WriteJSON(w, status, ErrorResponse{
		Error:   message,
		Details: details,
	})
}

// WriteAttachment sends body as a download. filename must be plain ASCII.
func WriteAttachment(w http.ResponseWriter, contentType, filename string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}
