package response

import (
	"encoding/json"
	"net/http"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}

// ErrorResponse is the error payload shape: a normalized message plus
// optional per-field validation details. Raw upstream bodies and
// stack traces never appear here.
type ErrorResponse struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

// WriteErrorDetails writes an error with validation details.
func WriteErrorDetails(w http.ResponseWriter, status int, message string, details []string) {
	WriteJSON(w, status, ErrorResponse{Error: message, Details: details})
}
