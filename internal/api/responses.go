package api

import (
	"encoding/json"
	"net/http"
)

// WriteJSON writes a UTF-8 JSON response with the given status code.
// Non-ASCII and HTML characters are written literally.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.Encode(v)
}

// ErrorResponse is the standard error response body. Duration is present
// only when the audio was probed before the request was refused.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Duration *float64 `json:"duration,omitempty"`
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, msg string) {
	WriteJSON(w, status, ErrorResponse{Error: msg})
}
