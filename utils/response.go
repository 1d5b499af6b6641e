package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

// WriteJSON writes v as the JSON response body with the given status.
func WriteJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[response] encode failed: %v", err)
	}
}

// WriteError writes the API error envelope. Message must be safe for
// the wire; internal detail belongs in the log, not here.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
