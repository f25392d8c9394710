package middleware

import (
	"encoding/json"
	"net/http"
)

// writeError matches the {"error": code} body the handlers return.
func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}
