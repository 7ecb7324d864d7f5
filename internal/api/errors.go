package api

import (
	"encoding/json"
	"net/http"
)

// writeJSON writes v with the given status code.
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body with the given status code.
func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeNotFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

// jsonMarshal is a seam for the cached-response path; payloads are
// stored marshaled so hits skip encoding entirely.
func jsonMarshal(v any) ([]byte, error) {
	return json.Marshal(v)
}
