package json

import (
	"encoding/json"
	"net/http"
)

// WriteJSON encodes the response with the given status. Encoding failures
// after the status line has been written can only be logged upstream, so the
// fallback here is best-effort.
func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// DecodeJSON parses the request body into a typed value, rejecting unknown
// fields so client typos surface as errors instead of silently dropped input.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
