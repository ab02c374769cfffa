// Package httputil centralizes JSON response writing so every handler emits
// the same envelope.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	vErrors "vsauth/pkg/errors"
)

// WriteJSON writes payload with the given status.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// WriteError translates a domain error into the JSON error envelope. Internal
// and store-side errors omit the description so infrastructure details never
// reach clients.
func WriteError(w http.ResponseWriter, err error) {
	code := vErrors.CodeOf(err)
	status := vErrors.ToHTTPStatus(code)

	body := map[string]string{"error": string(code)}
	switch code {
	case vErrors.CodeInternal, vErrors.CodeStoreUnavailable, vErrors.CodeSourceUnavailable, vErrors.CodeExhausted:
		// detail stays in the logs
	default:
		var domainErr *vErrors.Error
		if errors.As(err, &domainErr) && domainErr.Message != "" {
			body["error_description"] = domainErr.Message
		}
	}
	WriteJSON(w, status, body)
}

// Decode parses a JSON request body into T, answering with a validation error
// on malformed input. The bool result reports whether the caller may proceed.
func Decode[T any](w http.ResponseWriter, r *http.Request) (T, bool) {
	var payload T
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		WriteError(w, vErrors.New(vErrors.CodeValidation, "invalid request body"))
		var zero T
		return zero, false
	}
	return payload, true
}
