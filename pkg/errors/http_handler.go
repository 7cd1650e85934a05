package errors

import (
	"encoding/json"
	"net/http"
)

// WriteError renders err as a JSON error body. Errors that are not AppErrors
// are reported as INTERNAL_ERROR without leaking their text.
func WriteError(w http.ResponseWriter, err error) error {
	appErr := AsAppError(err)
	w.Header().Set("Content-Type", "application/json")
	if appErr.Retryable {
		w.Header().Set("Retry-After", "1")
	}
	w.WriteHeader(appErr.StatusCode())
	return json.NewEncoder(w).Encode(appErr.response())
}
