// Package shared centralizes JSON response and error envelope writing so
// handlers stay consistent.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "coalesce/pkg/domain-errors"
)

// WriteJSON writes v with the given status and a JSON content type.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError translates a domain error into the JSON error envelope. Unknown
// errors map to 500 without leaking detail.
func WriteError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := string(dErrors.CodeInternal)
	message := "internal error"

	var de dErrors.Error
	if errors.As(err, &de) {
		status = dErrors.ToHTTPStatus(de.Code)
		code = string(de.Code)
		message = de.Message
	}

	WriteJSON(w, status, map[string]string{
		"error":   code,
		"message": message,
	})
}
