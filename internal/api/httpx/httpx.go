// Package httpx holds the small JSON response helpers shared by handlers
// and middleware.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/craftlink/craftlink-backend/internal/models"
)

type errorBody struct {
	Error   string         `json:"error"`
	Message string         `json:"message,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "err", err)
	}
}

func WriteError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	WriteJSON(w, status, errorBody{Error: code, Message: msg, Details: details})
}

// WriteServiceError maps the service error taxonomy onto HTTP statuses.
// Untyped errors are logged and reported as a generic 500 so internals
// never leak to clients.
func WriteServiceError(w http.ResponseWriter, err error) {
	var se *models.Error
	status := http.StatusInternalServerError
	code := "internal_error"
	msg := "internal error"
	if errors.As(err, &se) {
		code, msg = se.Code, se.Msg
		switch se.Kind {
		case models.KindValidation:
			status = http.StatusBadRequest
		case models.KindNotFound:
			status = http.StatusNotFound
		case models.KindStateConflict:
			status = http.StatusConflict
		case models.KindGateway:
			status = http.StatusBadGateway
		case models.KindIntegrity:
			status = http.StatusInternalServerError
		}
	} else {
		slog.Error("unhandled error", "err", err)
	}
	WriteError(w, status, code, msg, nil)
}

func Decode(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return models.Validation("invalid_body", "invalid JSON body")
	}
	return nil
}
