package errors

import (
	"encoding/json"
	"net/http"

	jujuerrors "github.com/juju/errors"
	"github.com/rs/zerolog/log"
)

// Envelope wraps every API response body.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeConflict          = "CONFLICT"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

const genericInternalMessage = "An unexpected error occurred"

func WriteJSON(w http.ResponseWriter, status int, data interface{}, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(Envelope{
		Success: true,
		Data:    data,
		Message: message,
	})
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(Envelope{
		Success: false,
		Error:   http.StatusText(status),
		Message: message,
		Code:    code,
	})
}

// Respond maps a service error onto the envelope. Internal errors only expose
// their text when dev is set.
func Respond(w http.ResponseWriter, err error, dev bool) {
	status, code := Classify(err)
	message := err.Error()

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Msg("request failed")
		if !dev {
			message = genericInternalMessage
		}
	}

	WriteError(w, status, code, message)
}

// Classify returns the HTTP status and error code for err.
func Classify(err error) (int, string) {
	switch {
	case jujuerrors.Is(err, jujuerrors.NotValid), jujuerrors.Is(err, jujuerrors.BadRequest):
		return http.StatusBadRequest, ErrCodeInvalidInput
	case jujuerrors.Is(err, jujuerrors.Unauthorized):
		return http.StatusUnauthorized, ErrCodeUnauthorized
	case jujuerrors.Is(err, jujuerrors.Forbidden):
		return http.StatusForbidden, ErrCodeForbidden
	case jujuerrors.Is(err, jujuerrors.NotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case jujuerrors.Is(err, jujuerrors.AlreadyExists):
		return http.StatusConflict, ErrCodeConflict
	default:
		return http.StatusInternalServerError, ErrCodeInternal
	}
}
