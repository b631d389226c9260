package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/baechuer/miniapp-auth/internal/domain"
)

// ErrorBody is flat so mini-program clients can read res.data.error directly.
type ErrorBody struct {
	Error     string            `json:"error"`
	Message   string            `json:"message"`
	Details   map[string]any    `json:"details,omitempty"`
	Meta      map[string]string `json:"meta,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

// WriteError converts a domain error into a consistent JSON HTTP error response.
// Non-domain errors are treated as internal errors (500) without leaking details.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	body := ErrorBody{
		Error:     "internal_error",
		Message:   "internal error",
		RequestID: RequestIDFromContext(r),
	}

	var de *domain.Error
	if errors.As(err, &de) {
		status = StatusFromKind(de.Kind)
		body.Error = de.Code
		body.Message = de.Message
		body.Meta = de.Meta
		// provider payloads are the only details clients ever see
		if de.Kind == domain.KindProvider {
			body.Details = de.Details
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// StatusFromKind maps domain error kinds to HTTP status codes.
func StatusFromKind(kind domain.ErrKind) int {
	switch kind {
	case domain.KindValidation, domain.KindProvider:
		return http.StatusBadRequest
	case domain.KindAuth:
		return http.StatusUnauthorized
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindMethod:
		return http.StatusMethodNotAllowed
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
