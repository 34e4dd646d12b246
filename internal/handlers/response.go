// internal/handlers/response.go
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ammerola/pos-ledger/internal/core/domain"
	"github.com/ammerola/pos-ledger/internal/pkg/logger"
)

// maxJSONBody caps request bodies decoded as JSON
const maxJSONBody = 1 << 20

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

type responder struct {
	logger *slog.Logger
}

func (h responder) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode JSON response",
			slog.String("error", err.Error()))
	}
}

func (h responder) respondError(w http.ResponseWriter, r *http.Request, status int, message string) {
	h.respondJSON(w, status, ErrorResponse{
		Error:     message,
		RequestID: logger.RequestID(r.Context()),
	})
}

// handleError maps the domain error taxonomy to a status code. Client
// errors carry their message; anything else is logged and hidden.
func (h responder) handleError(w http.ResponseWriter, r *http.Request, err error, op string) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), op+" failed", slog.String("error", err.Error()))
		message := "internal server error"
		if status == http.StatusServiceUnavailable {
			message = "ledger storage unavailable"
		}
		h.respondError(w, r, status, message)
		return
	}

	h.logger.DebugContext(r.Context(), op+" rejected", slog.String("error", err.Error()))
	h.respondError(w, r, status, err.Error())
}

// StatusFor returns the HTTP status of a service error
func StatusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrInsufficientPayment):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrEmptyCart):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidConfirmation):
		return http.StatusGone
	case errors.Is(err, domain.ErrInvalidCredentials),
		errors.Is(err, domain.ErrUnauthenticated),
		errors.Is(err, domain.ErrSessionExpired):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrPersistence):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a single JSON document from the body
func decodeJSON(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewValidationError("", "request body is required")
		}
		return domain.NewValidationError("", "invalid request body")
	}
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("id", "must be a positive integer")
	}
	return id, nil
}

func queryBool(r *http.Request, name string) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get(name))
	return err == nil && v
}
