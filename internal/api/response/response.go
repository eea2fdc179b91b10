package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/security"
	"github.com/rs/zerolog/log"
)

// Response represents a standard API response
type Response struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
	Error   any  `json:"error,omitempty"`
}

// JSON sends a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := Response{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	json.NewEncoder(w).Encode(resp)
}

// Error sends an error response
func Error(w http.ResponseWriter, status int, message any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := Response{
		Success: false,
		Error:   message,
	}

	json.NewEncoder(w).Encode(resp)
}

// NoContent sends a 204 No Content response
func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// Created sends a 201 Created response with data
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

// OK sends a 200 OK response with data
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

// BadRequest sends a 400 Bad Request response
func BadRequest(w http.ResponseWriter, message any) {
	Error(w, http.StatusBadRequest, message)
}

// Unauthorized sends a 401 Unauthorized response
func Unauthorized(w http.ResponseWriter, message any) {
	Error(w, http.StatusUnauthorized, message)
}

// Forbidden sends a 403 Forbidden response
func Forbidden(w http.ResponseWriter, message any) {
	Error(w, http.StatusForbidden, message)
}

// NotFound sends a 404 Not Found response
func NotFound(w http.ResponseWriter, message any) {
	Error(w, http.StatusNotFound, message)
}

// Conflict sends a 409 Conflict response
func Conflict(w http.ResponseWriter, message any) {
	Error(w, http.StatusConflict, message)
}

// TooManyRequests sends a 429 Too Many Requests response
func TooManyRequests(w http.ResponseWriter, message any) {
	Error(w, http.StatusTooManyRequests, message)
}

// InternalError sends a 500 Internal Server Error response
func InternalError(w http.ResponseWriter, message any) {
	Error(w, http.StatusInternalServerError, message)
}

// ServiceUnavailable sends a 503 Service Unavailable response
func ServiceUnavailable(w http.ResponseWriter, message any) {
	Error(w, http.StatusServiceUnavailable, message)
}

// FromError maps domain errors to a status code. Unknown errors are logged and hidden.
func FromError(w http.ResponseWriter, err error) {
	var validationErr *security.ValidationError

	switch {
	case errors.As(err, &validationErr):
		BadRequest(w, validationErr.Message)
	case errors.Is(err, domain.ErrInvalidInput):
		BadRequest(w, err.Error())
	case errors.Is(err, domain.ErrSessionNotFound):
		NotFound(w, domain.ErrSessionNotFound.Error())
	case errors.Is(err, domain.ErrAgentNotFound):
		NotFound(w, domain.ErrAgentNotFound.Error())
	case errors.Is(err, domain.ErrEmailTaken):
		Conflict(w, domain.ErrEmailTaken.Error())
	case errors.Is(err, domain.ErrInvalidCredentials):
		Unauthorized(w, domain.ErrInvalidCredentials.Error())
	case errors.Is(err, domain.ErrNoAgentsAvailable):
		ServiceUnavailable(w, domain.ErrNoAgentsAvailable.Error())
	case errors.Is(err, domain.ErrStoreUnavailable):
		log.Error().Err(err).Msg("Store unavailable")
		ServiceUnavailable(w, domain.ErrStoreUnavailable.Error())
	default:
		log.Error().Err(err).Msg("Unhandled request error")
		InternalError(w, "internal server error")
	}
}
