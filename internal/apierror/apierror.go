// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"net/http"

	"github.com/FerQode/facturacion-sri-api2-sub000/internal/apperror"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail   string   `json:"detail"`
	Code     string   `json:"code,omitempty"`
	Rule     string   `json:"rule,omitempty"`
	Messages []string `json:"messages,omitempty"`
	// Retryable tells clients the same request may succeed later.
	Retryable bool `json:"retryable,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Error de validacion", Fields: fields}
}

// FromError maps a service error onto a status code and a safe body.
// Anything outside the taxonomy is an internal error and its text is hidden.
func FromError(err error) (int, any) {
	e, ok := apperror.As(err)
	if !ok {
		return http.StatusInternalServerError, New("Error interno del servidor")
	}
	body := &APIError{Detail: e.Error(), Code: e.Kind.String(), Retryable: e.Retryable()}
	switch e.Kind {
	case apperror.KindNotFound:
		return http.StatusNotFound, body
	case apperror.KindValidation:
		return http.StatusUnprocessableEntity, &ValidationError{
			Detail: e.Error(),
			Fields: map[string]string{e.Field: e.Reason},
		}
	case apperror.KindBusinessRule:
		body.Rule = string(e.Rule)
		return http.StatusConflict, body
	case apperror.KindConcurrency:
		body.Detail = "El recurso está ocupado, intente nuevamente"
		return http.StatusConflict, body
	case apperror.KindFiscalRejection:
		body.Messages = e.Messages
		return http.StatusUnprocessableEntity, body
	case apperror.KindFiscalUnavailable:
		body.Detail = "El SRI no está disponible; el envío quedó programado"
		return http.StatusAccepted, body
	case apperror.KindIntegrityConflict:
		body.Detail = "Conflicto de integridad"
		return http.StatusConflict, body
	}
	return http.StatusInternalServerError, New("Error interno del servidor")
}
