package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"lamisys/internal/domain"
)

type errorEnvelope struct {
	Error apiError `json:"error"`
}

type apiError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: apiError{Code: code, Message: message}})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func WriteDomainError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		WriteJSON(w, http.StatusBadRequest, errorEnvelope{Error: apiError{
			Code:    "validation_error",
			Message: "invalid request",
			Fields:  verr.Fields,
		}})
	case errors.Is(err, domain.ErrValidation):
		WriteError(w, http.StatusBadRequest, "validation_error", "invalid request")
	case errors.Is(err, domain.ErrEmailTaken):
		WriteError(w, http.StatusConflict, "email_taken", "email already taken")
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, "invalid_credentials", "invalid email or password")
	case errors.Is(err, domain.ErrUnauthorized):
		WriteError(w, http.StatusUnauthorized, "unauthorized", "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		WriteError(w, http.StatusForbidden, "forbidden", "forbidden")
	case errors.Is(err, domain.ErrSMTPNotConfigured):
		WriteError(w, http.StatusConflict, "smtp_not_configured", "smtp settings are not configured")
	case errors.Is(err, domain.ErrNotFound):
		WriteError(w, http.StatusNotFound, "not_found", "not found")
	default:
		WriteError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}
