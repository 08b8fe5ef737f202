package http

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"financas/internal/auth"
	"financas/internal/core"
	"financas/internal/log"
	"financas/internal/store"
)

const formDateLayout = "2006-01-02"

// errBadRequest marks input that could not be decoded at all.
var errBadRequest = errors.New("malformed request")

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// parseDate accepts a form date (YYYY-MM-DD), anchored at noon in loc so a
// time zone shift never moves it to another day, or an RFC 3339 timestamp.
func parseDate(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, core.ErrZeroDate
	}
	if d, err := time.ParseInLocation(formDateLayout, s, loc); err == nil {
		return time.Date(d.Year(), d.Month(), d.Day(), 12, 0, 0, 0, loc), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", core.ErrZeroDate, s)
	}
	return t, nil
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case core.IsValidationError(err),
		errors.Is(err, auth.ErrInvalidEmail),
		errors.Is(err, auth.ErrWeakPassword),
		errors.Is(err, auth.ErrEmailInUse):
		return http.StatusUnprocessableEntity
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// errorType classifies a response status for the error_type log field.
func errorType(status int) string {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return log.ErrorTypeValidation
	case http.StatusUnauthorized:
		return log.ErrorTypeAuth
	case http.StatusNotFound:
		return log.ErrorTypeNotFound
	default:
		return log.ErrorTypeInternal
	}
}

// userMessage is the text shown on pages for err. Internal errors are never
// described to the user.
func userMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidAmount):
		return "Informe um valor válido maior que zero."
	case errors.Is(err, core.ErrShortDescription):
		return "A descrição deve ter pelo menos 3 caracteres."
	case errors.Is(err, core.ErrDescriptionTooLong):
		return "A descrição deve ter no máximo 200 caracteres."
	case errors.Is(err, core.ErrEmptyCategory), errors.Is(err, core.ErrUnknownCategory):
		return "Selecione uma categoria."
	case errors.Is(err, core.ErrCategoryTypeMismatch):
		return "A categoria não corresponde ao tipo da transação."
	case errors.Is(err, core.ErrZeroDate):
		return "Informe uma data válida."
	case errors.Is(err, core.ErrInvalidType):
		return "Tipo de transação inválido."
	case errors.Is(err, core.ErrInvalidMonth), errors.Is(err, core.ErrInvalidYear):
		return "Período inválido."
	case errors.Is(err, auth.ErrInvalidEmail):
		return "Informe um email válido."
	case errors.Is(err, auth.ErrWeakPassword):
		return fmt.Sprintf("A senha deve ter pelo menos %d caracteres.", auth.MinPasswordLength)
	case errors.Is(err, auth.ErrEmailInUse):
		return "Este email já está cadastrado."
	case errors.Is(err, auth.ErrInvalidCredentials):
		return "Email ou senha incorretos."
	case errors.Is(err, store.ErrNotFound):
		return "Transação não encontrada."
	default:
		return "Ocorreu um erro inesperado. Tente novamente."
	}
}

func typeLabel(t core.TransactionType) string {
	if t == core.Income {
		return "Receita"
	}
	return "Despesa"
}
