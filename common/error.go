package common

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/webramesh/email-marketing-sub000/internal/dto"
)

type APIError struct {
	Status  int            `json:"-"`
	Message string         `json:"error"`
	Fields  map[string]any `json:"fields,omitempty"`
}

func (e APIError) Error() string {
	return e.Message
}

func Errf(status int, format string, args ...any) APIError {
	return APIError{Status: status, Message: fmt.Sprintf(format, args...)}
}

// NewAPIError creates an APIError with status, message, and optional fields
func NewAPIError(status int, message string, fields map[string]any) APIError {
	return APIError{
		Status:  status,
		Message: message,
		Fields:  fields,
	}
}

// FromError maps service and repository errors onto an APIError. Errors that are
// already APIErrors pass through; anything unrecognised becomes a 500 with fallback.
func FromError(err error, fallback string) APIError {
	var apiErr APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}

	var verr *dto.ValidationError
	if errors.As(err, &verr) {
		return NewAPIError(http.StatusBadRequest, verr.Message, verr.Fields)
	}

	switch {
	case errors.Is(err, context.Canceled):
		return Errf(http.StatusRequestTimeout, "request was canceled")
	case errors.Is(err, context.DeadlineExceeded):
		return Errf(http.StatusRequestTimeout, "request timeout")
	}

	return Errf(http.StatusInternalServerError, "%s", fallback)
}
