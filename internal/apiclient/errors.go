package apiclient

import (
	"errors"
	"fmt"

	"dams/internal/forms"
)

var (
	// ErrInvalidResponse is returned when a 2xx body lacks the fields the endpoint promises.
	ErrInvalidResponse = errors.New("Invalid response format")
	// ErrInvalidStatus is returned for status targets other than COMPLETE or CANCELLED.
	ErrInvalidStatus = errors.New("apiclient: status must be COMPLETE or CANCELLED")
	// ErrMissingID is returned when an appointment or doctor id is empty.
	ErrMissingID = errors.New("apiclient: id required")
)

// Fallback messages shown when an error carries nothing better.
const (
	FallbackLogin    = "Invalid credentials. Please try again."
	FallbackRegister = "Something went wrong. Please try again."
	FallbackBooking  = "Unknown error occurred."
	FallbackStatus   = "Failed to update appointment status"
)

// APIError is a non-2xx response, or a 2xx envelope with success=false.
type APIError struct {
	StatusCode int
	Message    string
	Method     string
	Path       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
}

// ErrorMessage picks the single human-readable line to show for err.
func ErrorMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return apiErr.Message
		}
		return fallback
	}
	var vErr *forms.ValidationError
	if errors.As(err, &vErr) {
		if msg := vErr.Message(); msg != "" {
			return msg
		}
	}
	if errors.Is(err, ErrInvalidResponse) {
		return ErrInvalidResponse.Error()
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return fallback
}
