package errors

import (
	"errors"
)

// ErrorResponse is the JSON shape written by WriteError.
type ErrorResponse struct {
	Type      ErrorType              `json:"type"`
	Message   string                 `json:"message"`
	RequestID string                 `json:"request_id,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// Response returns the client-facing view of e.
func (e *RelayError) Response() ErrorResponse {
	return ErrorResponse{
		Type:      e.Type,
		Message:   e.Message,
		RequestID: e.RequestID,
		Details:   e.Details,
	}
}

// As is a wrapper around errors.As for better error type assertion
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Is is a wrapper around errors.Is so callers importing this package
// do not also need the standard library package.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
