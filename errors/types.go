package errors

import (
	"errors"
	"net/http"
)

// NewError creates a RelayError with full control over its fields. For most
// cases, use one of the variant constructors below.
//
// Example:
//
//	err := NewError(InternalError, "encoder failed", 500, "req_123", nil, encErr)
func NewError(errType ErrorType, message string, code int, requestID string, details map[string]interface{}, err error) *RelayError {
	return &RelayError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		Details:   details,
		err:       err,
	}
}

// NewConfigurationError reports a configuration the relay cannot run with,
// such as a missing generation service address. It is fatal: the handler
// returns it instead of turning it into a response envelope.
//
// Example:
//
//	err := NewConfigurationError("API_URL is not set", nil)
func NewConfigurationError(message string, err error) *RelayError {
	return &RelayError{
		Type:    ConfigurationError,
		Message: message,
		Code:    http.StatusInternalServerError,
		err:     err,
	}
}

// NewTransportError reports a failed call to the generation service:
//   - the connection could not be established
//   - the service answered with a non-success status
//   - the body could not be decoded
//
// Example:
//
//	err := NewTransportError("req_123", "health check failed", connErr)
func NewTransportError(requestID, message string, err error) *RelayError {
	return &RelayError{
		Type:      TransportError,
		Message:   message,
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}

// NewValidationError reports a malformed inbound request body.
//
// Example:
//
//	err := NewValidationError("req_123", "message is required", map[string]interface{}{
//	    "field": "message",
//	})
func NewValidationError(requestID, message string, details map[string]interface{}) *RelayError {
	return &RelayError{
		Type:      ValidationError,
		Message:   message,
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		Details:   details,
	}
}

// NewInvalidBodyError reports an inbound body that could not be decoded. The
// decoder's error is kept as the cause so it shows up in Error().
//
// Example:
//
//	err := NewInvalidBodyError("req_123", jsonErr)
func NewInvalidBodyError(requestID string, err error) *RelayError {
	return &RelayError{
		Type:      ValidationError,
		Message:   "invalid request body",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}

// NewEmptyGenerationError reports a generation call that succeeded without
// producing any text.
func NewEmptyGenerationError(requestID string) *RelayError {
	return &RelayError{
		Type:      EmptyGenerationError,
		Message:   "no response content from the model",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
	}
}

// NewRateLimitError creates a rate limit error for the local HTTP server.
func NewRateLimitError(requestID string, limit int, window string) *RelayError {
	return &RelayError{
		Type:      RateLimitError,
		Message:   "Rate limit exceeded",
		Code:      http.StatusTooManyRequests,
		RequestID: requestID,
		Details: map[string]interface{}{
			"limit":  limit,
			"window": window,
		},
	}
}

// NewInternalError creates an internal server error for unexpected failures.
func NewInternalError(requestID string, err error) *RelayError {
	return &RelayError{
		Type:      InternalError,
		Message:   "An internal error occurred",
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}

// StatusCode maps an error to the status the chat handler responds with.
// Every handler-visible variant maps to 500, so callers only ever see one
// failure status regardless of the underlying cause.
func StatusCode(err error) int {
	var relayErr *RelayError
	if !errors.As(err, &relayErr) {
		return http.StatusInternalServerError
	}
	switch relayErr.Type {
	case ConfigurationError, TransportError, ValidationError, EmptyGenerationError, InternalError:
		return http.StatusInternalServerError
	case RateLimitError:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// TypeOf returns the variant of err, or InternalError for foreign errors.
func TypeOf(err error) ErrorType {
	var relayErr *RelayError
	if errors.As(err, &relayErr) {
		return relayErr.Type
	}
	return InternalError
}
