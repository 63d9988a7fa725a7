// Package errors provides the error model for the chatrelay handler.
// It defines a tagged error type whose variants describe every way a chat
// invocation can fail, plus JSON helpers for the local HTTP surface and
// integrated logging with Uber's zap logger.
//
// The handler collapses every variant except ConfigurationError into the same
// external contract (status 500 with a string error), but the variants stay
// distinct internally so callers and tests can match on them:
//
//	if errors.Is(err, errors.ErrTransport) {
//	    // the generation service could not be reached
//	}
//
// Constructors for each variant live in types.go.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// DefaultLogger is the default zap logger instance used throughout the package.
// It is initialized to a production configuration but can be overridden using SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger allows setting a custom zap logger instance.
// A nil logger is ignored.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType names the variant of a RelayError.
type ErrorType string

const (
	// ConfigurationError means the relay cannot run: the generation service
	// address is missing or the configuration is otherwise invalid.
	ConfigurationError ErrorType = "configuration_error"

	// TransportError covers connection failures, non-success statuses and
	// undecodable bodies from the generation service.
	TransportError ErrorType = "transport_error"

	// ValidationError represents a malformed inbound request.
	ValidationError ErrorType = "validation_error"

	// EmptyGenerationError means the generation service answered but produced no text.
	EmptyGenerationError ErrorType = "empty_generation_error"

	// RateLimitError is only produced by the local HTTP server.
	RateLimitError ErrorType = "rate_limit_error"

	// InternalError represents unexpected failures such as recovered panics.
	InternalError ErrorType = "internal_error"
)

// RelayError is the error type shared by every chatrelay package. It is
// serialized to JSON by WriteError while keeping the wrapped cause for
// logging and errors.Is/As chains.
type RelayError struct {
	// Type categorizes the error
	Type ErrorType `json:"type"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Code is the HTTP status code (not exposed in JSON)
	Code int `json:"-"`

	// RequestID links the error to a specific invocation
	RequestID string `json:"request_id,omitempty"`

	// Details contains additional error context
	Details map[string]interface{} `json:"details,omitempty"`

	err error
}

// Error combines the type, message and wrapped cause (if any).
func (e *RelayError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error.
func (e *RelayError) Unwrap() error {
	return e.err
}

// Is matches on Type only, so the sentinels below work with errors.Is.
func (e *RelayError) Is(target error) bool {
	t, ok := target.(*RelayError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// Sentinels for errors.Is matching.
var (
	ErrConfiguration   = &RelayError{Type: ConfigurationError}
	ErrTransport       = &RelayError{Type: TransportError}
	ErrValidation      = &RelayError{Type: ValidationError}
	ErrEmptyGeneration = &RelayError{Type: EmptyGenerationError}
)

// WriteError writes a RelayError as a JSON ErrorResponse with its status code.
// The wrapped cause is never written.
func WriteError(w http.ResponseWriter, err *RelayError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Code)
	if encErr := json.NewEncoder(w).Encode(err.Response()); encErr != nil {
		DefaultLogger.Error("failed to encode error response", zap.Error(encErr))
	}
}

// ErrorWithType is like http.Error but writes a typed RelayError. The request
// ID is taken from the response headers when the RequestID middleware ran.
func ErrorWithType(w http.ResponseWriter, message string, errType ErrorType, code int) {
	WriteError(w, NewError(errType, message, code, w.Header().Get("X-Request-ID"), nil, nil))
}
