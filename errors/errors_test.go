package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestRelayError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *RelayError
		want string
	}{
		{
			name: "basic error without wrapped error",
			err: &RelayError{
				Type:    ValidationError,
				Message: "message is required",
			},
			want: "validation_error: message is required",
		},
		{
			name: "error with wrapped error",
			err: &RelayError{
				Type:    TransportError,
				Message: "health check failed",
				err:     errors.New("connection refused"),
			},
			want: "transport_error: health check failed: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.err.Error()
			if got != tt.want {
				t.Errorf("RelayError.Error() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestRelayError_Is(t *testing.T) {
	err1 := &RelayError{Type: TransportError, Message: "test1"}
	err2 := &RelayError{Type: TransportError, Message: "test2"}
	err3 := &RelayError{Type: ValidationError, Message: "test3"}

	if !err1.Is(err2) {
		t.Error("Expected err1.Is(err2) to be true for same error type")
	}

	if err1.Is(err3) {
		t.Error("Expected err1.Is(err3) to be false for different error types")
	}
}

func TestRelayError_IsThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("invoke: %w", NewEmptyGenerationError("req"))

	if !errors.Is(wrapped, ErrEmptyGeneration) {
		t.Error("Expected wrapped empty generation error to match ErrEmptyGeneration")
	}
	if errors.Is(wrapped, ErrTransport) {
		t.Error("Expected wrapped empty generation error not to match ErrTransport")
	}
}

func TestRelayError_Unwrap(t *testing.T) {
	innerErr := errors.New("inner error")
	err := &RelayError{
		Type:    TransportError,
		Message: "outer error",
		err:     innerErr,
	}

	if unwrapped := err.Unwrap(); unwrapped != innerErr {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, innerErr)
	}
}
