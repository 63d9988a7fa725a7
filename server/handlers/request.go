package handlers

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/teilomillet/chatrelay/errors"
	"github.com/teilomillet/chatrelay/server/processing"
)

// ChatRequest is the JSON body of a chat invocation.
type ChatRequest struct {
	// Message is required. A pointer separates an absent field from an
	// empty string, which is accepted.
	Message *string `json:"message" validate:"required"`

	// ConversationHistory defaults to an empty history.
	ConversationHistory processing.History `json:"conversationHistory" validate:"omitempty,dive"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by their JSON names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeChatRequest parses and validates body. Every failure is a
// ValidationError.
func decodeChatRequest(requestID, body string) (*ChatRequest, error) {
	var req ChatRequest
	if err := json.Unmarshal([]byte(body), &req); err != nil {
		return nil, errors.NewInvalidBodyError(requestID, err)
	}

	if err := validate.Struct(&req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) || len(verrs) == 0 {
			return nil, errors.NewValidationError(requestID, "invalid request body", nil)
		}
		return nil, validationError(requestID, verrs[0])
	}

	return &req, nil
}

func validationError(requestID string, fe validator.FieldError) error {
	// Namespace is "ChatRequest.conversationHistory[0].role"; drop the struct name.
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}

	details := map[string]interface{}{"field": field}

	switch {
	case field == "message" && fe.Tag() == "required":
		return errors.NewValidationError(requestID, "message is required", details)
	case fe.Tag() == "required":
		return errors.NewValidationError(requestID, fmt.Sprintf("%s is required", field), details)
	case fe.Tag() == "oneof":
		details["allowed"] = fe.Param()
		return errors.NewValidationError(requestID,
			fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", ")), details)
	default:
		return errors.NewValidationError(requestID, fmt.Sprintf("%s is invalid", field), details)
	}
}
