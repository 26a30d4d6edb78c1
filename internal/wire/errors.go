package wire

import (
	"encoding/json"
	"fmt"
)

// Code is an entry of the protocol error catalogue.
type Code string

const (
	CodeInvalidProtocol  Code = "0001.0002.0001"
	CodeInvalidStructure Code = "0001.0002.0002"
	CodeInvalidEventType Code = "0001.0002.0003"
	CodeServiceNotFound  Code = "0001.0002.0004"
	CodeDomainNotFound   Code = "0001.0002.0005"
	CodeEventNotFound    Code = "0001.0002.0006"
	CodeCatchError       Code = "0001.0002.9999"
)

var codeNames = map[Code]string{
	CodeInvalidProtocol:  "INVALID_PROTOCOL",
	CodeInvalidStructure: "INVALID_STRUCTURE",
	CodeInvalidEventType: "INVALID_EVENT_TYPE",
	CodeServiceNotFound:  "SERVICE_NOT_FOUND",
	CodeDomainNotFound:   "DOMAIN_NOT_FOUND",
	CodeEventNotFound:    "EVENT_NOT_FOUND",
	CodeCatchError:       "CATCH_ERROR",
}

// Name returns the symbolic name of the code, or the raw code when unknown.
func (c Code) Name() string {
	if n, ok := codeNames[c]; ok {
		return n
	}
	return string(c)
}

// Error is a structured protocol failure.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// NewError builds an *Error with a formatted message.
func NewError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error renders the failure as the JSON object the channel would carry.
func (e *Error) Error() string {
	b, err := json.Marshal(e.Payload())
	if err != nil {
		return fmt.Sprintf("%s: %s", e.Code.Name(), e.Message)
	}
	return string(b)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

// Payload converts the error into its wire form.
func (e *Error) Payload() ErrorPayload {
	return ErrorPayload{Code: e.Code, Message: e.Message}
}
