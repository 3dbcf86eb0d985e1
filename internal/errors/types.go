// Package errors defines the coded error type shared by server and client.
// Codes travel on the wire in acknowledgements, ShowError messages and rpc
// metadata, so both ends agree on what went wrong. Only CONFIG_INVALID and
// INTERNAL_ERROR end the process; the rest are answered and play goes on.
package errors

import (
	"encoding/json"
	stderrors "errors"
	"strings"
)

// ErrorCode is the wire name of a failure class.
type ErrorCode string

const (
	ErrCodeLoginConflict    ErrorCode = "LOGIN_CONFLICT"
	ErrCodeLoginInvalid     ErrorCode = "LOGIN_INVALID"
	ErrCodeTransportFailure ErrorCode = "TRANSPORT_FAILURE"
	ErrCodeRuleViolation    ErrorCode = "RULE_VIOLATION"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
)

var recoverable = map[ErrorCode]bool{
	ErrCodeLoginConflict:    true,
	ErrCodeLoginInvalid:     true,
	ErrCodeTransportFailure: true,
	ErrCodeRuleViolation:    true,
	ErrCodeInvalidInput:     true,
	ErrCodeConfigInvalid:    false,
	ErrCodeInternal:         false,
}

// ParseCode reads a code received from a peer. Codes this build does not
// know become INTERNAL_ERROR; an empty string stays empty.
func ParseCode(s string) ErrorCode {
	c := ErrorCode(strings.ToUpper(strings.TrimSpace(s)))
	if c == "" {
		return ""
	}
	if _, ok := recoverable[c]; !ok {
		return ErrCodeInternal
	}
	return c
}

// Recoverable reports whether a session survives an error with this code.
func (c ErrorCode) Recoverable() bool {
	return recoverable[c]
}

// Error carries a code, a message meant for the player and the underlying
// cause if there is one.
type Error struct {
	Code    ErrorCode
	Message string
	Details map[string]string
	Cause   error
}

// Error formats as "message [CODE]", followed by the cause.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	b.WriteString(" [")
	b.WriteString(string(e.Code))
	b.WriteByte(']')
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error with the same code, so a bare New(code, "")
// works as a target for errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// WithDetail attaches key=value and returns e.
func (e *Error) WithDetail(key, value string) *Error {
	if e.Details == nil {
		e.Details = make(map[string]string, 1)
	}
	e.Details[key] = value
	return e
}

// MarshalJSON renders the error for logs and verbose output. The cause is
// flattened to its text.
func (e *Error) MarshalJSON() ([]byte, error) {
	out := struct {
		Code    ErrorCode         `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
		Cause   string            `json:"cause,omitempty"`
	}{Code: e.Code, Message: e.Message, Details: e.Details}
	if e.Cause != nil {
		out.Cause = e.Cause.Error()
	}
	return json.Marshal(out)
}

// ToJSON is the indented JSON form of e.
func (e *Error) ToJSON() string {
	data, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return e.Error()
	}
	return string(data)
}

func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap codes err. A nil err still yields an error.
func Wrap(err error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Cause: err}
}

// Is reports whether an *Error with code sits in err's chain.
func Is(err error, code ErrorCode) bool {
	return code != "" && GetCode(err) == code
}

// GetCode is the code of the outermost *Error in err's chain, or "".
func GetCode(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return ""
}

// Message is what the player should read: the message of the outermost
// *Error, or the text of a foreign error.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
