package errors

import "fmt"

// LoginConflict reports a username already bound to an open session.
func LoginConflict(username string) *Error {
	return New(ErrCodeLoginConflict, fmt.Sprintf("username %q is already in use", username)).
		WithDetail("username", username)
}

// LoginInvalid reports a malformed or refused login request.
func LoginInvalid(reason string) *Error {
	return New(ErrCodeLoginInvalid, reason)
}

// TransportFailure wraps a send or receive failure of one session.
func TransportFailure(op string, err error) *Error {
	return Wrap(err, ErrCodeTransportFailure, fmt.Sprintf("transport %s failed", op)).
		WithDetail("op", op)
}

// RuleViolation reports a command the rule engine refused.
func RuleViolation(reason string) *Error {
	return New(ErrCodeRuleViolation, reason)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *Error {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// InvalidInput reports a message the receiver cannot interpret.
func InvalidInput(reason string) *Error {
	return New(ErrCodeInvalidInput, reason)
}
