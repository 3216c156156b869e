package api

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

type AuthReason int

const (
	InvalidCredentials AuthReason = iota + 1
	Unauthorized
)

func (r AuthReason) String() string {
	switch r {
	case InvalidCredentials:
		return "invalid credentials"
	case Unauthorized:
		return "unauthorized"
	default:
		return "auth error"
	}
}

// AuthError is returned when the backend rejects credentials or the bearer token.
type AuthError struct {
	Reason  AuthReason
	Message string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return e.Reason.String()
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// FieldError is used to indicate an error with a specific field.
type FieldError struct {
	Field string
	Error string
}

// ValidationError carries the server's (or local validator's) message.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Error)
	}
	if e.Message == "" {
		return strings.Join(parts, "; ")
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// NetworkError is a transport failure: no response was received.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// StatusError is any other non-2xx response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Code)
	}
	return fmt.Sprintf("status %d: %s", e.Code, e.Message)
}

func IsUnauthorized(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Reason == Unauthorized
}

func IsInvalidCredentials(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Reason == InvalidCredentials
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// Message returns text suitable for showing to a user.
func Message(err error) string {
	var (
		ae *AuthError
		ve *ValidationError
		ne *NetworkError
		se *StatusError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ae):
		if ae.Message != "" {
			return ae.Message
		}
		if ae.Reason == InvalidCredentials {
			return "Invalid email or password"
		}
		return "Your session has expired, please log in again"
	case errors.As(err, &ve):
		return ve.Error()
	case errors.As(err, &ne):
		return "Could not reach the server"
	case errors.As(err, &se):
		if se.Message != "" {
			return se.Message
		}
		return "Unexpected server error"
	default:
		return err.Error()
	}
}
