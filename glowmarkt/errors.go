package glowmarkt

import (
	"errors"
	"fmt"
)

// AuthenticationError means the API rejected our credentials or a refreshed
// token. The caller is expected to surface a reauthentication issue instead
// of retrying.
type AuthenticationError struct {
	Message string
	Err     error
}

func (e *AuthenticationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// CommunicationError covers timeouts, DNS failures and connection errors.
// These are transient, the next poll cycle is the retry.
type CommunicationError struct {
	Message string
	Err     error
}

func (e *CommunicationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *CommunicationError) Unwrap() error { return e.Err }

// APIError wraps any other unexpected failure, keeping the original cause
// for diagnostics.
type APIError struct {
	Message string
	Err     error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *APIError) Unwrap() error { return e.Err }

func IsAuthenticationError(err error) bool {
	var authErr *AuthenticationError
	return errors.As(err, &authErr)
}

func IsCommunicationError(err error) bool {
	var commErr *CommunicationError
	return errors.As(err, &commErr)
}
