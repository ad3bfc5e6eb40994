package api

import (
	"errors"
	"fmt"
)

// Error is a backend-reported failure: a non-success HTTP status with
// the structured detail string the backend returns.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("backend error (%d): %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("backend error (%d)", e.StatusCode)
}

// AuthError indicates that the backend rejected the bearer credential.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error: %s", e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}
