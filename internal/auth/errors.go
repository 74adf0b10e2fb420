package auth

import (
	"errors"
	"fmt"
)

var (
	// ErrNoData is returned when the login payload is absent or empty.
	ErrNoData = errors.New("No data provided")
	// ErrInvalidIdentity signals that the identity token did not verify or does not match the payload.
	ErrInvalidIdentity = errors.New("invalid identity")
	// ErrUnauthorized represents a missing, expired or tampered session.
	ErrUnauthorized = errors.New("unauthorized")
)

// MissingFieldError names the required login field that was absent.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("Missing required field: %s", e.Field)
}
