package user

import (
	"errors"
	"fmt"

	"github.com/nerrad567/prodev-core/internal/dbaccess"
)

// Domain errors for the user package.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, user.ErrUserNotFound) {
//	    // handle not found case
//	}
var (
	// ErrUserNotFound is returned when a user ID does not exist.
	ErrUserNotFound = errors.New("user: not found")

	// ErrUserExists is returned when creating a user with an ID that already exists.
	ErrUserExists = errors.New("user: already exists")

	// ErrEmailExists is returned when an email is already used by another user.
	ErrEmailExists = errors.New("user: email already in use")

	// ErrInvalidUser is returned when user validation fails.
	ErrInvalidUser = errors.New("user: invalid")

	// ErrInvalidCSV is returned when a seed file lacks a required column.
	ErrInvalidCSV = errors.New("user: invalid csv")
)

// rejected marks a domain error as a property of the request, so the
// access layer does not retry it.
func rejected(err error) error {
	return fmt.Errorf("%w: %w", dbaccess.ErrValidation, err)
}

// missing marks a not-found error the same way a missing row is marked.
func missing(err error) error {
	return fmt.Errorf("%w: %w", dbaccess.ErrNoRows, err)
}
