package user

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Validation constants, matching the user_data column types.
const (
	maxNameLength  = 255
	maxEmailLength = 255
	maxAge         = 99999 // DECIMAL(5,0)
	emailPattern   = `^[^@\s]+@[^@\s]+\.[^@\s]+$`
)

var emailRegex = regexp.MustCompile(emailPattern)

// Validate checks every field of u. An empty ID is allowed; Create fills it.
func Validate(u *User) error {
	if u == nil {
		return ErrInvalidUser
	}
	if u.ID != "" {
		if err := ValidateID(u.ID); err != nil {
			return err
		}
	}
	if err := ValidateName(u.Name); err != nil {
		return err
	}
	if err := ValidateEmail(u.Email); err != nil {
		return err
	}
	return ValidateAge(u.Age)
}

// ValidateID checks that id is a UUID.
func ValidateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: user_id %q is not a UUID", ErrInvalidUser, id)
	}
	return nil
}

// ValidateName checks that name is present and fits the column.
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidUser)
	}
	if len(name) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidUser, maxNameLength)
	}
	return nil
}

// ValidateEmail checks the email shape and length.
func ValidateEmail(email string) error {
	if len(email) > maxEmailLength {
		return fmt.Errorf("%w: email exceeds %d characters", ErrInvalidUser, maxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return fmt.Errorf("%w: email %q is malformed", ErrInvalidUser, email)
	}
	return nil
}

// ValidateAge checks that age fits DECIMAL(5,0) and is not negative.
func ValidateAge(age int64) error {
	if age < 0 || age > maxAge {
		return fmt.Errorf("%w: age %d out of range 0..%d", ErrInvalidUser, age, maxAge)
	}
	return nil
}
