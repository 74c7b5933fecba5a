package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 10

// PasswordValidationError lists every rule a password broke.
type PasswordValidationError struct {
	Messages []string
}

func (e *PasswordValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// ValidatePassword requires MinPasswordLength characters with at least one
// letter and one digit.
func ValidatePassword(password string) error {
	var messages []string

	if len([]rune(password)) < MinPasswordLength {
		messages = append(messages, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}

	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter {
		messages = append(messages, "password must contain at least 1 letter")
	}
	if !hasDigit {
		messages = append(messages, "password must contain at least 1 digit")
	}

	if len(messages) > 0 {
		return &PasswordValidationError{Messages: messages}
	}
	return nil
}

// ValidatePasswordOrError returns only the first broken rule, for API responses.
func ValidatePasswordOrError(password string) error {
	err := ValidatePassword(password)
	var validErr *PasswordValidationError
	if errors.As(err, &validErr) {
		return errors.New(validErr.Messages[0])
	}
	return err
}

// HashPassword returns the bcrypt hash of password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
