// Package plate normalizes and validates Brazilian Mercosul license plates.
package plate

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrRequired      = errors.New("plate is required")
	ErrInvalidFormat = errors.New("invalid plate, expected the Mercosul layout ABC1D23")
)

var mercosul = regexp.MustCompile(`^[A-Z]{3}[0-9][A-Z][0-9]{2}$`)

// Clean trims surrounding whitespace and uppercases the input.
func Clean(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func IsValidMercosul(s string) bool {
	return mercosul.MatchString(Clean(s))
}

// Normalize returns the canonical form of s and true, or "" and false when s
// is not a Mercosul plate.
func Normalize(s string) (string, bool) {
	c := Clean(s)
	if !mercosul.MatchString(c) {
		return "", false
	}
	return c, true
}

func Validate(s string) error {
	c := Clean(s)
	if c == "" {
		return ErrRequired
	}
	if !mercosul.MatchString(c) {
		return ErrInvalidFormat
	}
	return nil
}

// ValidateWithMessage returns "" for a valid plate, otherwise the user facing
// reason it was rejected.
func ValidateWithMessage(s string) string {
	if err := Validate(s); err != nil {
		return err.Error()
	}
	return ""
}
