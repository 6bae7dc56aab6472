package password

import "strings"

const MinLength = 8

// Error is a user-facing validation message.
type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrTooSimple Error = "Password must have at least one upper case letter, one lower case letter, and one number."
	ErrTooFancy  Error = `Password only accepts the following symbols !"#$%&'()*+,-./:;<=>?@[\]^_` + "`" + `{|}~`
	ErrTooShort  Error = "Ensure this field has at least 8 characters."
)

const punctuation = `!"#$%&'()*+,-./:;<=>?@[\]^_` + "`" + `{|}~`

// ValidateStrength accepts ASCII letters, digits, space and ASCII punctuation
// only, and requires one upper case letter, one lower case letter and one
// digit. Length is checked separately by ValidateNew.
func ValidateStrength(value string) error {
	var upper, lower, digit bool
	for _, r := range value {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		case r == ' ' || strings.ContainsRune(punctuation, r):
		default:
			return ErrTooFancy
		}
	}
	if !upper || !lower || !digit {
		return ErrTooSimple
	}
	return nil
}

// ValidateNew applies the rules for a password being set.
func ValidateNew(value string) error {
	if len(value) < MinLength {
		return ErrTooShort
	}
	return ValidateStrength(value)
}
