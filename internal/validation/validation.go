// Package validation checks keys before they reach an accountant.
//
package validation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// =============================================================================
// Key Validation
// =============================================================================

// KeyRules defines the validation rules for tracked keys.
type KeyRules struct {
	MinLength int
	MaxLength int
}

// DefaultKeyRules returns the default rules for tracked keys.
func DefaultKeyRules() KeyRules {
	return KeyRules{
		MinLength: 1,
		MaxLength: 255,
	}
}

// ValidateKey validates a key according to the given rules. Keys are opaque
// apart from these checks: any printable, non-space rune is allowed.
func ValidateKey(key string, rules KeyRules) error {
	if len(key) < rules.MinLength {
		return fmt.Errorf("key too short: minimum %d bytes required", rules.MinLength)
	}
	if len(key) > rules.MaxLength {
		return fmt.Errorf("key too long: maximum %d bytes allowed", rules.MaxLength)
	}

	if !utf8.ValidString(key) {
		return fmt.Errorf("key is not valid UTF-8")
	}

	if strings.HasPrefix(key, "#") {
		return fmt.Errorf("key cannot start with '#'")
	}

	for i, r := range key {
		if unicode.IsControl(r) {
			return fmt.Errorf("key cannot contain control characters at position %d", i)
		}
		if unicode.IsSpace(r) {
			return fmt.Errorf("key cannot contain whitespace at position %d", i)
		}
		if !unicode.IsPrint(r) {
			return fmt.Errorf("invalid character %q at position %d", r, i)
		}
	}

	return nil
}

// Key validates a key with default rules.
func Key(key string) error {
	return ValidateKey(key, DefaultKeyRules())
}
