package application

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// registerCustomValidators registers domain-specific validation functions
// with the validator instance.
// registerCustomValidators returns an error if any validator registration fails.
func registerCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("semver", validateSemver); err != nil {
		return fmt.Errorf("failed to register semver validator: %w", err)
	}

	if err := v.RegisterValidation("kindtag", validateKindTag); err != nil {
		return fmt.Errorf("failed to register kindtag validator: %w", err)
	}

	return nil
}

// validateSemver validates that a string follows semantic versioning
// format (X.Y.Z where X, Y, Z are non-negative integers).
func validateSemver(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	var major, minor, patch int
	n, err := fmt.Sscanf(value, "%d.%d.%d", &major, &minor, &patch)
	return err == nil && n == 3 && major >= 0 && minor >= 0 && patch >= 0
}

// validateKindTag accepts node type tags made of letters, digits, and
// underscores. Tags are case-insensitive, so upper case is allowed.
func validateKindTag(fl validator.FieldLevel) bool {
	tag := fl.Field().String()
	if tag == "" {
		return false
	}
	for _, ch := range tag {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9', ch == '_':
		default:
			return false
		}
	}
	return true
}
