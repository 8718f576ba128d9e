package validation

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var (
	// Validate is a shared validator instance
	Validate *validator.Validate
)

// Repeat intervals a todo may carry.
var repeatValues = map[string]bool{
	"daily":   true,
	"weekly":  true,
	"monthly": true,
	"yearly":  true,
}

func init() {
	Validate = validator.New()

	if err := Validate.RegisterValidation("repeats", validateRepeats); err != nil {
		panic(fmt.Sprintf("failed to register repeats validator: %v", err))
	}
}

func validateRepeats(fl validator.FieldLevel) bool {
	return repeatValues[fl.Field().String()]
}

// SanitizeText sanitizes text input by trimming whitespace and removing control characters
func SanitizeText(text string) string {
	text = strings.TrimSpace(text)

	var sanitized strings.Builder
	for _, r := range text {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			continue
		}
		sanitized.WriteRune(r)
	}

	return sanitized.String()
}

// ValidateRepeats validates a repeat interval string value.
func ValidateRepeats(value string) error {
	if !repeatValues[value] {
		return fmt.Errorf("invalid repeats: %s (must be 'daily', 'weekly', 'monthly', or 'yearly')", value)
	}
	return nil
}
