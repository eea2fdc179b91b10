package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// controlChars matches C0 controls except tab, newline and carriage return
var controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)

// ValidationError represents a rejected chat message body
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// TextValidator normalizes and validates chat message bodies
type TextValidator struct {
	maxLength int
}

// NewTextValidator creates a validator; maxLength <= 0 disables the length check
func NewTextValidator(maxLength int) *TextValidator {
	return &TextValidator{maxLength: maxLength}
}

// Sanitize strips control characters and surrounding whitespace
func (v *TextValidator) Sanitize(text string) string {
	return strings.TrimSpace(controlChars.ReplaceAllString(text, ""))
}

// Validate checks a sanitized body
func (v *TextValidator) Validate(text string) error {
	if text == "" {
		return &ValidationError{Message: "message text is empty"}
	}
	if !utf8.ValidString(text) {
		return &ValidationError{Message: "message text is not valid UTF-8"}
	}
	if v.maxLength > 0 && utf8.RuneCountInString(text) > v.maxLength {
		return &ValidationError{Message: fmt.Sprintf("message text exceeds %d characters", v.maxLength)}
	}
	return nil
}

// Prepare sanitizes then validates, returning the text to persist
func (v *TextValidator) Prepare(text string) (string, error) {
	text = v.Sanitize(text)
	if err := v.Validate(text); err != nil {
		return "", err
	}
	return text, nil
}
