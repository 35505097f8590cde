package utils

import (
	"strings"
)

// NormalizeString trims whitespace and normalizes string input
func NormalizeString(s string) string {
	return strings.TrimSpace(s)
}

// NormalizeEmail normalizes email addresses (lowercase and trim)
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeOptional trims an optional string and collapses blank values to nil,
// so an empty field and an absent field end up stored the same way.
func NormalizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

// NameTokens splits a person's name on whitespace.
func NameTokens(name string) []string {
	return strings.Fields(name)
}

// HasFullName reports whether name carries at least a first and a last name.
func HasFullName(name string) bool {
	return len(NameTokens(name)) >= 2
}

// StringValue dereferences s, returning "" for nil.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
