package textutil

import "strings"

// NormalizePhrase lowercases a phrase and collapses internal whitespace so
// trigger matching is insensitive to casing and spacing.
func NormalizePhrase(phrase string) string {
	return strings.Join(strings.Fields(strings.ToLower(phrase)), " ")
}

// ContainsAnyFold reports whether the normalized phrase contains any of the
// trigger substrings.
func ContainsAnyFold(phrase string, triggers []string) bool {
	normalized := NormalizePhrase(phrase)
	for _, trigger := range triggers {
		if trigger == "" {
			continue
		}
		if strings.Contains(normalized, trigger) {
			return true
		}
	}
	return false
}
