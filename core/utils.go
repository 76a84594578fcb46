package core

import "strings"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanTitle collapses inner whitespace so that titles differing only in spacing compare equal.
func CleanTitle(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
