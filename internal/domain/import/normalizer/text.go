package normalizer

import "strings"

// CleanDescription trims a title cell, drops surrounding quotes and collapses
// internal whitespace runs to a single space.
func CleanDescription(s string) string {
	s = strings.Trim(strings.TrimSpace(s), `"`)
	return strings.Join(strings.Fields(s), " ")
}
