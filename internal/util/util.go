// Package util provides helpers for cleaning strings received from the host.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArgs returns a copy of args with each value unquoted and unescaped.
func CleanArgs(args []string) []string {
	out := make([]string, len(args))
	for i, v := range args {
		out[i] = FixEscapeQuotes(TrimQuotes(v))
	}
	return out
}
