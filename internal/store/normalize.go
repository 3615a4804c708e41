package store

import "strings"

// Normalize produces the canonical lowercase form of a username or email
// used for indexed, case-insensitive matching. It must be applied
// identically at write time and at read time so that equality on the
// normalized field is the sole lookup mechanism; no pattern matching is
// ever issued against the collection.
func Normalize(s string) string {
	return strings.ToLower(s)
}
