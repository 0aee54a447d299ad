package surrealdb

import "strings"

// isNotFoundError reports whether an error from the driver indicates a
// missing record rather than a real failure. The driver surfaces these as
// plain query errors, so string matching is the only handle we have.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "no record")
}
