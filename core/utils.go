package core

import (
	"strings"

	"github.com/volatiletech/null/v8"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanNullString trims `s` and marks it invalid when nothing is left.
func CleanNullString(s null.String) null.String {
	if !s.Valid {
		return s
	}
	cleaned := strings.TrimSpace(s.String)
	return null.NewString(cleaned, cleaned != "")
}
