package validation

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var strict = bluemonday.StrictPolicy()

// Text strips any markup from user-entered free text and trims it.
// Entities escaped by the policy are decoded back, the value is stored as plain text.
func Text(value string) string {
	return strings.TrimSpace(html.UnescapeString(strict.Sanitize(value)))
}

// OptionalText sanitizes a nullable field. Blank results become nil.
func OptionalText(value *string) *string {
	if value == nil {
		return nil
	}
	cleaned := Text(*value)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

func Texts(values []string) []string {
	if values == nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if cleaned := Text(v); cleaned != "" {
			out = append(out, cleaned)
		}
	}
	return out
}
