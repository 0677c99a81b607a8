// Package sanitize strips markup from user supplied free text.
package sanitize

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// strict removes every element and attribute; a Policy is safe for concurrent use
var strict = bluemonday.StrictPolicy()

// maxPasses bounds nested entity decoding such as "&amp;lt;b&amp;gt;"
const maxPasses = 8

// Text returns s without any HTML tags, trimmed. The stored value is plain
// text: entities are decoded and the result sanitized again until it no
// longer changes, so markup typed as entities cannot survive.
func Text(s string) string {
	for i := 0; i < maxPasses; i++ {
		next := html.UnescapeString(strict.Sanitize(s))
		if next == s {
			return strings.TrimSpace(next)
		}
		s = next
	}
	// Still decoding after maxPasses: keep only what the policy lets through
	return strings.TrimSpace(strict.Sanitize(s))
}
