// Package sanitize cleans user supplied text before it is stored. Markup is
// stripped entirely: names and emails are plain text everywhere they appear.
package sanitize

import (
	"html"
	"strings"
	"sync"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"
)

var (
	policy     *bluemonday.Policy
	policyOnce sync.Once
)

func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.StrictPolicy()
	})
	return policy
}

// Text removes all markup, control characters and surrounding whitespace,
// and normalises the result to NFC.
func Text(input string) string {
	if input == "" {
		return ""
	}
	cleaned := getPolicy().Sanitize(norm.NFC.String(input))
	// StrictPolicy escapes what it keeps; the stored value is raw text and
	// html/template escapes on output. Angle brackets that only appear after
	// unescaping are dropped so no markup survives.
	cleaned = html.UnescapeString(cleaned)
	cleaned = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == '<' || r == '>' {
			return -1
		}
		return r
	}, cleaned)
	return strings.TrimSpace(cleaned)
}

// Email sanitises an address and folds it to lower case so it can serve as
// the natural key of a user record.
func Email(input string) string {
	return strings.ToLower(Text(input))
}
