package sanitizer

import (
	"regexp"
	"strings"
)

var (
	cssTagRegex        = regexp.MustCompile(`(?i)</?\s*(style|script)[^>]*>`)
	cssExpressionRegex = regexp.MustCompile(`(?i)expression\s*\(`)
	cssJavaScriptRegex = regexp.MustCompile(`(?i)javascript\s*:`)
	cssImportRegex     = regexp.MustCompile(`(?i)@import[^;]*;?`)
	cssBindingRegex    = regexp.MustCompile(`(?i)-moz-binding\s*:[^;]*;?`)
)

// CSS strips constructs that can execute code or load foreign stylesheets
// from tenant supplied CSS.
func CSS(s string) string {
	s = RemoveControlChars(s)
	s = cssTagRegex.ReplaceAllString(s, "")
	s = cssImportRegex.ReplaceAllString(s, "")
	s = cssBindingRegex.ReplaceAllString(s, "")
	s = cssExpressionRegex.ReplaceAllString(s, "(")
	s = cssJavaScriptRegex.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
