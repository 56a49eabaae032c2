package sanitize

import (
	"regexp"
	"strings"
)

var (
	reControl   = regexp.MustCompile(`[\x00-\x1F\x7F]`)
	reScript    = regexp.MustCompile(`(?is)<script[^>]*>.*?</script\s*>`)
	reDangerous = regexp.MustCompile(`(?i)</?(?:script|iframe|object|embed|link|meta)\b[^>]*>`)
	reHandler   = regexp.MustCompile(`(?i)\s+on[a-z]+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]+)`)
	reJSURL     = regexp.MustCompile(`(?i)(href|src)\s*=\s*(["']?)\s*javascript:[^"'\s>]*(["']?)`)
)

// Text removes control characters and collapses whitespace. Used for
// single-line fields such as title and description.
func Text(s string) string {
	s = reControl.ReplaceAllString(s, " ")
	return strings.Join(strings.Fields(s), " ")
}

// HTML strips script blocks, embedding tags, inline event handlers and
// javascript: URLs from rich-text content, and normalizes line endings.
// Everything else is left as authored.
func HTML(content string) string {
	content = reScript.ReplaceAllString(content, "")
	content = reDangerous.ReplaceAllString(content, "")
	content = reHandler.ReplaceAllString(content, "")
	content = reJSURL.ReplaceAllString(content, `$1=$2#$3`)
	return strings.ReplaceAll(content, "\r\n", "\n")
}
