// internal/sanitize/sanitize.go
package sanitize

import (
	"html"
	"regexp"
	"strings"
)

var (
	tagRe        = regexp.MustCompile(`(?s)<[^>]*>`)
	tagNameRe    = regexp.MustCompile(`^</?\s*([a-zA-Z0-9]+)`)
	brRe         = regexp.MustCompile(`(?i)<br\s*/?>`)
	pCloseRe     = regexp.MustCompile(`(?i)</p\s*>`)
	pOpenRe      = regexp.MustCompile(`(?i)<p[^>]*>`)
	boldRe       = regexp.MustCompile(`(?i)</?(b|strong)\s*>`)
	italicRe     = regexp.MustCompile(`(?i)</?(i|em)\s*>`)
	strikeRe     = regexp.MustCompile(`(?i)</?(s|strike|del)\s*>`)
	multiBlankRe = regexp.MustCompile(`\n{3,}`)
)

// Tags an operator may keep in message content. Everything else is
// removed before the campaign is persisted.
var allowedMessageTags = map[string]bool{
	"b": true, "strong": true,
	"i": true, "em": true,
	"u": true,
	"s": true, "strike": true, "del": true,
	"br": true, "p": true,
}

// StripTags removes all HTML markup and decodes entities. Used for
// free-text fields like campaign names.
func StripTags(s string) string {
	return strings.TrimSpace(html.UnescapeString(tagRe.ReplaceAllString(s, "")))
}

// CleanMessageContent drops any tag outside the allowed subset while
// keeping the allowed formatting markup intact.
func CleanMessageContent(s string) string {
	return tagRe.ReplaceAllStringFunc(s, func(tag string) string {
		m := tagNameRe.FindStringSubmatch(tag)
		if m == nil {
			return ""
		}
		if allowedMessageTags[strings.ToLower(m[1])] {
			return tag
		}
		return ""
	})
}

// ToPlainText converts rendered message content to WhatsApp-safe plain
// text: line breaks preserved, bold/italic/strike mapped to WhatsApp
// markers, every other tag stripped, entities decoded.
func ToPlainText(s string) string {
	out := brRe.ReplaceAllString(s, "\n")
	out = pCloseRe.ReplaceAllString(out, "\n")
	out = pOpenRe.ReplaceAllString(out, "")
	out = boldRe.ReplaceAllString(out, "*")
	out = italicRe.ReplaceAllString(out, "_")
	out = strikeRe.ReplaceAllString(out, "~")
	out = tagRe.ReplaceAllString(out, "")
	out = html.UnescapeString(out)
	out = multiBlankRe.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}
