package message

import "strings"

var markdownEscaper = strings.NewReplacer("_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[")

// EscapeMarkdown neutralizes the legacy Markdown control characters in s so
// it can be interpolated into a ParseMarkdown message. Bot usernames,
// group handles and admin-typed text all go through it.
func EscapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}
