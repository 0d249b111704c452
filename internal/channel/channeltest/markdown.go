package channeltest

import "testing"

// RequireParsableMarkdown fails t when text has an unpaired, unescaped
// legacy Markdown entity character, which Telegram rejects with
// "can't parse entities".
func RequireParsableMarkdown(t testing.TB, text string) {
	t.Helper()

	counts := map[rune]int{}
	escaped := false
	for _, r := range text {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == '_' || r == '*' || r == '`':
			counts[r]++
		}
	}
	for r, n := range counts {
		if n%2 != 0 {
			t.Errorf("unpaired %q (%d unescaped) in %q", r, n, text)
		}
	}
}
