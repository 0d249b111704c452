package channel

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplitText_FitsUnchanged(t *testing.T) {
	t.Parallel()
	got := SplitText("short", 100)
	if len(got) != 1 || got[0] != "short" {
		t.Errorf("got %q", got)
	}
}

func TestSplitText_LineBoundaries(t *testing.T) {
	t.Parallel()
	text := "aaaa\nbbbb\ncccc"
	got := SplitText(text, 10)
	want := []string{"aaaa\nbbbb", "cccc"}
	if len(got) != len(want) {
		t.Fatalf("got %q, want %q", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestSplitText_LongLineKeepsRunes(t *testing.T) {
	t.Parallel()
	text := strings.Repeat("▰", 10) // 3 bytes each
	got := SplitText(text, 8)
	for i, c := range got {
		if len(c) > 8 {
			t.Errorf("chunk %d too long: %d", i, len(c))
		}
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d is not valid UTF-8: %q", i, c)
		}
	}
	if strings.Join(got, "") != text {
		t.Error("chunks do not reassemble the input")
	}
}
