package internal

import (
	"strings"
	"testing"
)

func TestTruncateTextKeepsTail(t *testing.T) {
	if got := truncateText("abcdef", 3); got != "def" {
		t.Errorf("truncateText = %q", got)
	}
	if got := truncateText("abc", 10); got != "abc" {
		t.Errorf("short text should be unchanged, got %q", got)
	}
}

func TestTailLines(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString("line\n")
	}
	if got := strings.Count(tailLines(b.String(), LogTailLines), "\n"); got != LogTailLines-1 {
		t.Errorf("expected %d lines, got %d newlines", LogTailLines, got)
	}
	if tailLines("", 5) != "" {
		t.Errorf("empty input should give empty output")
	}
	if got := tailLines("a\nb\n", 5); got != "a\nb" {
		t.Errorf("tailLines = %q", got)
	}
}
