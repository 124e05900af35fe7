package internal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInspectDOCX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.docx")
	writeDocxFixture(t, path)

	if got := InspectOutput(path, FormatDOCX); got.Warning != "" {
		t.Errorf("unexpected warning %q", got.Warning)
	}
}

func TestInspectWarnings(t *testing.T) {
	dir := t.TempDir()
	notZip := filepath.Join(dir, "out.docx")
	notPDF := filepath.Join(dir, "out.pdf")
	brokenPDF := filepath.Join(dir, "broken.pdf")
	for path, content := range map[string]string{
		notZip:    "plain text",
		notPDF:    "<html></html>",
		brokenPDF: "%PDF-1.4\nnot really a pdf\n",
	} {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	tests := []struct {
		path   string
		format string
		want   string
	}{
		{notZip, FormatDOCX, "open docx"},
		{notPDF, FormatPDF, "PDF header"},
		{brokenPDF, FormatPDF, "pdf"},
		{filepath.Join(dir, "missing.pdf"), FormatPDF, "open pdf"},
		{notZip, "odt", "unknown output format"},
	}

	for _, tt := range tests {
		got := InspectOutput(tt.path, tt.format)
		if !strings.Contains(got.Warning, tt.want) {
			t.Errorf("%s as %s: warning %q does not contain %q", filepath.Base(tt.path), tt.format, got.Warning, tt.want)
		}
		if got.PageCount != 0 {
			t.Errorf("%s: PageCount = %d", filepath.Base(tt.path), got.PageCount)
		}
	}
}
