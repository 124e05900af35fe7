package internal

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
)

type formFile struct {
	field   string
	name    string
	content []byte
}

// buildForm encodes the files as multipart and parses them back the way gin does
func buildForm(t *testing.T, files ...formFile) *multipart.Form {
	t.Helper()
	body, contentType := encodeMultipart(t, files...)

	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		t.Fatalf("content type: %v", err)
	}
	form, err := multipart.NewReader(body, params["boundary"]).ReadForm(32 << 20)
	if err != nil {
		t.Fatalf("ReadForm: %v", err)
	}
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form
}

func encodeMultipart(t *testing.T, files ...formFile) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range files {
		part, err := w.CreateFormFile(f.field, f.name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write(f.content); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, w.FormDataContentType()
}

func countFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0
	}
	if err != nil {
		t.Fatalf("ReadDir %s: %v", dir, err)
	}
	return len(entries)
}

func requireKind(t *testing.T, err error, kind ErrorKind) *ConversionError {
	t.Helper()
	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("expected *ConversionError of kind %s, got %v", kind, err)
	}
	if convErr.Kind != kind {
		t.Fatalf("expected kind %s, got %s (%v)", kind, convErr.Kind, convErr)
	}
	return convErr
}

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("conversion script stand-ins are POSIX shell scripts")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

// writeScript writes a shell script standing in for the Python converter.
// It receives journal, template and output paths as $1, $2, $3.
func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "convert.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

// writeDocxFixture writes a minimal OOXML package
func writeDocxFixture(t *testing.T, path string) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create docx: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, content := range map[string]string{
		"[Content_Types].xml": `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`,
		"word/document.xml":   `<?xml version="1.0"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body/></w:document>`,
	} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip entry: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close docx: %v", err)
	}
}

type fakeResponse struct {
	result CommandResult
	err    error
}

func okResp(output string) fakeResponse {
	return fakeResponse{result: CommandResult{Output: output}}
}

func exitResp(code int, output string) fakeResponse {
	return fakeResponse{result: CommandResult{Output: output, ExitCode: code}}
}

func notFound(name string) fakeResponse {
	return fakeResponse{
		result: CommandResult{ExitCode: -1},
		err:    fmt.Errorf("starting %s: %w", name, exec.ErrNotFound),
	}
}

// fakeRunner answers commands from scripted responses. The last response for a
// command repeats once the queue is drained; unknown commands are "not found".
type fakeRunner struct {
	mu        sync.Mutex
	responses map[string][]fakeResponse
	calls     []string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{responses: make(map[string][]fakeResponse)}
}

func (f *fakeRunner) on(key string, responses ...fakeResponse) *fakeRunner {
	f.responses[key] = append(f.responses[key], responses...)
	return f
}

func (f *fakeRunner) Run(ctx context.Context, spec CommandSpec) (CommandResult, error) {
	key := strings.TrimSpace(spec.Name + " " + strings.Join(spec.Args, " "))

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, key)

	queue := f.responses[key]
	if len(queue) == 0 {
		resp := notFound(spec.Name)
		return resp.result, resp.err
	}
	resp := queue[0]
	if len(queue) > 1 {
		f.responses[key] = queue[1:]
	}
	return resp.result, resp.err
}

func (f *fakeRunner) count(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, call := range f.calls {
		if call == key {
			n++
		}
	}
	return n
}

func versionKey(rt string) string { return rt + " --version" }
func depsKey(rt string) string    { return rt + " -c import docx, fitz; print('OK')" }
func pipKey(rt string) string     { return rt + " -m pip install python-docx PyMuPDF" }

const latexKey = "pdflatex --version"

func newTestResolver(runner CommandRunner) *Resolver {
	return &Resolver{
		Runner:              runner,
		Candidates:          []string{"python3", "python", "py"},
		RequiredModules:     []string{"docx", "fitz"},
		RemediationPackages: []string{"python-docx", "PyMuPDF"},
		TypesetterBinary:    "pdflatex",
		TypesetterSignature: "pdfTeX",
	}
}

// staticResolver returns a fixed profile
type staticResolver struct {
	profile EnvironmentProfile
	err     error
}

func (s staticResolver) Resolve(context.Context) (EnvironmentProfile, error) {
	return s.profile, s.err
}

func readyProfile(latex bool) EnvironmentProfile {
	return EnvironmentProfile{
		Runtime:               "sh",
		DependenciesSatisfied: true,
		TypesettingAvailable:  latex,
	}
}
