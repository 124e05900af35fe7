package internal

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestExecRunnerReportsExitCode(t *testing.T) {
	requireShell(t)

	res, err := ExecRunner{}.Run(context.Background(), CommandSpec{
		Name: "sh",
		Args: []string{"-c", "echo out; echo err >&2; exit 7"},
	})
	if err != nil {
		t.Fatalf("a non-zero exit is not a run error: %v", err)
	}
	if res.ExitCode != 7 {
		t.Errorf("ExitCode = %d", res.ExitCode)
	}
	if !strings.Contains(res.Output, "out") || !strings.Contains(res.Output, "err") {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestExecRunnerPassesEnvironment(t *testing.T) {
	requireShell(t)

	res, err := ExecRunner{}.Run(context.Background(), CommandSpec{
		Name: "sh",
		Args: []string{"-c", `printf %s "$JURNAL_TEST_VALUE"`},
		Env:  []string{"JURNAL_TEST_VALUE=ünïcode"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Output != "ünïcode" {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestExecRunnerMissingBinary(t *testing.T) {
	res, err := ExecRunner{}.Run(context.Background(), CommandSpec{Name: "jurnal-no-such-binary"})
	if !errors.Is(err, exec.ErrNotFound) {
		t.Fatalf("expected exec.ErrNotFound, got %v", err)
	}
	if res.ExitCode != -1 {
		t.Errorf("ExitCode = %d", res.ExitCode)
	}
}

func TestExecRunnerDeadline(t *testing.T) {
	requireShell(t)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := ExecRunner{}.Run(ctx, CommandSpec{Name: "sh", Args: []string{"-c", "sleep 30 & wait"}})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if time.Since(start) > 10*time.Second {
		t.Errorf("process group was not killed")
	}
}
