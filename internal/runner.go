package internal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// processWaitDelay bounds how long Wait blocks on pipes after the process is killed
const processWaitDelay = 2 * time.Second

// CommandSpec describes one external process invocation
type CommandSpec struct {
	Name string
	Args []string
	Dir  string
	Env  []string // appended to the parent environment
}

// CommandResult holds the combined stdout/stderr and exit status of a finished process
type CommandResult struct {
	Output   string
	ExitCode int
}

// CommandRunner abstracts process execution so probes can be tested without real binaries.
// A non-zero exit is reported through ExitCode, not as an error; errors mean the
// process could not be started or the context ended first.
type CommandRunner interface {
	Run(ctx context.Context, spec CommandSpec) (CommandResult, error)
}

// ExecRunner implements CommandRunner using os/exec
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, spec CommandSpec) (CommandResult, error) {
	cmd := exec.CommandContext(ctx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	if len(spec.Env) > 0 {
		cmd.Env = append(os.Environ(), spec.Env...)
	}

	// One buffer for both streams; the conversion contract has no separate diagnostics channel
	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	configureProcessGroup(cmd)
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		killProcessGroup(cmd.Process.Pid)
		return cmd.Process.Kill()
	}
	cmd.WaitDelay = processWaitDelay

	runErr := cmd.Run()
	result := CommandResult{Output: combined.String()}

	if ctxErr := ctx.Err(); ctxErr != nil {
		result.ExitCode = -1
		return result, fmt.Errorf("running %s: %w", spec.Name, ctxErr)
	}

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		result.ExitCode = -1
		return result, fmt.Errorf("starting %s: %w", spec.Name, runErr)
	}

	return result, nil
}
