package internal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Invoker runs the external conversion script for one job
type Invoker struct {
	Runner     CommandRunner
	ScriptPath string
	WorkDir    string
	OutputDir  string
	Timeout    time.Duration
}

// NewInvoker builds an Invoker from configuration using real processes
func NewInvoker(cfg *Config) *Invoker {
	return &Invoker{
		Runner:     ExecRunner{},
		ScriptPath: cfg.ScriptPath,
		WorkDir:    cfg.AppRoot,
		OutputDir:  cfg.OutputDir,
		Timeout:    cfg.ConversionTimeout(),
	}
}

// NewJob derives the output path for a request. The name carries a timestamp and
// a random disambiguator so concurrent requests in the same second never collide.
func (iv *Invoker) NewJob(requestID string, uploads *Uploads, profile EnvironmentProfile, now time.Time) ConversionJob {
	format := ExpectedOutputFormat(uploads.Template.Extension, profile.TypesettingAvailable)
	name := fmt.Sprintf("jurnal_latex_%s_%s.%s", now.Format("2006-01-02_15-04-05"), uuid.NewString()[:8], format)
	return ConversionJob{
		RequestID:            requestID,
		JournalPath:          uploads.Journal.Path,
		TemplatePath:         uploads.Template.Path,
		OutputPath:           filepath.Join(iv.OutputDir, name),
		ExpectedOutputFormat: format,
	}
}

// Invoke runs `<runtime> <script> <journal> <template> <output>` from the application
// root with UTF-8 forced for Python I/O, and captures combined output. When the
// timeout expires the process group is killed, any partial output is deleted and
// a ToolTimeout error is returned.
func (iv *Invoker) Invoke(ctx context.Context, profile EnvironmentProfile, job ConversionJob) (*Invocation, error) {
	args := []string{iv.ScriptPath, job.JournalPath, job.TemplatePath, job.OutputPath}
	inv := &Invocation{Command: renderCommand(profile.Runtime, args)}

	if _, err := os.Stat(iv.ScriptPath); err != nil {
		return inv, newConversionError(KindEnvironmentUnavailable, StageInvoke,
			"Conversion script not found", map[string]string{"script_path": iv.ScriptPath}, err)
	}

	if err := os.MkdirAll(filepath.Dir(job.OutputPath), 0755); err != nil {
		return inv, newConversionError(KindPersistence, StageInvoke, "Failed to prepare output directory", nil, err)
	}

	if iv.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, iv.Timeout)
		defer cancel()
	}

	log.Printf("[%s] Running %s", job.RequestID, inv.Command)
	start := time.Now()
	res, err := iv.Runner.Run(ctx, CommandSpec{
		Name: profile.Runtime,
		Args: args,
		Dir:  iv.WorkDir,
		Env:  []string{"PYTHONIOENCODING=utf-8", "PYTHONUTF8=1"},
	})
	inv.DurationMs = time.Since(start).Milliseconds()
	inv.RawOutput = res.Output
	inv.ExitCode = res.ExitCode

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			removeFile(job.OutputPath)
			log.Printf("[%s] Conversion timed out after %dms: %v", job.RequestID, inv.DurationMs, err)
			return inv, newConversionError(KindToolTimeout, StageInvoke,
				fmt.Sprintf("Conversion did not finish within %s", iv.Timeout), nil, err)
		}
		if errors.Is(err, context.Canceled) {
			removeFile(job.OutputPath)
			log.Printf("[%s] Conversion cancelled by client after %dms", job.RequestID, inv.DurationMs)
			return inv, newConversionError(KindToolTimeout, StageInvoke,
				"Conversion cancelled before it finished", nil, err)
		}
		return inv, newConversionError(KindEnvironmentUnavailable, StageInvoke,
			"Failed to start conversion script", map[string]string{"runtime": profile.Runtime}, err)
	}

	log.Printf("[%s] Conversion script exited %d (%d bytes output, %dms)", job.RequestID, inv.ExitCode, len(inv.RawOutput), inv.DurationMs)
	return inv, nil
}

// renderCommand produces the operator-facing command line with every argument quoted
func renderCommand(name string, args []string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, strconv.Quote(name))
	for _, arg := range args {
		parts = append(parts, strconv.Quote(arg))
	}
	return strings.Join(parts, " ")
}
