package internal

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// remediationHints are returned to operators when no runtime qualifies.
var remediationHints = []string{
	"1. Install Python 3 from https://python.org/downloads/ and make sure it is on PATH",
	"2. Install the converter libraries: python3 -m pip install python-docx PyMuPDF",
	"3. For PDF output install a LaTeX distribution (TeX Live or MiKTeX) with pdflatex on PATH",
	"4. Restart the service after installing",
}

// Resolver discovers a script runtime with the converter libraries and probes
// for the typesetting engine.
type Resolver struct {
	Runner              CommandRunner
	Candidates          []string
	RequiredModules     []string
	RemediationPackages []string
	TypesetterBinary    string
	TypesetterSignature string
	ProbeTimeout        time.Duration
	RemediationTimeout  time.Duration
}

// NewResolver builds a Resolver from configuration using real processes
func NewResolver(cfg *Config) *Resolver {
	return &Resolver{
		Runner:              ExecRunner{},
		Candidates:          cfg.RuntimeCandidates,
		RequiredModules:     cfg.RequiredModules,
		RemediationPackages: cfg.RemediationPackages,
		TypesetterBinary:    cfg.TypesetterBinary,
		TypesetterSignature: cfg.TypesetterSignature,
		ProbeTimeout:        cfg.ProbeTimeout(),
		RemediationTimeout:  cfg.RemediationTimeout(),
	}
}

// Resolve selects the first candidate that passes both the version probe and the
// dependency check. Each candidate gets at most one remediation attempt.
func (r *Resolver) Resolve(ctx context.Context) (EnvironmentProfile, error) {
	profile := EnvironmentProfile{}

	for _, candidate := range r.Candidates {
		report := r.probeCandidate(ctx, candidate)
		profile.Candidates = append(profile.Candidates, report)

		log.Printf("[ENV] Candidate %s: %s", candidate, report.Status)
		if report.Status == CandidateOK {
			profile.Runtime = candidate
			profile.RuntimeVersion = strings.TrimSpace(report.VersionOutput)
			profile.DependenciesSatisfied = true
			break
		}
		if ctx.Err() != nil {
			break
		}
	}

	profile.TypesettingAvailable, profile.TypesetterVersion = r.probeTypesetter(ctx)
	if profile.TypesettingAvailable {
		profile.TypesettingInfo = "LaTeX available - will generate PDF for .tex templates"
	} else {
		profile.TypesettingInfo = "LaTeX not available - will create DOCX fallback"
	}

	if !profile.DependenciesSatisfied {
		return profile, newConversionError(
			KindEnvironmentUnavailable,
			StageEnvironment,
			"Python not found or dependencies missing",
			profile,
			fmt.Errorf("tried %d runtime candidates", len(r.Candidates)),
		)
	}

	return profile, nil
}

func (r *Resolver) probeCandidate(ctx context.Context, candidate string) CandidateReport {
	report := CandidateReport{Runtime: candidate}

	version, err := r.run(ctx, r.ProbeTimeout, candidate, "--version")
	report.VersionOutput = truncateText(version.Output, MaxLogChars)
	if err != nil {
		report.Status = CandidateProbeFailed
		report.Error = err.Error()
		return report
	}
	if version.ExitCode != 0 || !strings.Contains(strings.ToLower(version.Output), "python") {
		report.Status = CandidateProbeFailed
		report.Error = fmt.Sprintf("version probe exited %d without a Python signature", version.ExitCode)
		return report
	}

	check, ok := r.checkDependencies(ctx, candidate)
	report.DependencyOutput = truncateText(check, MaxLogChars)
	if ok {
		report.Status = CandidateOK
		return report
	}

	report.RemediationAttempted = true
	args := append([]string{"-m", "pip", "install"}, r.RemediationPackages...)
	log.Printf("[ENV] Installing %s with %s", strings.Join(r.RemediationPackages, ", "), candidate)
	install, err := r.run(ctx, r.RemediationTimeout, candidate, args...)
	report.RemediationOutput = truncateText(install.Output, MaxLogChars)
	if err != nil {
		report.Error = err.Error()
	}

	recheck, ok := r.checkDependencies(ctx, candidate)
	report.RecheckOutput = truncateText(recheck, MaxLogChars)
	if ok {
		report.Status = CandidateOK
		report.Error = ""
		return report
	}

	report.Status = CandidateDepsMissing
	if report.Error == "" {
		report.Error = "required modules still not importable after remediation"
	}
	return report
}

// checkDependencies imports the required modules in a one-line script and
// relies on the exit status rather than the printed text.
func (r *Resolver) checkDependencies(ctx context.Context, candidate string) (string, bool) {
	script := fmt.Sprintf("import %s; print('OK')", strings.Join(r.RequiredModules, ", "))
	res, err := r.run(ctx, r.ProbeTimeout, candidate, "-c", script)
	if err != nil {
		return res.Output + err.Error(), false
	}
	return res.Output, res.ExitCode == 0
}

// probeTypesetter never fails resolution; an unusable engine just means DOCX output.
func (r *Resolver) probeTypesetter(ctx context.Context) (bool, string) {
	if r.TypesetterBinary == "" {
		return false, ""
	}
	res, err := r.run(ctx, r.ProbeTimeout, r.TypesetterBinary, "--version")
	if err != nil || res.ExitCode != 0 {
		return false, ""
	}
	if !strings.Contains(res.Output, r.TypesetterSignature) {
		return false, ""
	}
	firstLine, _, _ := strings.Cut(strings.TrimSpace(res.Output), "\n")
	return true, strings.TrimSpace(firstLine)
}

func (r *Resolver) run(ctx context.Context, timeout time.Duration, name string, args ...string) (CommandResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return r.Runner.Run(ctx, CommandSpec{
		Name: name,
		Args: args,
		Env:  []string{"PYTHONIOENCODING=utf-8"},
	})
}

// ExpectedOutputFormat is "pdf" only for LaTeX templates when the engine is present.
func ExpectedOutputFormat(templateExt string, typesettingAvailable bool) string {
	if strings.EqualFold(strings.TrimPrefix(templateExt, "."), TypesettingSourceExt) && typesettingAvailable {
		return FormatPDF
	}
	return FormatDOCX
}
