package internal

import (
	"context"
	"fmt"
	"log"
	"mime/multipart"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// EnvironmentResolver yields the runtime profile for one request
type EnvironmentResolver interface {
	Resolve(ctx context.Context) (EnvironmentProfile, error)
}

// Pipeline runs the synchronous intake → resolve → invoke → interpret → respond pass
type Pipeline struct {
	Intake         *Intake
	Resolver       EnvironmentResolver
	Invoker        *Invoker
	Interpreter    *Interpreter
	Store          ArtifactStore
	DownloadPrefix string

	now func() time.Time
}

// NewPipeline wires every stage from configuration
func NewPipeline(cfg *Config) *Pipeline {
	p := &Pipeline{
		Intake:         NewIntake(cfg.UploadDir, cfg.MaxUploadBytes),
		Resolver:       NewResolver(cfg),
		Invoker:        NewInvoker(cfg),
		Interpreter:    &Interpreter{OutputDir: cfg.OutputDir, WorkDir: cfg.AppRoot},
		DownloadPrefix: cfg.DownloadPrefix,
		now:            time.Now,
	}
	if store := NewSupabaseStore(cfg.Storage); store != nil {
		p.Store = store
	}
	return p
}

// Convert processes one upload form and always returns exactly one response.
// Staged uploads are gone by the time it returns, whatever the outcome.
func (p *Pipeline) Convert(ctx context.Context, requestID string, form *multipart.Form) (resp *Response) {
	if requestID == "" {
		requestID = uuid.New().String()
	}
	out := &outcome{requestID: requestID, startedAt: time.Now()}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("[%s] Recovered from panic in conversion: %v", requestID, r)
			resp = p.respond(out, newConversionError(KindInternal, StageInternal,
				fmt.Sprintf("Internal server error: %v", r), nil, nil))
		}
	}()

	log.Printf("[%s] ==== CONVERSION REQUEST ====", requestID)
	err := p.run(ctx, form, out)
	return p.respond(out, err)
}

// Reject answers a request whose upload could not even be parsed
func (p *Pipeline) Reject(requestID string, err error) *Response {
	return p.respond(&outcome{requestID: requestID, startedAt: time.Now()}, err)
}

func (p *Pipeline) run(ctx context.Context, form *multipart.Form, out *outcome) error {
	uploads, err := p.Intake.Accept(form)
	if err != nil {
		return err
	}
	out.uploads = uploads
	log.Printf("[%s] Accepted journal %q (%d bytes) and template %q (%d bytes)", out.requestID,
		uploads.Journal.OriginalName, uploads.Journal.SizeBytes,
		uploads.Template.OriginalName, uploads.Template.SizeBytes)

	profile, err := p.Resolver.Resolve(ctx)
	out.profile = &profile
	if err != nil {
		return err
	}
	log.Printf("[%s] Runtime %s selected (latex available: %t)", out.requestID, profile.Runtime, profile.TypesettingAvailable)

	job := p.Invoker.NewJob(out.requestID, uploads, profile, p.clock())
	log.Printf("[%s] Expected output format: %s", out.requestID, job.ExpectedOutputFormat)

	inv, err := p.Invoker.Invoke(ctx, profile, job)
	out.invocation = inv
	if err != nil {
		return err
	}

	result := p.Interpreter.Interpret(inv, job)
	out.result = result
	if result.Err != nil {
		return result.Err
	}

	if p.Store != nil {
		url, err := p.Store.Put(ctx, filepath.Base(result.OutputPath), result.OutputPath)
		if err != nil {
			log.Printf("[%s] Storage mirror failed: %v", out.requestID, err)
		} else {
			out.storageURL = url
		}
	}
	return nil
}

func (p *Pipeline) clock() time.Time {
	if p.now == nil {
		return time.Now()
	}
	return p.now()
}
