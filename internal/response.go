package internal

import (
	"log"
	"net/http"
	"path"
	"path/filepath"
	"time"
)

// outcome accumulates what each stage produced so the single response can
// echo every available diagnostic.
type outcome struct {
	requestID  string
	startedAt  time.Time
	uploads    *Uploads
	profile    *EnvironmentProfile
	invocation *Invocation
	result     *ConversionResult
	storageURL string
}

// respond deletes the staged uploads and builds exactly one envelope.
// It is the only exit of a conversion request.
func (p *Pipeline) respond(out *outcome, err error) *Response {
	out.uploads.Remove()
	if out.uploads != nil {
		log.Printf("[%s] Removed staged uploads", out.requestID)
	}

	if err != nil {
		return p.errorResponse(out, asConversionError(err, StageIntake))
	}
	return p.successResponse(out)
}

func (p *Pipeline) errorResponse(out *outcome, convErr *ConversionError) *Response {
	log.Printf("[%s] Conversion failed at %s: %v", out.requestID, convErr.Stage, convErr)

	body := &ErrorResponse{
		Success:   false,
		Error:     convErr.Message,
		Kind:      convErr.Kind,
		Stage:     convErr.Stage,
		RequestID: out.requestID,
		Details:   convErr.Details,
	}
	if convErr.Err != nil {
		body.Cause = convErr.Err.Error()
	}
	if out.invocation != nil {
		body.Command = out.invocation.Command
		body.RawOutput = out.invocation.RawOutput
		if tail := tailLines(truncateText(out.invocation.RawOutput, MaxLogChars), LogTailLines); tail != "" {
			log.Printf("[%s] Conversion output tail:\n%s", out.requestID, tail)
		}
	}
	if out.profile != nil {
		profile := *out.profile
		body.Environment = &profile
	}
	if convErr.Kind == KindEnvironmentUnavailable {
		body.Solutions = remediationHints
	}

	return &Response{Status: convErr.HTTPStatus(), Error: body}
}

func (p *Pipeline) successResponse(out *outcome) *Response {
	result := out.result
	payload := result.Payload

	info := ProcessingInfo{
		SectionsProcessed: payload.SectionsProcessed,
		TemplateType:      out.uploads.Template.Extension,
		JournalType:       out.uploads.Journal.Extension,
		JournalSize:       out.uploads.Journal.SizeBytes,
		TemplateSize:      out.uploads.Template.SizeBytes,
		DurationMs:        time.Since(out.startedAt).Milliseconds(),
		PageCount:         result.PageCount,
		StorageURL:        out.storageURL,
	}
	if info.SectionsProcessed == nil {
		info.SectionsProcessed = []string{}
	}

	body := &SuccessResponse{
		Success:         true,
		Message:         "Journal converted successfully",
		RequestID:       out.requestID,
		DownloadURL:     path.Join(p.DownloadPrefix, filepath.Base(result.OutputPath)),
		Metadata:        payload.Metadata,
		FileSize:        result.FileSize,
		OutputFormat:    result.Format,
		LatexUsed:       payload.LatexUsed,
		EnvironmentInfo: *out.profile,
		ProcessingInfo:  info,
	}

	log.Printf("[%s] Conversion successful: %s (%s, %d bytes, %dms)",
		out.requestID, body.DownloadURL, body.OutputFormat, body.FileSize, info.DurationMs)
	return &Response{Status: http.StatusOK, Success: body}
}
