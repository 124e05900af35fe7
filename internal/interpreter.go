package internal

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

var errNoPayload = errors.New("no structured payload in conversion output")

// Interpreter turns captured script output into a ConversionResult
type Interpreter struct {
	OutputDir string
	WorkDir   string
}

// Interpret decodes the payload, checks the error marker and exit status, and
// verifies the output file. The file size is read here because later stages
// may move or mirror the file.
func (ip *Interpreter) Interpret(inv *Invocation, job ConversionJob) *ConversionResult {
	result := &ConversionResult{RawOutputText: inv.RawOutput}

	raw, payload, err := decodePayload(inv.RawOutput)
	if err != nil {
		result.Err = newConversionError(KindMalformedToolOutput, StageInterpret,
			"LaTeX processor failed: output is not a valid result document", nil, err)
		return result
	}
	result.RawPayload = raw
	result.Payload = payload

	// A declared error field fails the conversion even when its message is empty
	if v, declared := raw["error"]; declared && v != nil {
		message := payload.Error
		if message == "" {
			message = "conversion script reported an error"
		}
		result.Err = newConversionError(KindToolReportedError, StageInterpret,
			"LaTeX processing error: "+message, raw, ErrToolReportedError)
		return result
	}
	if payload.Success != nil && !*payload.Success {
		result.Err = newConversionError(KindToolReportedError, StageInterpret,
			"LaTeX processing error: conversion script reported failure", raw, ErrToolReportedError)
		return result
	}
	if inv.ExitCode != 0 {
		result.Err = newConversionError(KindToolReportedError, StageInterpret,
			fmt.Sprintf("LaTeX processing error: conversion script exited with status %d", inv.ExitCode), raw, ErrToolReportedError)
		return result
	}

	actual := payload.OutputPath
	if actual == "" {
		actual = job.OutputPath
	} else if !filepath.IsAbs(actual) {
		actual = filepath.Join(ip.WorkDir, actual)
	}
	actual = filepath.Clean(actual)

	missing := map[string]any{
		"expected_path": job.OutputPath,
		"actual_path":   actual,
		"result":        raw,
	}

	if !ip.withinOutputDir(actual) {
		result.Err = newConversionError(KindOutputFileMissing, StageInterpret,
			"Output file is not directly inside the output directory", missing, ErrOutputFileMissing)
		return result
	}

	info, err := os.Stat(actual)
	if err != nil || !info.Mode().IsRegular() {
		if err == nil {
			err = fmt.Errorf("%s is not a regular file", actual)
		}
		result.Err = newConversionError(KindOutputFileMissing, StageInterpret,
			"Output file not found", missing, err)
		return result
	}

	result.Succeeded = true
	result.OutputPath = actual
	result.FileSize = info.Size()
	result.Format = payload.Format
	if result.Format == "" {
		result.Format = formatFromPath(actual, job.ExpectedOutputFormat)
	}
	if result.Format != job.ExpectedOutputFormat {
		log.Printf("[%s] Script produced %s, expected %s", job.RequestID, result.Format, job.ExpectedOutputFormat)
	}

	inspection := InspectOutput(actual, result.Format)
	result.PageCount = inspection.PageCount
	if inspection.Warning != "" {
		log.Printf("[%s] Output inspection: %s", job.RequestID, inspection.Warning)
	}

	return result
}

// withinOutputDir accepts only direct children of the output directory, the
// files the download route serves by base name.
func (ip *Interpreter) withinOutputDir(path string) bool {
	rel, err := filepath.Rel(filepath.Clean(ip.OutputDir), path)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.ContainsRune(rel, filepath.Separator)
}

// decodePayload accepts either an output consisting of exactly one JSON document
// or diagnostic noise followed by the document on the last non-empty line.
func decodePayload(output string) (map[string]any, *ToolPayload, error) {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return nil, nil, errNoPayload
	}

	candidates := []string{trimmed}
	if idx := strings.LastIndex(trimmed, "\n"); idx >= 0 {
		candidates = append(candidates, strings.TrimSpace(trimmed[idx+1:]))
	}

	var lastErr error = errNoPayload
	for _, candidate := range candidates {
		raw, payload, err := decodeDocument([]byte(candidate))
		if err == nil {
			return raw, payload, nil
		}
		lastErr = err
	}
	return nil, nil, lastErr
}

func decodeDocument(data []byte) (map[string]any, *ToolPayload, error) {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, fmt.Errorf("decoding result document: %w", err)
	}
	if dec.More() {
		return nil, nil, errors.New("trailing data after result document")
	}
	if raw == nil {
		return nil, nil, errors.New("result document is not an object")
	}
	if err := validatePayloadSchema(raw); err != nil {
		return nil, nil, err
	}

	var payload ToolPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, nil, fmt.Errorf("decoding result fields: %w", err)
	}
	return raw, &payload, nil
}

// validatePayloadSchema checks the types of the contract fields that are present
func validatePayloadSchema(raw map[string]any) error {
	optionalString := func(key string) error {
		v, ok := raw[key]
		if !ok || v == nil {
			return nil
		}
		if _, isString := v.(string); !isString {
			return fmt.Errorf("field %q must be a string", key)
		}
		return nil
	}
	optionalBool := func(key string) error {
		v, ok := raw[key]
		if !ok || v == nil {
			return nil
		}
		if _, isBool := v.(bool); !isBool {
			return fmt.Errorf("field %q must be a boolean", key)
		}
		return nil
	}

	for _, key := range []string{"output_path", "format", "error"} {
		if err := optionalString(key); err != nil {
			return err
		}
	}
	for _, key := range []string{"latex_used", "success"} {
		if err := optionalBool(key); err != nil {
			return err
		}
	}

	if format, ok := raw["format"].(string); ok && format != FormatPDF && format != FormatDOCX {
		return fmt.Errorf("field \"format\" must be %q or %q, got %q", FormatPDF, FormatDOCX, format)
	}

	if v, ok := raw["metadata"]; ok && v != nil {
		if _, isObject := v.(map[string]any); !isObject {
			return errors.New("field \"metadata\" must be an object")
		}
	}

	if v, ok := raw["sections_processed"]; ok && v != nil {
		list, isList := v.([]any)
		if !isList {
			return errors.New("field \"sections_processed\" must be a list")
		}
		for i, item := range list {
			if _, isString := item.(string); !isString {
				return fmt.Errorf("sections_processed[%d] must be a string", i)
			}
		}
	}

	return nil
}

func formatFromPath(path, fallback string) string {
	switch extensionOf(path) {
	case FormatPDF:
		return FormatPDF
	case FormatDOCX:
		return FormatDOCX
	default:
		return fallback
	}
}
