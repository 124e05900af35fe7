package internal

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind names a class in the failure taxonomy
type ErrorKind string

const (
	KindValidation             ErrorKind = "ValidationFailure"
	KindEnvironmentUnavailable ErrorKind = "EnvironmentUnavailable"
	KindToolTimeout            ErrorKind = "ToolTimeout"
	KindMalformedToolOutput    ErrorKind = "MalformedToolOutput"
	KindToolReportedError      ErrorKind = "ToolReportedError"
	KindOutputFileMissing      ErrorKind = "OutputFileMissing"
	KindPersistence            ErrorKind = "PersistenceFailure"
	KindInternal               ErrorKind = "InternalError"
)

// Stages at which a request can fail.
const (
	StageIntake      = "intake"
	StageEnvironment = "environment"
	StageInvoke      = "invoke"
	StageInterpret   = "interpret"
	StageInternal    = "internal"
)

// Sentinel errors, one per kind, for errors.Is checks.
var (
	ErrValidation             = errors.New("upload validation failed")
	ErrEnvironmentUnavailable = errors.New("no usable conversion environment")
	ErrToolTimeout            = errors.New("conversion timed out")
	ErrMalformedToolOutput    = errors.New("conversion output could not be decoded")
	ErrToolReportedError      = errors.New("conversion script reported an error")
	ErrOutputFileMissing      = errors.New("conversion output file not found")
	ErrPersistence            = errors.New("file persistence failed")
)

var kindSentinels = map[ErrorKind]error{
	KindValidation:             ErrValidation,
	KindEnvironmentUnavailable: ErrEnvironmentUnavailable,
	KindToolTimeout:            ErrToolTimeout,
	KindMalformedToolOutput:    ErrMalformedToolOutput,
	KindToolReportedError:      ErrToolReportedError,
	KindOutputFileMissing:      ErrOutputFileMissing,
	KindPersistence:            ErrPersistence,
}

// ConversionError is the terminal error of a conversion request.
// Details carries whatever diagnostic context the failing stage collected.
type ConversionError struct {
	Kind    ErrorKind
	Stage   string
	Message string
	Details any
	Err     error
}

func (e *ConversionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ConversionError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind
func (e *ConversionError) Is(target error) bool {
	return kindSentinels[e.Kind] == target
}

// HTTPStatus maps the error kind to a response status
func (e *ConversionError) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		if errors.Is(e.Err, errFileTooLarge) {
			return http.StatusRequestEntityTooLarge
		}
		return http.StatusBadRequest
	case KindEnvironmentUnavailable:
		return http.StatusServiceUnavailable
	case KindToolTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func newConversionError(kind ErrorKind, stage, message string, details any, err error) *ConversionError {
	return &ConversionError{
		Kind:    kind,
		Stage:   stage,
		Message: message,
		Details: details,
		Err:     err,
	}
}

// asConversionError converts any error into a *ConversionError, treating unknown
// errors as persistence failures at the given stage.
func asConversionError(err error, stage string) *ConversionError {
	var convErr *ConversionError
	if errors.As(err, &convErr) {
		return convErr
	}
	return newConversionError(KindPersistence, stage, err.Error(), nil, err)
}
