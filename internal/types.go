package internal

const (
	FieldJournal  = "journal"
	FieldTemplate = "template"

	FormatPDF  = "pdf"
	FormatDOCX = "docx"

	// TypesettingSourceExt is the template extension that can be typeset to PDF.
	TypesettingSourceExt = "tex"
)

// UploadedFile represents one accepted multipart upload persisted to the staging area
type UploadedFile struct {
	FieldName    string
	OriginalName string
	Extension    string // lower case, no leading dot
	SizeBytes    int64
	Path         string
}

// Uploads holds the two files a conversion request carries
type Uploads struct {
	Journal  *UploadedFile
	Template *UploadedFile
}

// CandidateStatus is the typed outcome of probing one runtime candidate
type CandidateStatus string

const (
	CandidateOK          CandidateStatus = "ok"
	CandidateProbeFailed CandidateStatus = "probe-failed"
	CandidateDepsMissing CandidateStatus = "deps-missing-after-remediation"
)

// CandidateReport records everything observed while probing a runtime candidate
type CandidateReport struct {
	Runtime              string          `json:"runtime"`
	Status               CandidateStatus `json:"status"`
	VersionOutput        string          `json:"version_output,omitempty"`
	DependencyOutput     string          `json:"dependency_output,omitempty"`
	RemediationAttempted bool            `json:"remediation_attempted"`
	RemediationOutput    string          `json:"remediation_output,omitempty"`
	RecheckOutput        string          `json:"recheck_output,omitempty"`
	Error                string          `json:"error,omitempty"`
}

// EnvironmentProfile is the result of one resolution pass. It is passed by value.
type EnvironmentProfile struct {
	Runtime               string            `json:"runtime"`
	RuntimeVersion        string            `json:"runtime_version,omitempty"`
	DependenciesSatisfied bool              `json:"dependencies_satisfied"`
	TypesettingAvailable  bool              `json:"has_latex"`
	TypesetterVersion     string            `json:"latex_version,omitempty"`
	TypesettingInfo       string            `json:"latex_info"`
	Candidates            []CandidateReport `json:"candidates,omitempty"`
}

// ConversionJob describes the paths handed to the conversion script
type ConversionJob struct {
	RequestID            string
	JournalPath          string
	TemplatePath         string
	OutputPath           string
	ExpectedOutputFormat string
}

// Invocation is the captured outcome of running the conversion script
type Invocation struct {
	Command    string
	RawOutput  string
	ExitCode   int
	DurationMs int64
}

// ToolPayload is the structured document the conversion script prints last
type ToolPayload struct {
	Success           *bool          `json:"success,omitempty"`
	OutputPath        string         `json:"output_path,omitempty"`
	Format            string         `json:"format,omitempty"`
	LatexUsed         bool           `json:"latex_used"`
	Metadata          map[string]any `json:"metadata,omitempty"`
	SectionsProcessed []string       `json:"sections_processed,omitempty"`
	Error             string         `json:"error,omitempty"`
}

// ConversionResult is the interpreted outcome of an invocation
type ConversionResult struct {
	RawOutputText string
	Payload       *ToolPayload
	RawPayload    map[string]any
	Succeeded     bool
	Err           *ConversionError

	OutputPath string
	Format     string
	FileSize   int64
	PageCount  int
}

// Response is the single envelope returned for a request
type Response struct {
	Status  int
	Success *SuccessResponse
	Error   *ErrorResponse
}

// Body returns whichever envelope is set
func (r *Response) Body() any {
	if r.Success != nil {
		return r.Success
	}
	return r.Error
}

// SuccessResponse is the success envelope
type SuccessResponse struct {
	Success         bool               `json:"success"`
	Message         string             `json:"message"`
	RequestID       string             `json:"request_id"`
	DownloadURL     string             `json:"download_url"`
	Metadata        map[string]any     `json:"metadata"`
	FileSize        int64              `json:"file_size"`
	OutputFormat    string             `json:"output_format"`
	LatexUsed       bool               `json:"latex_used"`
	EnvironmentInfo EnvironmentProfile `json:"environment_info"`
	ProcessingInfo  ProcessingInfo     `json:"processing_info"`
}

// ProcessingInfo describes how the conversion ran
type ProcessingInfo struct {
	SectionsProcessed []string `json:"sections_processed"`
	TemplateType      string   `json:"template_type"`
	JournalType       string   `json:"journal_type"`
	JournalSize       int64    `json:"journal_size"`
	TemplateSize      int64    `json:"template_size"`
	DurationMs        int64    `json:"duration_ms"`
	PageCount         int      `json:"page_count,omitempty"`
	StorageURL        string   `json:"storage_url,omitempty"`
}

// ErrorResponse is the error envelope
type ErrorResponse struct {
	Success     bool                `json:"success"`
	Error       string              `json:"error"`
	Kind        ErrorKind           `json:"kind"`
	Stage       string              `json:"stage"`
	RequestID   string              `json:"request_id,omitempty"`
	Cause       string              `json:"cause,omitempty"`
	Details     any                 `json:"details,omitempty"`
	RawOutput   string              `json:"raw_output,omitempty"`
	Command     string              `json:"command,omitempty"`
	Environment *EnvironmentProfile `json:"environment,omitempty"`
	Solutions   []string            `json:"solutions,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	InFlight  int    `json:"inFlight"`
	Capacity  int    `json:"capacity"`
	Timestamp string `json:"timestamp"`
}

