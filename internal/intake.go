package internal

import (
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var (
	allowedJournalExt  = []string{"pdf", "docx"}
	allowedTemplateExt = []string{"docx", "tex", "json"}

	errMissingFields = errors.New("missing upload field")
	errFileTooLarge  = errors.New("file too large")
	errBadExtension  = errors.New("extension not allowed")
)

// Intake validates multipart uploads and persists them to the staging area
type Intake struct {
	UploadDir string
	MaxBytes  int64

	// openDest creates the staged file; replaced in tests
	openDest func(path string) (*os.File, error)
}

// NewIntake creates an Intake that stages files under uploadDir
func NewIntake(uploadDir string, maxBytes int64) *Intake {
	return &Intake{
		UploadDir: uploadDir,
		MaxBytes:  maxBytes,
		openDest: func(path string) (*os.File, error) {
			return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		},
	}
}

// Accept validates both parts before writing anything, then persists them.
// If the second file fails to persist, the first one is removed again.
func (in *Intake) Accept(form *multipart.Form) (*Uploads, error) {
	journalHeader := firstFile(form, FieldJournal)
	templateHeader := firstFile(form, FieldTemplate)
	if journalHeader == nil || templateHeader == nil {
		return nil, validationError("Both journal and template files must be uploaded", errMissingFields, map[string]bool{
			FieldJournal:  journalHeader != nil,
			FieldTemplate: templateHeader != nil,
		})
	}

	journalExt := extensionOf(journalHeader.Filename)
	if !contains(allowedJournalExt, journalExt) {
		return nil, validationError("Journal format must be PDF or DOCX", errBadExtension, map[string]any{
			"field": FieldJournal, "extension": journalExt, "allowed": allowedJournalExt,
		})
	}

	templateExt := extensionOf(templateHeader.Filename)
	if !contains(allowedTemplateExt, templateExt) {
		return nil, validationError("Template format must be DOCX, TEX, or JSON", errBadExtension, map[string]any{
			"field": FieldTemplate, "extension": templateExt, "allowed": allowedTemplateExt,
		})
	}

	for _, h := range []*multipart.FileHeader{journalHeader, templateHeader} {
		if h.Size > in.MaxBytes {
			return nil, validationError(
				fmt.Sprintf("File is too large (maximum %dMB)", in.MaxBytes>>20),
				errFileTooLarge,
				map[string]any{"file": h.Filename, "size": h.Size, "max_bytes": in.MaxBytes},
			)
		}
	}

	if err := os.MkdirAll(in.UploadDir, 0755); err != nil {
		return nil, newConversionError(KindPersistence, StageIntake, "Failed to prepare upload directory", nil, err)
	}

	journal, err := in.persist(FieldJournal, journalHeader, journalExt)
	if err != nil {
		return nil, in.persistError("Failed to save journal file", err)
	}

	template, err := in.persist(FieldTemplate, templateHeader, templateExt)
	if err != nil {
		removeFile(journal.Path)
		return nil, in.persistError("Failed to save template file", err)
	}

	return &Uploads{Journal: journal, Template: template}, nil
}

// persist copies a part to <field>_<uuid>.<ext> under the upload directory
func (in *Intake) persist(field string, header *multipart.FileHeader, ext string) (*UploadedFile, error) {
	path := filepath.Join(in.UploadDir, fmt.Sprintf("%s_%s.%s", field, uuid.NewString(), ext))

	src, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("opening upload %s: %w", header.Filename, err)
	}
	defer src.Close()

	dst, err := in.openDest(path)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}

	// Copy one byte past the limit so a lying Size header is still caught
	written, err := io.Copy(dst, io.LimitReader(src, in.MaxBytes+1))
	closeErr := dst.Close()
	if err == nil {
		err = closeErr
	}
	if err == nil && written > in.MaxBytes {
		err = fmt.Errorf("%w: %s", errFileTooLarge, header.Filename)
	}
	if err != nil {
		removeFile(path)
		return nil, fmt.Errorf("writing %s: %w", path, err)
	}

	return &UploadedFile{
		FieldName:    field,
		OriginalName: header.Filename,
		Extension:    ext,
		SizeBytes:    written,
		Path:         path,
	}, nil
}

// Remove deletes both staged files; missing files are ignored
func (u *Uploads) Remove() {
	if u == nil {
		return
	}
	for _, f := range []*UploadedFile{u.Journal, u.Template} {
		if f != nil {
			removeFile(f.Path)
		}
	}
}

func (in *Intake) persistError(message string, err error) *ConversionError {
	if errors.Is(err, errFileTooLarge) {
		return validationError(fmt.Sprintf("File is too large (maximum %dMB)", in.MaxBytes>>20), err, nil)
	}
	return newConversionError(KindPersistence, StageIntake, message, nil, err)
}

func validationError(message string, err error, details any) *ConversionError {
	return newConversionError(KindValidation, StageIntake, message, details, err)
}

func firstFile(form *multipart.Form, field string) *multipart.FileHeader {
	if form == nil {
		return nil
	}
	files := form.File[field]
	if len(files) == 0 || files[0] == nil || files[0].Filename == "" {
		return nil
	}
	return files[0]
}

func extensionOf(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Printf("[CLEANUP] Failed to remove %s: %v", path, err)
	}
}
