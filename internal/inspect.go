package internal

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"
)

// OutputInspection summarizes a quick structural check of the produced file.
// Inspection problems never fail a conversion; they are logged.
type OutputInspection struct {
	PageCount int
	Warning   string
}

// InspectOutput checks the PDF header and page count, or the DOCX package layout
func InspectOutput(path, format string) OutputInspection {
	switch format {
	case FormatPDF:
		return inspectPDF(path)
	case FormatDOCX:
		return inspectDOCX(path)
	default:
		return OutputInspection{Warning: fmt.Sprintf("unknown output format %q", format)}
	}
}

func inspectPDF(path string) (out OutputInspection) {
	header := make([]byte, 4)
	f, err := os.Open(path)
	if err != nil {
		return OutputInspection{Warning: fmt.Sprintf("open pdf: %v", err)}
	}
	_, err = io.ReadFull(f, header)
	f.Close()
	if err != nil || !bytes.Equal(header, []byte("%PDF")) {
		return OutputInspection{Warning: "output does not start with a PDF header"}
	}

	// The parser panics on some damaged cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			out = OutputInspection{Warning: fmt.Sprintf("pdf parse panic: %v", r)}
		}
	}()

	file, reader, err := pdf.Open(path)
	if file != nil {
		defer func() { _ = file.Close() }()
	}
	if err != nil {
		return OutputInspection{Warning: fmt.Sprintf("parse pdf: %v", err)}
	}

	return OutputInspection{PageCount: reader.NumPage()}
}

func inspectDOCX(path string) OutputInspection {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return OutputInspection{Warning: fmt.Sprintf("open docx: %v", err)}
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			return OutputInspection{}
		}
	}
	return OutputInspection{Warning: "word/document.xml not found in docx output"}
}
