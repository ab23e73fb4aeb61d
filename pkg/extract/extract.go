// Package extract turns uploaded documents (PDF, DOC, DOCX) into plain text.
package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"cv-chat-go/pkg/log"

	"github.com/ledongthuc/pdf"
)

// ErrUnsupportedFormat matches every *UnsupportedFormatError.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// UnsupportedFormatError reports a file extension outside pdf, doc and docx.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported file format: %q", e.Ext)
}

func (e *UnsupportedFormatError) Is(target error) bool {
	return target == ErrUnsupportedFormat
}

// Format is the document format detected from a file name.
type Format string

const (
	FormatPDF         Format = "pdf"
	FormatDOC         Format = "doc"
	FormatDOCX        Format = "docx"
	FormatUnsupported Format = "unsupported"
)

// DetectFormat inspects the (case-insensitive) extension of fileName.
func DetectFormat(fileName string) Format {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".pdf":
		return FormatPDF
	case ".doc":
		return FormatDOC
	case ".docx":
		return FormatDOCX
	default:
		return FormatUnsupported
	}
}

// Fallback extracts text with an external service. *tika.Client satisfies it.
type Fallback interface {
	ExtractText(ctx context.Context, r io.Reader, fileName string) (string, error)
}

// Extractor reads PDF and DOCX natively. Legacy .doc files, and any document the
// native readers reject, go to the fallback when one is configured.
type Extractor struct {
	fallback Fallback
}

// New returns an Extractor; fallback may be nil.
func New(fallback Fallback) *Extractor {
	return &Extractor{fallback: fallback}
}

// Extract returns the text of the document. PDF pages and word-processor
// paragraphs are each followed by a newline.
func (e *Extractor) Extract(ctx context.Context, fileName string, data []byte) (string, error) {
	format := DetectFormat(fileName)
	var (
		text string
		err  error
	)
	switch format {
	case FormatPDF:
		text, err = extractPDF(data)
	case FormatDOCX:
		text, err = extractDOCX(data)
	case FormatDOC:
		// .doc uploads are frequently DOCX files with the old extension
		if e.fallback != nil {
			return e.viaFallback(ctx, fileName, data)
		}
		text, err = extractDOCX(data)
	default:
		return "", &UnsupportedFormatError{Ext: filepath.Ext(fileName)}
	}
	if err != nil && e.fallback != nil {
		log.Warnf("[Extractor] native %s extraction failed for '%s', using fallback: %v", format, fileName, err)
		return e.viaFallback(ctx, fileName, data)
	}
	return text, err
}

func (e *Extractor) viaFallback(ctx context.Context, fileName string, data []byte) (string, error) {
	text, err := e.fallback.ExtractText(ctx, bytes.NewReader(data), fileName)
	if err != nil {
		return "", fmt.Errorf("fallback extraction of %s: %w", fileName, err)
	}
	return text, nil
}

func extractPDF(data []byte) (text string, err error) {
	// the pdf reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("read pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if !page.V.IsNull() {
			pageText, err := page.GetPlainText(nil)
			if err != nil {
				return "", fmt.Errorf("read pdf page %d: %w", i, err)
			}
			sb.WriteString(pageText)
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}

type documentXML struct {
	Body struct {
		Paragraphs []paragraph `xml:"p"`
	} `xml:"body"`
}

type paragraph struct {
	Runs []run `xml:"r"`
}

type run struct {
	Text []textElement `xml:"t"`
}

type textElement struct {
	Content string `xml:",chardata"`
}

func extractDOCX(data []byte) (string, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}

	for _, file := range reader.File {
		if file.Name != "word/document.xml" {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return "", fmt.Errorf("open word/document.xml: %w", err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read word/document.xml: %w", err)
		}

		var doc documentXML
		if err := xml.Unmarshal(content, &doc); err != nil {
			return "", fmt.Errorf("parse word/document.xml: %w", err)
		}
		var sb strings.Builder
		for _, para := range doc.Body.Paragraphs {
			for _, r := range para.Runs {
				for _, t := range r.Text {
					sb.WriteString(t.Content)
				}
			}
			sb.WriteString("\n")
		}
		return sb.String(), nil
	}
	return "", errors.New("docx has no word/document.xml")
}
