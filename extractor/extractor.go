// Package extractor turns uploaded reference documents into plain text fragments.
package extractor

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
)

// File is an uploaded document already read into memory.
type File struct {
	Name string
	Data []byte
}

// Error reports a supported document that could not be parsed.
type Error struct {
	Name string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("extract %s: %v", e.Name, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// SupportedExtensions lists the extensions Extract understands.
var SupportedExtensions = []string{".pdf", ".txt"}

// Extract returns the text fragments of files in order. Empty files and files
// with unsupported extensions are skipped. PDFs contribute one fragment per
// page that has text; text files contribute one fragment each.
func Extract(files []File) ([]string, error) {
	var fragments []string
	for _, f := range files {
		if len(f.Data) == 0 {
			continue
		}
		switch strings.ToLower(filepath.Ext(f.Name)) {
		case ".pdf":
			pages, err := pdfPages(f.Data)
			if err != nil {
				return nil, &Error{Name: f.Name, Err: err}
			}
			fragments = append(fragments, pages...)
		case ".txt":
			fragments = append(fragments, decodeText(f.Data))
		}
	}
	return fragments, nil
}

// decodeText drops byte sequences that are not valid UTF-8.
func decodeText(data []byte) string {
	return strings.ToValidUTF8(string(data), "")
}

func pdfPages(data []byte) (pages []string, err error) {
	// ledongthuc/pdf panics on some malformed inputs.
	defer func() {
		if r := recover(); r != nil {
			pages = nil
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}

	// pages are 1-indexed
	for i := 1; i <= reader.NumPage(); i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, text)
	}
	return pages, nil
}
