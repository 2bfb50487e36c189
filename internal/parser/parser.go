// Package parser turns ordinary documents into notebook fixtures: one
// section per document, one page per top-level heading.
package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/notegest/internal/notebook"
)

// Parser converts raw document bytes into a notebook section.
type Parser interface {
	Parse(r io.Reader, filename string) (*notebook.Section, error)
}

// SupportedExtensions lists file extensions that can be imported.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Import parses r as filename and wraps the result in a normalized
// notebook named after the document.
func Import(r io.Reader, filename string) (*notebook.Notebook, error) {
	p, err := ForFile(filename)
	if err != nil {
		return nil, err
	}
	section, err := p.Parse(r, filepath.Base(filename))
	if err != nil {
		return nil, err
	}
	if len(section.Pages) == 0 {
		return nil, fmt.Errorf("%s: no content to import", filename)
	}
	nb := &notebook.Notebook{Name: section.Name, Sections: []*notebook.Section{section}}
	if err := nb.Normalize(); err != nil {
		return nil, err
	}
	return nb, nil
}

func baseTitle(filename string) string {
	return strings.TrimSuffix(filename, filepath.Ext(filename))
}
