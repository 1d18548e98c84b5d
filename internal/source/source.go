// Package source extracts the text of uploaded files as a doctree outline.
package source

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docannot/internal/doctree"
)

// Parser converts raw file bytes into an outline.
type Parser interface {
	Parse(r io.Reader, filename string) (*doctree.Tree, error)
}

// Options tunes parser selection.
type Options struct {
	// PDFFallback shells out to pdftotext when the Go PDF reader fails.
	PDFFallback bool
}

var extensions = map[string]bool{
	".txt":      true,
	".text":     true,
	".md":       true,
	".markdown": true,
	".csv":      true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the parser for a file name.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt", ".text":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".csv":
		return &CSVParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.PDFFallback}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %q", ext)
	}
}

// IsSupported reports whether filename has a known extension.
func IsSupported(filename string) bool {
	return extensions[strings.ToLower(filepath.Ext(filename))]
}

// Extract parses a file and renders it to annotatable text.
func Extract(r io.Reader, filename string, opts Options) (*doctree.Tree, doctree.Rendered, error) {
	p, err := ForFile(filename, opts)
	if err != nil {
		return nil, doctree.Rendered{}, err
	}
	tree, err := p.Parse(r, filename)
	if err != nil {
		return nil, doctree.Rendered{}, err
	}
	return tree, doctree.Render(tree), nil
}

// ExtractBytes is Extract over an in-memory upload.
func ExtractBytes(data []byte, filename string, opts Options) (*doctree.Tree, doctree.Rendered, error) {
	return Extract(bytes.NewReader(data), filename, opts)
}

func baseTitle(filename string, exts ...string) string {
	name := filepath.Base(filename)
	for _, ext := range exts {
		if strings.HasSuffix(strings.ToLower(name), ext) {
			return name[:len(name)-len(ext)]
		}
	}
	return name
}
