// Package loader extracts plain text from uploaded document files.
// One Loader implementation exists per supported extension; the registry
// dispatches on the (lowercased) filename suffix.
package loader

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned when no loader exists for a file's extension.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ExtractionError reports a file whose content could not be read or parsed.
// Recoverable by re-uploading a valid file; never retried internally.
type ExtractionError struct {
	Filename string
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extracting %s: %v", e.Filename, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Loader extracts the raw text of a single document format.
type Loader interface {
	// Extract returns the plain text content of the file data.
	Extract(filename string, data []byte) (string, error)

	// Extensions returns the lowercased extensions this loader handles,
	// including the leading dot.
	Extensions() []string
}

// Registry maps file extensions to their loaders.
type Registry struct {
	byExt map[string]Loader
}

// NewRegistry creates a Registry with the given loaders registered.
func NewRegistry(loaders ...Loader) *Registry {
	r := &Registry{byExt: make(map[string]Loader)}
	for _, l := range loaders {
		for _, ext := range l.Extensions() {
			r.byExt[ext] = l
		}
	}
	return r
}

// DefaultRegistry returns a Registry covering pdf, csv, xlsx, docx and txt.
func DefaultRegistry() *Registry {
	return NewRegistry(
		&TextLoader{},
		&CSVLoader{},
		&PDFLoader{},
		&DocxLoader{},
		&XlsxLoader{},
	)
}

// Extract dispatches to the loader for the file's extension.
// Returns ErrUnsupportedFormat (wrapped with the extension) when the
// extension is unknown, and *ExtractionError when the loader fails.
func (r *Registry) Extract(filename string, data []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	l, ok := r.byExt[ext]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	text, err := l.Extract(filename, data)
	if err != nil {
		return "", &ExtractionError{Filename: filename, Err: err}
	}
	return text, nil
}

// Supported reports whether the extension of filename has a registered loader.
func (r *Registry) Supported(filename string) bool {
	_, ok := r.byExt[strings.ToLower(filepath.Ext(filename))]
	return ok
}
