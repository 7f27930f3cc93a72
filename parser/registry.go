package parser

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
)

// Opener opens a file as a Document.
type Opener func(path string) (Document, error)

// Registry maps file extensions (without the dot, lower case) to openers.
type Registry struct {
	openers map[string]Opener
}

func NewRegistry() *Registry {
	r := &Registry{openers: make(map[string]Opener)}
	// Register built-in sources
	r.Register("pdf", OpenPDF)
	r.Register("xlsx", OpenWorkbook)
	r.Register("txt", OpenText)
	return r
}

func (r *Registry) Get(format string) (Opener, error) {
	o, ok := r.openers[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return o, nil
}

func (r *Registry) Register(format string, o Opener) {
	r.openers[strings.ToLower(format)] = o
}

// Formats lists the registered extensions.
func (r *Registry) Formats() []string {
	formats := make([]string, 0, len(r.openers))
	for f := range r.openers {
		formats = append(formats, f)
	}
	sort.Strings(formats)
	return formats
}

// Open picks an opener by the file's extension.
func (r *Registry) Open(path string) (Document, error) {
	format := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	o, err := r.Get(format)
	if err != nil {
		return nil, err
	}
	return o(path)
}
