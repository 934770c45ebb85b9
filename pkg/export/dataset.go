package export

import (
	"fmt"
	"strings"
)

// Format names a supported export encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat normalises a user supplied format, defaulting to CSV when empty.
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatXLSX, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// Dataset defines tabular export content.
type Dataset struct {
	Title   string
	Headers []string
	Rows    []map[string]string
}

func (d Dataset) record(row map[string]string) []string {
	record := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		record[i] = row[header]
	}
	return record
}

// Renderer encodes a Dataset in one format.
type Renderer interface {
	Format() Format
	ContentType() string
	Render(Dataset) ([]byte, error)
}

// Registry resolves renderers by format.
type Registry struct {
	renderers map[Format]Renderer
}

// NewRegistry indexes the given renderers by their format.
func NewRegistry(renderers ...Renderer) *Registry {
	r := &Registry{renderers: make(map[Format]Renderer, len(renderers))}
	for _, renderer := range renderers {
		r.renderers[renderer.Format()] = renderer
	}
	return r
}

// DefaultRegistry wires the CSV, XLSX and PDF renderers.
func DefaultRegistry() *Registry {
	return NewRegistry(NewCSVExporter(), NewXLSXExporter(), NewPDFExporter())
}

// Get returns the renderer for f.
func (r *Registry) Get(f Format) (Renderer, bool) {
	renderer, ok := r.renderers[f]
	return renderer, ok
}

// Filename builds a download name such as "lecturers-20240102.csv".
func Filename(base string, f Format, stamp string) string {
	return fmt.Sprintf("%s-%s.%s", base, stamp, f)
}
