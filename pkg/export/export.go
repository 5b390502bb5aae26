package export

import (
	"fmt"
	"strings"
)

// Format identifies a rendered export encoding.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ParseFormat normalises a user supplied format, defaulting to CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("unsupported export format %q", raw)
	}
}

// ContentType returns the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// Table is tabular export content. Every row must have len(Columns) cells.
type Table struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// Validate checks the table shape.
func (t Table) Validate() error {
	if len(t.Columns) == 0 {
		return fmt.Errorf("export requires at least one column")
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}

// Renderer encodes a table into bytes.
type Renderer interface {
	Render(table Table) ([]byte, error)
}

// Render dispatches to the renderer for format.
func Render(format Format, table Table) ([]byte, error) {
	switch format {
	case FormatCSV:
		return NewCSVExporter().Render(table)
	case FormatPDF:
		return NewPDFExporter().Render(table)
	default:
		return nil, fmt.Errorf("unsupported export format %q", format)
	}
}
