package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
)

// utf8BOM lets spreadsheet tools detect UTF-8 for non-ASCII addresses.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// CSVExporter renders tables as CSV.
type CSVExporter struct {
	bom bool
}

// NewCSVExporter builds a CSV exporter that prefixes a UTF-8 byte order mark.
func NewCSVExporter() *CSVExporter {
	return &CSVExporter{bom: true}
}

// Render produces CSV bytes with a header row.
func (e *CSVExporter) Render(table Table) ([]byte, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	if e.bom {
		buf.Write(utf8BOM)
	}
	writer := csv.NewWriter(buf)
	if err := writer.Write(table.Columns); err != nil {
		return nil, fmt.Errorf("write csv headers: %w", err)
	}
	if err := writer.WriteAll(table.Rows); err != nil {
		return nil, fmt.Errorf("write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}
