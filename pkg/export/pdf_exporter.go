package export

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/jung-kurt/gofpdf"
)

const (
	pdfPageWidth  = 277.0
	pdfMaxCellLen = 40
)

// PDFExporter renders tables into a landscape A4 document.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render lays out the table with columns sized to their longest cell.
// The core fonts only cover cp1252; other runes are replaced.
func (e *PDFExporter) Render(table Table) ([]byte, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(10, 12, 10)
	pdf.SetAutoPageBreak(true, 12)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	widths := columnWidths(table)

	header := func() {
		pdf.SetFont("Arial", "B", 8)
		pdf.SetFillColor(230, 230, 230)
		for i, col := range table.Columns {
			pdf.CellFormat(widths[i], 7, tr(col), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 7)
	}
	pdf.SetHeaderFunc(func() {
		if table.Title != "" {
			pdf.SetFont("Arial", "B", 12)
			pdf.CellFormat(0, 8, tr(table.Title), "", 1, "L", false, 0, "")
			pdf.Ln(2)
		}
		header()
	})
	pdf.SetFooterFunc(func() {
		pdf.SetY(-10)
		pdf.SetFont("Arial", "I", 7)
		pdf.CellFormat(0, 5, fmt.Sprintf("page %d", pdf.PageNo()), "", 0, "R", false, 0, "")
	})
	pdf.AddPage()

	for _, row := range table.Rows {
		for i, cell := range row {
			pdf.CellFormat(widths[i], 6, tr(truncate(cell, pdfMaxCellLen)), "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func columnWidths(table Table) []float64 {
	weights := make([]float64, len(table.Columns))
	for i, col := range table.Columns {
		weights[i] = float64(minInt(utf8.RuneCountInString(col), pdfMaxCellLen))
	}
	for _, row := range table.Rows {
		for i, cell := range row {
			if n := float64(minInt(utf8.RuneCountInString(cell), pdfMaxCellLen)); n > weights[i] {
				weights[i] = n
			}
		}
	}
	var total float64
	for i := range weights {
		if weights[i] < 4 {
			weights[i] = 4
		}
		total += weights[i]
	}
	widths := make([]float64, len(weights))
	for i, w := range weights {
		widths[i] = pdfPageWidth * w / total
	}
	return widths
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max-1]) + "~"
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
