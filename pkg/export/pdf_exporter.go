package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders datasets into tabular registrar documents with an
// institution letterhead and a dated page footer.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// Render creates a PDF document. The letterhead line, when non-empty, is
// printed above the document title.
func (e *PDFExporter) Render(data Dataset, title, letterhead string) ([]byte, error) {
	if len(data.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetFooterFunc(func() {
		pdf.SetY(-12)
		pdf.SetFont("Arial", "I", 8)
		footer := fmt.Sprintf("Page %d | issued %s", pdf.PageNo(), time.Now().Format("2006-01-02"))
		pdf.CellFormat(0, 8, footer, "", 0, "C", false, 0, "")
	})
	pdf.AddPage()

	if letterhead != "" {
		pdf.SetFont("Arial", "B", 13)
		pdf.CellFormat(0, 8, letterhead, "", 1, "C", false, 0, "")
	}
	if title != "" {
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 8, title, "", 1, "C", false, 0, "")
	}
	pdf.Ln(4)

	pdf.SetFillColor(235, 235, 235)
	pdf.SetFont("Arial", "B", 10)
	colWidth := 190.0 / float64(len(data.Headers))
	for _, header := range data.Headers {
		pdf.CellFormat(colWidth, 8, header, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, row := range data.Rows {
		for _, header := range data.Headers {
			pdf.CellFormat(colWidth, 7, row[header], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
