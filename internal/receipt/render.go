package receipt

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"
)

const (
	fontFamily  = "Helvetica"
	fieldLabelW = 38.0
)

// Render draws doc onto a single A4 page and returns the PDF bytes. It knows
// nothing about donations: every coordinate comes from the element list.
//
// The PDF creation date is pinned to doc.Date, so two renders of the same
// Document are byte-identical and two receipts composed on the same day match.
func Render(doc Document) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCreationDate(doc.Date)
	pdf.SetCatalogSort(true)
	pdf.SetTitle(doc.Title, false)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetMargins(marginX, marginTop, marginX)
	pdf.AddPage()

	// Core fonts are cp1252; translate UTF-8 donor input once per string.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, e := range doc.Elements {
		p := e.Position
		switch e.Kind {
		case KindHeading:
			pdf.SetFont(fontFamily, "B", 16)
			pdf.SetXY(p.X, p.Y)
			pdf.CellFormat(p.W, p.H, tr(e.Value), "", 0, "C", false, 0, "")

		case KindText:
			pdf.SetFont(fontFamily, "", 9)
			pdf.SetXY(p.X, p.Y)
			pdf.CellFormat(p.W, p.H, tr(e.Value), "", 0, "C", false, 0, "")

		case KindTitle:
			pdf.SetFont(fontFamily, "BU", 13)
			pdf.SetXY(p.X, p.Y)
			pdf.CellFormat(p.W, p.H, tr(e.Value), "", 0, "C", false, 0, "")

		case KindRule:
			pdf.SetLineWidth(0.4)
			pdf.Line(p.X, p.Y, p.X+p.W, p.Y)

		case KindField:
			pdf.SetFont(fontFamily, "B", 10)
			pdf.SetXY(p.X, p.Y)
			pdf.CellFormat(fieldLabelW, lineHeight, tr(e.Label+":"), "", 0, "L", false, 0, "")
			pdf.SetFont(fontFamily, "", 10)
			pdf.SetXY(p.X+fieldLabelW, p.Y)
			pdf.MultiCell(p.W-fieldLabelW, lineHeight, tr(e.Value), "", "L", false)

		case KindAmountBox:
			pdf.SetLineWidth(0.5)
			pdf.Rect(p.X, p.Y, p.W, p.H, "D")
			pdf.SetFont(fontFamily, "B", 14)
			pdf.SetXY(p.X, p.Y)
			pdf.CellFormat(p.W, p.H, tr(e.Value), "", 0, "C", false, 0, "")

		case KindSignature:
			lineY := p.Y + p.H - 10
			pdf.SetLineWidth(0.3)
			pdf.Line(p.X, lineY, p.X+p.W, lineY)
			pdf.SetFont(fontFamily, "", 9)
			pdf.SetXY(p.X, lineY+1)
			pdf.CellFormat(p.W, 4, tr(e.Label), "", 0, "C", false, 0, "")
			pdf.SetXY(p.X, lineY+5)
			pdf.CellFormat(p.W, 4, tr("For "+e.Value), "", 0, "C", false, 0, "")

		case KindNote:
			pdf.SetFont(fontFamily, "I", 8)
			pdf.SetXY(p.X, p.Y)
			pdf.CellFormat(p.W, p.H, tr(e.Value), "", 0, "C", false, 0, "")

		default:
			return nil, fmt.Errorf("receipt: unknown element kind %q", e.Kind)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("receipt: render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
