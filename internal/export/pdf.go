package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/ArnieSalas/CMSC-5773-Debate-Project/internal/core"
)

// PDFExporter exports sessions to PDF format.
type PDFExporter struct{}

// Speaker header colors, cycled by order of first appearance.
var speakerColors = [][3]int{
	{200, 230, 255}, // Light blue
	{200, 255, 200}, // Light green
	{255, 235, 200}, // Light orange
	{235, 215, 255}, // Light purple
}

// Export writes the session as PDF.
func (e *PDFExporter) Export(session *core.Session, turns []*core.Turn, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)

	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.MultiCell(0, 10, "Session Transcript", "", "C", false)
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Session Information")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	e.addMetadataRow(pdf, "ID:", shortID(session.ID))
	e.addMetadataRow(pdf, "Created:", session.CreatedAt.Format("January 2, 2006 at 3:04 PM"))
	e.addMetadataRow(pdf, "Turns:", fmt.Sprintf("%d", len(turns)))
	if names := participants(turns); len(names) > 0 {
		e.addMetadataRow(pdf, "Speakers:", e.sanitizeText(strings.Join(names, ", ")))
	}
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Conversation")
	pdf.Ln(8)

	if len(turns) == 0 {
		pdf.SetFont("Arial", "I", 10)
		pdf.Cell(0, 6, "No turns recorded.")
		pdf.Ln(6)
	} else {
		colors := make(map[string][3]int)
		for i, turn := range turns {
			if pdf.GetY() > 250 {
				pdf.AddPage()
			}

			c, ok := colors[turn.Speaker]
			if !ok {
				if turn.Speaker == core.SpeakerUser {
					c = [3]int{230, 230, 230}
				} else {
					c = speakerColors[len(colors)%len(speakerColors)]
				}
				colors[turn.Speaker] = c
			}
			pdf.SetFillColor(c[0], c[1], c[2])

			pdf.SetFont("Arial", "B", 10)
			header := fmt.Sprintf("Turn %d - %s (%s)", i+1, e.sanitizeText(speakerName(turn.Speaker)), turn.CreatedAt.Format("3:04 PM"))
			pdf.CellFormat(0, 7, header, "", 1, "", true, 0, "")

			pdf.SetFont("Arial", "", 9)
			pdf.SetFillColor(255, 255, 255)
			pdf.MultiCell(0, 5, e.sanitizeText(turn.Content), "", "", false)
			pdf.Ln(5)
		}
	}

	pdf.SetY(-15)
	pdf.SetFont("Arial", "I", 8)
	pdf.CellFormat(0, 10, "Exported from agora", "", 0, "C", false, 0, "")

	return pdf.Output(w)
}

// FileExtension returns the file extension for PDF.
func (e *PDFExporter) FileExtension() string {
	return "pdf"
}

// ContentType returns the MIME type for PDF.
func (e *PDFExporter) ContentType() string {
	return "application/pdf"
}

// Helper to add a metadata row
func (e *PDFExporter) addMetadataRow(pdf *gofpdf.Fpdf, label, value string) {
	pdf.SetFont("Arial", "B", 10)
	pdf.Cell(30, 5, label)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 5, value)
	pdf.Ln(5)
}

// Sanitize text for PDF (remove problematic characters)
func (e *PDFExporter) sanitizeText(text string) string {
	// gofpdf uses Windows-1252 encoding by default
	replacer := strings.NewReplacer(
		"\u2018", "'",   // Left single quote
		"\u2019", "'",   // Right single quote
		"\u201C", "\"",  // Left double quote
		"\u201D", "\"",  // Right double quote
		"\u2013", "-",   // En dash
		"\u2014", "--",  // Em dash
		"\u2026", "...", // Ellipsis
		"\u2022", "*",   // Bullet
		"\u00A0", " ",   // Non-breaking space
	)
	return replacer.Replace(text)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}
