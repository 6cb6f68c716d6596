// README: Printable manifest rendering.
package allocation

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/phpdave11/gofpdf"
)

// RenderPDF writes one page per vehicle manifest.
func RenderPDF(w io.Writer, departure time.Time, manifests []Manifest) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Passenger manifest", false)
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, m := range manifests {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "B", 18)
		pdf.Cell(0, 10, "PASSENGER MANIFEST")
		pdf.Ln(12)

		pdf.SetFont("Helvetica", "", 12)
		name := m.Vehicle
		if name == "" {
			name = string(m.VehicleID)
		}
		pdf.Cell(0, 7, tr("Vehicle    : "+name))
		pdf.Ln(7)
		pdf.Cell(0, 7, "Departure  : "+departure.Format("2006-01-02 15:04 MST"))
		pdf.Ln(7)
		pdf.Cell(0, 7, fmt.Sprintf("Seats      : %d / %d (%s)", m.SeatsTotal, m.Capacity, m.Source))
		pdf.Ln(10)

		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(30, 7, "Seats", "1", 0, "C", false, 0, "")
		pdf.CellFormat(60, 7, "Lead", "1", 0, "", false, 0, "")
		pdf.CellFormat(100, 7, "Passengers", "1", 1, "", false, 0, "")

		pdf.SetFont("Helvetica", "", 10)
		if len(m.Parties) == 0 {
			pdf.CellFormat(190, 7, "No passengers", "1", 1, "C", false, 0, "")
		}
		for _, p := range m.Parties {
			lead := p.LeadName
			if p.LeadPhone != "" {
				lead += " " + p.LeadPhone
			}
			pdf.CellFormat(30, 7, fmt.Sprintf("%d", p.Size), "1", 0, "C", false, 0, "")
			pdf.CellFormat(60, 7, tr(lead), "1", 0, "", false, 0, "")
			pdf.CellFormat(100, 7, tr(strings.Join(p.Passengers, ", ")), "1", 1, "", false, 0, "")
		}
	}
	if len(manifests) == 0 {
		pdf.AddPage()
		pdf.SetFont("Helvetica", "I", 12)
		pdf.Cell(0, 10, "No vehicles on this journey")
	}
	return pdf.Output(w)
}
