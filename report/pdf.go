package report

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"github.com/quill/toil-tracker/engine"
)

// WritePDF renders the statement as an A4 PDF to w.
func WritePDF(st Statement, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "TOIL Statement")
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Name: %s", st.UserName))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Email: %s", st.UserEmail))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", st.GeneratedAt.Format("2006-01-02")))
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.Cell(28, 8, "Date")
	pdf.Cell(22, 8, "Type")
	pdf.Cell(22, 8, "Hours")
	pdf.Cell(50, 8, "Project")
	pdf.Cell(0, 8, "Detail")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	for _, line := range st.Lines {
		label := "Earned"
		if line.Type == engine.SubmissionUse {
			label = "Used"
		}
		pdf.Cell(28, 7, line.Date.Format("2006-01-02"))
		pdf.Cell(22, 7, label)
		pdf.Cell(22, 7, line.Hours.StringFixed(2))
		pdf.Cell(50, 7, line.Project)
		pdf.Cell(0, 7, line.Description)
		pdf.Ln(7)
	}

	pdf.Ln(5)
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Current balance: %s (%s hours)",
		engine.FormatMinutes(st.BalanceMinutes), st.BalanceHours.StringFixed(2)))

	return pdf.Output(w)
}
