package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// TimetableRow is one scheduled day on the printable sheet.
type TimetableRow struct {
	Date  string
	Start string
	End   string
	Room  string
}

// TimetableSheet holds the data rendered onto a schedule hand-out.
type TimetableSheet struct {
	CourseTitle string
	TrainerName string
	Days        []TimetableRow
}

// TimetablePDF renders accepted schedules into a printable A4 sheet.
type TimetablePDF struct{}

// NewTimetablePDF constructs the exporter.
func NewTimetablePDF() *TimetablePDF {
	return &TimetablePDF{}
}

// Render produces the PDF document for the given sheet.
func (e *TimetablePDF) Render(sheet TimetableSheet) ([]byte, error) {
	if len(sheet.Days) == 0 {
		return nil, fmt.Errorf("timetable requires at least one day")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, strings.ToUpper(sheet.CourseTitle), "", 1, "C", false, 0, "")
	if sheet.TrainerName != "" {
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(0, 8, fmt.Sprintf("Trainer: %s", sheet.TrainerName), "", 1, "C", false, 0, "")
	}
	pdf.Ln(5)

	headers := []string{"Date", "Start", "End", "Room"}
	widths := []float64{55, 40, 40, 55}

	pdf.SetFont("Arial", "B", 10)
	for i, header := range headers {
		pdf.CellFormat(widths[i], 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 9)
	for _, day := range sheet.Days {
		pdf.CellFormat(widths[0], 7, day.Date, "1", 0, "", false, 0, "")
		pdf.CellFormat(widths[1], 7, day.Start, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[2], 7, day.End, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[3], 7, day.Room, "1", 0, "", false, 0, "")
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render timetable pdf: %w", err)
	}
	return buf.Bytes(), nil
}
