package reports

import (
	"fmt"
	"io"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"opsdesk/internal/domain/attendance"
	"opsdesk/internal/domain/ledger"
)

const timeLayout = "15:04"

var attendanceHeader = []string{"Date", "Staff", "Status", "In", "Out", "Manual", "Note"}

// WriteLedgerPDF renders one staff member's balance summary and statement.
func WriteLedgerPDF(w io.Writer, staffName string, summary ledger.Summary, lines []ledger.StatementLine, generatedAt time.Time) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, "Cash Ledger Statement")
	pdf.Ln(12)
	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, tr(fmt.Sprintf("Staff: %s", staffName)))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Generated: %s", generatedAt.Format("2006-01-02 15:04")))
	pdf.Ln(10)

	pdf.Cell(0, 8, fmt.Sprintf("Regular advances: %s", summary.RegularAdvanceTotal.StringFixed(2)))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Approved expenses: %s", summary.ApprovedExpenseTotal.StringFixed(2)))
	pdf.Ln(7)
	pdf.Cell(0, 8, fmt.Sprintf("Salary advances: %s", summary.SalaryAdvanceTotal.StringFixed(2)))
	pdf.Ln(7)
	label := "Cash in hand"
	if summary.Payable() {
		label = "Payable"
	}
	pdf.SetFont("Helvetica", "B", 12)
	pdf.Cell(0, 8, fmt.Sprintf("%s: %s", label, summary.Balance.Abs().StringFixed(2)))
	pdf.Ln(12)

	widths := []float64{28, 28, 70, 32, 32}
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range []string{"Date", "Type", "Description", "Amount", "Balance"} {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 10)
	for _, line := range lines {
		pdf.CellFormat(widths[0], 6, line.Date.Format("2006-01-02"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, line.Kind, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, tr(truncate(line.Description, 40)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, line.Amount.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, line.Balance.StringFixed(2), "1", 0, "R", false, 0, "")
		pdf.Ln(-1)
	}
	return pdf.Output(w)
}

// WriteAttendancePDF renders a landscape sheet with one row per record.
func WriteAttendancePDF(w io.Writer, title string, records []attendance.Record, loc *time.Location) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.Cell(40, 10, tr(title))
	pdf.Ln(12)

	widths := []float64{26, 60, 24, 20, 20, 18, 109}
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range attendanceHeader {
		pdf.CellFormat(widths[i], 7, h, "1", 0, "L", false, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetFont("Helvetica", "", 9)
	for _, rec := range records {
		row := attendanceRow(rec, loc)
		for i, v := range row {
			pdf.CellFormat(widths[i], 6, tr(truncate(v, 70)), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}
	return pdf.Output(w)
}

// WriteAttendanceXLSX writes the same rows as WriteAttendancePDF to a workbook.
func WriteAttendanceXLSX(w io.Writer, sheet string, records []attendance.Record, loc *time.Location) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	header := make([]any, len(attendanceHeader))
	for i, h := range attendanceHeader {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(sheet, "A1", "G1", bold); err != nil {
		return err
	}

	for i, rec := range records {
		values := attendanceRow(rec, loc)
		row := make([]any, len(values))
		for j, v := range values {
			row[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(sheet, "B", "B", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "G", "G", 40); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

func attendanceRow(rec attendance.Record, loc *time.Location) []string {
	manual := ""
	if rec.IsManualByAdmin {
		manual = "yes"
	}
	return []string{rec.Date, rec.StaffName, rec.Status, clockTime(rec.CheckInTime, loc), clockTime(rec.CheckOutTime, loc), manual, rec.Note}
}

func clockTime(t *time.Time, loc *time.Location) string {
	if t == nil {
		return ""
	}
	if loc != nil {
		return t.In(loc).Format(timeLayout)
	}
	return t.Format(timeLayout)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
