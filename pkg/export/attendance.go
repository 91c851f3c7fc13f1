// Package export renders attendance records as spreadsheets.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const sheet = "Attendance"

var header = []interface{}{"User ID", "Date", "Clock in", "Clock out", "Total hours", "Status", "Active"}

// Row is one attendance record as it appears in the sheet.
type Row struct {
	UserID     uint
	Date       string
	ClockIn    time.Time
	ClockOut   *time.Time
	TotalHours float64
	Status     string
	Active     bool
}

// WriteAttendance writes rows as an xlsx workbook to w. Times are rendered
// in loc.
func WriteAttendance(w io.Writer, rows []Row, loc *time.Location) error {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetRowStyle(sheet, 1, 1, bold); err != nil {
		return err
	}

	for i, r := range rows {
		clockOut := ""
		if r.ClockOut != nil {
			clockOut = r.ClockOut.In(loc).Format("15:04:05")
		}
		cells := []interface{}{
			r.UserID,
			r.Date,
			r.ClockIn.In(loc).Format("15:04:05"),
			clockOut,
			r.TotalHours,
			r.Status,
			yesNo(r.Active),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(sheet, "A", "G", 14); err != nil {
		return err
	}
	return f.Write(w)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
