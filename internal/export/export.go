// Package export renders attendance listings as downloadable files.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"attendance-sync-api/internal/model"

	"github.com/goccy/go-json"
	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// Format is an export file type.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// timeLayout renders instants in UTC with millisecond precision.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// Columns is the header row shared by every format.
var Columns = []string{
	"id", "attendanceMachineID", "userId", "userName", "position",
	"attendanceTime", "accessMode", "attendanceStatus",
}

// ParseFormat accepts a format name case-insensitively; empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return FormatCSV, nil
	case FormatCSV, FormatJSON, FormatXLSX, FormatPDF:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported export format %q (csv, json, xlsx, pdf)", s)
	}
}

// ContentType is the response media type of f.
func (f Format) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Filename is the attachment name of f.
func (f Format) Filename() string {
	return "attendances." + string(f)
}

// Row is one exported attendance line.
type Row struct {
	ID                  string `json:"id"`
	AttendanceMachineID int    `json:"attendanceMachineID"`
	UserID              int64  `json:"userId"`
	UserName            string `json:"userName"`
	Position            string `json:"position"`
	AttendanceTime      string `json:"attendanceTime"`
	AccessMode          string `json:"accessMode"`
	AttendanceStatus    string `json:"attendanceStatus"`
}

func (r Row) values() []string {
	return []string{
		r.ID,
		strconv.Itoa(r.AttendanceMachineID),
		strconv.FormatInt(r.UserID, 10),
		r.UserName,
		r.Position,
		r.AttendanceTime,
		r.AccessMode,
		r.AttendanceStatus,
	}
}

// Rows flattens attendance views into export rows.
func Rows(views []model.AttendanceView) []Row {
	rows := make([]Row, 0, len(views))
	for _, v := range views {
		rows = append(rows, Row{
			ID:                  v.ID.String(),
			AttendanceMachineID: v.MachineNumber,
			UserID:              v.UserID,
			UserName:            v.UserName,
			Position:            v.Position,
			AttendanceTime:      v.AttendanceTime.UTC().Format(timeLayout),
			AccessMode:          v.AccessMode,
			AttendanceStatus:    v.AttendanceStatus,
		})
	}
	return rows
}

// Write renders views to w in format f.
func Write(w io.Writer, f Format, views []model.AttendanceView) error {
	rows := Rows(views)
	switch f {
	case FormatJSON:
		return json.NewEncoder(w).Encode(rows)
	case FormatXLSX:
		return writeXLSX(w, rows)
	case FormatPDF:
		return writePDF(w, rows)
	default:
		return writeCSV(w, rows)
	}
}

func writeCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return err
	}
	for _, r := range rows {
		if err := cw.Write(r.values()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeXLSX(w io.Writer, rows []Row) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "attendances"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}

	for i, col := range Columns {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, col)
	}
	for i, r := range rows {
		row := i + 2
		_ = f.SetCellValue(sheet, fmt.Sprintf("A%d", row), r.ID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("B%d", row), r.AttendanceMachineID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("C%d", row), r.UserID)
		_ = f.SetCellValue(sheet, fmt.Sprintf("D%d", row), r.UserName)
		_ = f.SetCellValue(sheet, fmt.Sprintf("E%d", row), r.Position)
		_ = f.SetCellValue(sheet, fmt.Sprintf("F%d", row), r.AttendanceTime)
		_ = f.SetCellValue(sheet, fmt.Sprintf("G%d", row), r.AccessMode)
		_ = f.SetCellValue(sheet, fmt.Sprintf("H%d", row), r.AttendanceStatus)
	}

	return f.Write(w)
}

// pdfColumns leaves out the record id to fit a landscape page.
var pdfColumns = []struct {
	title string
	width float64
}{
	{"Machine", 20}, {"User ID", 22}, {"Name", 60}, {"Position", 45},
	{"Time (UTC)", 55}, {"Mode", 35}, {"Status", 35},
}

func writePDF(w io.Writer, rows []Row) error {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetAutoPageBreak(false, 10)
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, "Attendance Report")
	pdf.Ln(8)
	pdf.SetFont("Arial", "", 9)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s  Records: %d", time.Now().UTC().Format(time.RFC3339), len(rows)))
	pdf.Ln(8)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	header := func() {
		pdf.SetFont("Arial", "B", 9)
		for _, c := range pdfColumns {
			pdf.CellFormat(c.width, 6, c.title, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
	}
	header()

	_, pageHeight := pdf.GetPageSize()
	for _, r := range rows {
		if pdf.GetY()+6 > pageHeight-10 {
			pdf.AddPage()
			header()
		}
		cells := []string{
			strconv.Itoa(r.AttendanceMachineID),
			strconv.FormatInt(r.UserID, 10),
			tr(r.UserName),
			tr(r.Position),
			r.AttendanceTime,
			tr(r.AccessMode),
			tr(r.AttendanceStatus),
		}
		for i, c := range pdfColumns {
			pdf.CellFormat(c.width, 6, cells[i], "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}
