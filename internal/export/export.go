package export

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scams/internal/booking"
	"scams/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	bookingsSheet = "Bookings"
	summarySheet  = "Summary"
	usersSheet    = "Users"
)

// ContentType is the MIME type of the generated workbooks.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var bookingHeaders = []string{
	"ID", "Date", "Start", "End", "Room", "Booked by", "Department", "Purpose", "Team", "Status", "Created",
}

var userHeaders = []string{
	"ID", "Name", "Email", "Department", "Role", "Status", "Registered",
}

// Bookings writes the bookings of [from, to] as a workbook: one row per booking
// plus a per-room summary sheet.
func Bookings(w io.Writer, bookings []*models.Booking, from, to string) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(bookingsSheet, "A1", fmt.Sprintf("Bookings %s - %s", from, to))
	_ = f.MergeCell(bookingsSheet, "A1", lastColumn(len(bookingHeaders))+"1")
	if title, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	}); err == nil {
		_ = f.SetCellStyle(bookingsSheet, "A1", "A1", title)
	}

	if err := writeHeader(f, bookingsSheet, 2, bookingHeaders); err != nil {
		return err
	}

	for i, b := range bookings {
		row := i + 3
		values := []interface{}{
			b.ID, b.Date, b.StartTime, b.EndTime, b.RoomName, b.UserName, b.UserDepartment,
			b.Purpose, strings.Join(b.TeamMembers, ", "), b.Status, b.CreatedAt.Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(bookingsSheet, cell, &values); err != nil {
			return fmt.Errorf("error writing booking %d: %w", b.ID, err)
		}
		if style, err := statusStyle(f, b.Status); err == nil {
			statusCell, _ := excelize.CoordinatesToCellName(10, row)
			_ = f.SetCellStyle(bookingsSheet, statusCell, statusCell, style)
		}
	}

	widths := []float64{8, 12, 8, 8, 20, 22, 18, 30, 30, 12, 18}
	for i, wd := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		_ = f.SetColWidth(bookingsSheet, col, col, wd)
	}

	if err := writeSummary(f, bookings); err != nil {
		return err
	}

	_ = f.DeleteSheet("Sheet1")
	return f.Write(w)
}

// writeSummary adds a sheet with booking counts and hours per room, cancelled bookings excluded.
func writeSummary(f *excelize.File, bookings []*models.Booking) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	if err := writeHeader(f, summarySheet, 1, []string{"Room", "Bookings", "Hours"}); err != nil {
		return err
	}

	type roomTotal struct {
		name    string
		count   int
		minutes int
	}
	var order []string
	totals := make(map[string]*roomTotal)
	for _, b := range bookings {
		if !b.IsActive() {
			continue
		}
		t, ok := totals[b.RoomName]
		if !ok {
			t = &roomTotal{name: b.RoomName}
			totals[b.RoomName] = t
			order = append(order, b.RoomName)
		}
		t.count++
		t.minutes += minutesBetween(b.StartTime, b.EndTime)
	}

	for i, name := range order {
		t := totals[name]
		values := []interface{}{t.name, t.count, float64(t.minutes) / 60}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(summarySheet, cell, &values); err != nil {
			return fmt.Errorf("error writing summary: %w", err)
		}
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 25)
	return nil
}

// Users writes the user directory as a workbook. Password hashes are never exported.
func Users(w io.Writer, users []*models.User) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(usersSheet)
	if err != nil {
		return fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)

	if err := writeHeader(f, usersSheet, 1, userHeaders); err != nil {
		return err
	}
	for i, u := range users {
		values := []interface{}{
			u.ID, u.FullName, u.Email, u.Department, u.Role, u.Status, u.CreatedAt.Format("2006-01-02 15:04"),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(usersSheet, cell, &values); err != nil {
			return fmt.Errorf("error writing user %d: %w", u.ID, err)
		}
	}

	_ = f.SetColWidth(usersSheet, "A", "A", 8)
	_ = f.SetColWidth(usersSheet, "B", "C", 28)
	_ = f.SetColWidth(usersSheet, "D", "F", 14)
	_ = f.SetColWidth(usersSheet, "G", "G", 18)

	_ = f.DeleteSheet("Sheet1")
	return f.Write(w)
}

// SaveBookings writes the bookings workbook into dir and returns its path.
func SaveBookings(dir string, bookings []*models.Booking, from, to string) (string, error) {
	var buf bytes.Buffer
	if err := Bookings(&buf, bookings, from, to); err != nil {
		return "", err
	}
	return save(dir, BookingsFileName(from, to), buf.Bytes())
}

// SaveUsers writes the users workbook into dir and returns its path.
func SaveUsers(dir string, users []*models.User, now time.Time) (string, error) {
	var buf bytes.Buffer
	if err := Users(&buf, users); err != nil {
		return "", err
	}
	return save(dir, UsersFileName(now), buf.Bytes())
}

func BookingsFileName(from, to string) string {
	return fmt.Sprintf("bookings_%s_to_%s.xlsx", from, to)
}

func UsersFileName(now time.Time) string {
	return fmt.Sprintf("users_%s.xlsx", now.Format("2006-01-02_15-04-05"))
}

func save(dir, name string, data []byte) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("error saving file: %w", err)
	}
	return path, nil
}

func writeHeader(f *excelize.File, sheet string, row int, headers []string) error {
	cell, _ := excelize.CoordinatesToCellName(1, row)
	if err := f.SetSheetRow(sheet, cell, &headers); err != nil {
		return fmt.Errorf("error writing headers: %w", err)
	}
	style, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return err
	}
	end, _ := excelize.CoordinatesToCellName(len(headers), row)
	return f.SetCellStyle(sheet, cell, end, style)
}

func statusStyle(f *excelize.File, status string) (int, error) {
	color := "#FFFFFF"
	switch status {
	case models.StatusUpcoming:
		color = "#FFEB9C"
	case models.StatusCompleted:
		color = "#C6EFCE"
	case models.StatusCancelled:
		color = "#FFC7CE"
	}
	return f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
	})
}

func lastColumn(n int) string {
	name, err := excelize.ColumnNumberToName(n)
	if err != nil {
		return "A"
	}
	return name
}

func minutesBetween(start, end string) int {
	iv, err := booking.ParseInterval(start, end)
	if err != nil || iv.Minutes() < 0 {
		return 0
	}
	return iv.Minutes()
}
