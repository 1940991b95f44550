package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"trialdesk/internal/domain"
	"trialdesk/internal/models"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
)

// Exporter writes booking schedules to xlsx files for the sales team.
type Exporter struct {
	repo   domain.Repository
	path   string
	logger zerolog.Logger
}

func NewExporter(repo domain.Repository, path string, logger zerolog.Logger) *Exporter {
	return &Exporter{repo: repo, path: path, logger: logger}
}

// ExportBookings renders a teachers-by-days grid of trial bookings for the
// period and returns the file path.
func (e *Exporter) ExportBookings(ctx context.Context, startDate, endDate time.Time) (string, error) {
	if err := os.MkdirAll(e.path, 0o755); err != nil {
		return "", fmt.Errorf("error creating export directory: %v", err)
	}

	dailyBookings, err := e.repo.GetDailyBookings(ctx, startDate, endDate)
	if err != nil {
		return "", fmt.Errorf("error getting bookings: %v", err)
	}

	teachers, err := e.repo.GetActiveTeachers(ctx)
	if err != nil {
		return "", fmt.Errorf("error getting teachers: %v", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Trials"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		return "", fmt.Errorf("error creating sheet: %v", err)
	}
	f.SetActiveSheet(index)

	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s",
		startDate.Format("02.01.2006"), endDate.Format("02.01.2006")))

	dateHeaders := e.writeDateHeaders(f, sheetName, startDate, endDate)
	e.writeTeacherHeaders(f, sheetName, teachers)
	e.writeBookingData(f, sheetName, dailyBookings, teachers, dateHeaders)

	_ = f.SetColWidth(sheetName, "A", "A", 25)
	for i := 'B'; i <= 'Z'; i++ {
		_ = f.SetColWidth(sheetName, string(i), string(i), 22)
	}

	lastCol := lastColumn(len(dateHeaders) + 1)
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")

	style, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", style)

	_ = f.DeleteSheet("Sheet1")

	fileName := fmt.Sprintf("trials_%s_to_%s.xlsx",
		startDate.Format("2006-01-02"),
		endDate.Format("2006-01-02"))
	filePath := filepath.Join(e.path, fileName)

	if err := f.SaveAs(filePath); err != nil {
		return "", fmt.Errorf("error saving file: %v", err)
	}

	e.logger.Info().Str("file_path", filePath).Msg("Excel file created")
	return filePath, nil
}

func (e *Exporter) writeDateHeaders(f *excelize.File, sheetName string, startDate, endDate time.Time) map[string]int {
	col := 2
	currentDate := startDate
	dateHeaders := make(map[string]int)

	for !currentDate.After(endDate) {
		cell, _ := excelize.CoordinatesToCellName(col, 2)
		_ = f.SetCellValue(sheetName, cell, currentDate.Format("02.01"))
		dateHeaders[currentDate.Format("2006-01-02")] = col

		style, _ := f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
			Font:      &excelize.Font{Bold: true},
			Alignment: &excelize.Alignment{Horizontal: "center"},
		})
		_ = f.SetCellStyle(sheetName, cell, cell, style)

		col++
		currentDate = currentDate.AddDate(0, 0, 1)
	}
	return dateHeaders
}

func (e *Exporter) writeTeacherHeaders(f *excelize.File, sheetName string, teachers []models.Teacher) {
	row := 3
	for _, teacher := range teachers {
		cell, _ := excelize.CoordinatesToCellName(1, row)
		_ = f.SetCellValue(sheetName, cell, fmt.Sprintf("%s (%s)", teacher.Name, teacher.Type))

		style, _ := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
			Font: &excelize.Font{Bold: true},
		})
		_ = f.SetCellStyle(sheetName, cell, cell, style)

		row++
	}
}

func (e *Exporter) writeBookingData(
	f *excelize.File, sheetName string,
	dailyBookings map[string][]models.TrialBooking,
	teachers []models.Teacher,
	dateHeaders map[string]int,
) {
	for dateKey, bookings := range dailyBookings {
		col, exists := dateHeaders[dateKey]
		if !exists {
			continue
		}

		bookingsByTeacher := make(map[int64][]models.TrialBooking)
		for _, booking := range bookings {
			bookingsByTeacher[booking.TeacherID] = append(bookingsByTeacher[booking.TeacherID], booking)
		}

		row := 3
		for _, teacher := range teachers {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			teacherBookings := bookingsByTeacher[teacher.ID]

			var cellValue string
			for _, booking := range teacherBookings {
				cellValue += fmt.Sprintf("%s %s (%s)\n%s [%s]\n",
					statusIcon(booking.Status), booking.StudentName, booking.Phone,
					booking.TrialTime, booking.Status)
			}

			_ = f.SetCellValue(sheetName, cell, cellValue)

			styleID, err := e.cellStyle(f, teacherBookings)
			if err == nil {
				_ = f.SetCellStyle(sheetName, cell, cell, styleID)
			}
			row++
		}
	}
}

func statusIcon(status string) string {
	switch status {
	case models.StatusConfirmed, models.StatusTrialCompleted, models.StatusPaid, models.StatusActive:
		return "✅"
	case models.StatusPending, models.StatusFollowUp, models.StatusAwaitingPayment:
		return "⏳"
	case models.StatusTrialGhosted, models.StatusCancelled, models.StatusDropped, models.StatusExpired:
		return "❌"
	default:
		return "❓"
	}
}

func (e *Exporter) cellStyle(f *excelize.File, bookings []models.TrialBooking) (int, error) {
	alignment := &excelize.Alignment{
		Horizontal: "left",
		Vertical:   "top",
		WrapText:   true,
	}

	active := filterActiveBookings(bookings)
	if len(active) == 0 {
		return f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"#FFFFFF"}, Pattern: 1},
			Alignment: alignment,
		})
	}

	hasUnconfirmed := false
	for _, booking := range active {
		if booking.Status == models.StatusPending || booking.Status == models.StatusFollowUp ||
			booking.Status == models.StatusAwaitingPayment {
			hasUnconfirmed = true
			break
		}
	}

	if hasUnconfirmed {
		return f.NewStyle(&excelize.Style{
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"#FFEB9C"}, Pattern: 1},
			Alignment: alignment,
		})
	}

	return f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#C6EFCE"}, Pattern: 1},
		Alignment: alignment,
	})
}

func filterActiveBookings(bookings []models.TrialBooking) []models.TrialBooking {
	var active []models.TrialBooking
	for _, booking := range bookings {
		switch booking.Status {
		case models.StatusCancelled, models.StatusDropped, models.StatusExpired:
		default:
			active = append(active, booking)
		}
	}
	return active
}

func lastColumn(colCount int) string {
	if colCount <= 26 {
		return string(rune('A' + colCount - 1))
	}

	firstChar := string(rune('A' + (colCount-1)/26 - 1))
	secondChar := string(rune('A' + (colCount-1)%26))
	return firstChar + secondChar
}
