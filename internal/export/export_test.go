package export

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trialdesk/internal/database"
	"trialdesk/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func newExportFixture(t *testing.T) (*Exporter, *database.DB, string) {
	t.Helper()
	dir := t.TempDir()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(dir, "test.db"), time.UTC, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	exportDir := filepath.Join(dir, "exports")
	return NewExporter(db, exportDir, zerolog.Nop()), db, exportDir
}

func TestExportBookings(t *testing.T) {
	exporter, db, exportDir := newExportFixture(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertTeacher(ctx, &models.Teacher{
		ID: 1, Name: "Anna", Type: models.TeacherTypeKids, IsActive: true,
	}))
	require.NoError(t, db.UpsertTeacher(ctx, &models.Teacher{
		ID: 2, Name: "Boris", Type: models.TeacherTypeAdult, IsActive: true,
	}))

	utcStart := time.Date(2025, 6, 21, 14, 30, 0, 0, time.UTC)
	require.NoError(t, db.OpenSlot(ctx, &models.AvailabilitySlot{
		TeacherID: 1,
		UTCStart:  utcStart,
		UTCEnd:    utcStart.Add(models.SlotLength),
	}))
	require.NoError(t, db.ReserveAndBook(ctx, 1, utcStart, utcStart.Add(models.SlotLength),
		[]*models.TrialBooking{{StudentID: 10, StudentName: "Omar", TrialTime: "17:30"}}))

	start := time.Date(2025, 6, 16, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 22, 0, 0, 0, 0, time.UTC)
	filePath, err := exporter.ExportBookings(ctx, start, end)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(exportDir, "trials_2025-06-16_to_2025-06-22.xlsx"), filePath)
	_, err = os.Stat(filePath)
	require.NoError(t, err)

	f, err := excelize.OpenFile(filePath)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Trials")
	require.NoError(t, err)
	require.NotEmpty(t, rows)
	assert.Contains(t, rows[0][0], "16.06.2025")

	var teacherRows []string
	for _, row := range rows {
		if len(row) > 0 {
			teacherRows = append(teacherRows, row[0])
		}
	}
	assert.Contains(t, teacherRows, "Anna (kids)")
	assert.Contains(t, teacherRows, "Boris (adult)")
}

func TestExportBookings_EmptyRangeStillProducesFile(t *testing.T) {
	exporter, db, _ := newExportFixture(t)
	ctx := context.Background()

	require.NoError(t, db.UpsertTeacher(ctx, &models.Teacher{
		ID: 1, Name: "Anna", Type: models.TeacherTypeKids, IsActive: true,
	}))

	start := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 1, 12, 0, 0, 0, 0, time.UTC)
	filePath, err := exporter.ExportBookings(ctx, start, end)
	require.NoError(t, err)

	_, err = os.Stat(filePath)
	assert.NoError(t, err)
}

func TestStatusIcon(t *testing.T) {
	assert.Equal(t, "✅", statusIcon(models.StatusConfirmed))
	assert.Equal(t, "⏳", statusIcon(models.StatusPending))
	assert.Equal(t, "❌", statusIcon(models.StatusCancelled))
	assert.Equal(t, "❓", statusIcon("mystery"))
}

func TestFilterActiveBookings(t *testing.T) {
	bookings := []models.TrialBooking{
		{ID: 1, Status: models.StatusPending},
		{ID: 2, Status: models.StatusCancelled},
		{ID: 3, Status: models.StatusActive},
		{ID: 4, Status: models.StatusDropped},
		{ID: 5, Status: models.StatusExpired},
	}
	active := filterActiveBookings(bookings)
	require.Len(t, active, 2)
	assert.Equal(t, int64(1), active[0].ID)
	assert.Equal(t, int64(3), active[1].ID)
}

func TestLastColumn(t *testing.T) {
	assert.Equal(t, "A", lastColumn(1))
	assert.Equal(t, "H", lastColumn(8))
	assert.Equal(t, "Z", lastColumn(26))
	assert.Equal(t, "AA", lastColumn(27))
	assert.Equal(t, "AB", lastColumn(28))
}
