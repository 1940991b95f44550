package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"trialdesk/internal/database"
	"trialdesk/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	logger := zerolog.Nop()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"), time.UTC, &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedTeacher(t *testing.T, db *database.DB, id int64, name, teacherType string) {
	t.Helper()
	err := db.UpsertTeacher(context.Background(), &models.Teacher{
		ID:       id,
		Name:     name,
		Type:     teacherType,
		IsActive: true,
	})
	require.NoError(t, err)
}

func openSlot(t *testing.T, db *database.DB, teacherID int64, utcStart time.Time) {
	t.Helper()
	err := db.OpenSlot(context.Background(), &models.AvailabilitySlot{
		TeacherID: teacherID,
		UTCStart:  utcStart,
		UTCEnd:    utcStart.Add(models.SlotLength),
	})
	require.NoError(t, err)
}

// tomorrowAt avoids the same-day mutation lock in tests that open slots.
func tomorrowAt(hour int) time.Time {
	return time.Now().UTC().AddDate(0, 0, 1).Truncate(24 * time.Hour).Add(time.Duration(hour) * time.Hour)
}

// bookPending reserves a slot and returns the created pending bookings.
func bookPending(t *testing.T, db *database.DB, teacherID int64, utcStart time.Time, students ...string) []*models.TrialBooking {
	t.Helper()
	familyID := ""
	if len(students) > 1 {
		familyID = "fam-" + students[0]
	}
	bookings := make([]*models.TrialBooking, len(students))
	for i, name := range students {
		bookings[i] = &models.TrialBooking{
			StudentID:     int64(100 + i),
			StudentName:   name,
			Phone:         "+100000000" + name,
			FamilyGroupID: familyID,
		}
	}
	err := db.ReserveAndBook(context.Background(), teacherID, utcStart, utcStart.Add(models.SlotLength), bookings)
	require.NoError(t, err)
	return bookings
}

// setStatus force-walks a booking to the given status for test setup.
func setStatus(t *testing.T, db *database.DB, bookingID int64, status string) {
	t.Helper()
	ctx := context.Background()
	b, err := db.GetBooking(ctx, bookingID)
	require.NoError(t, err)
	if b.Status == status {
		return
	}
	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, bookingID, b.Version, status))
}
