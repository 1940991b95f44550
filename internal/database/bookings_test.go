package database

import (
	"context"
	"testing"
	"time"

	"trialdesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBooking(studentID int64, name string, start time.Time) *models.TrialBooking {
	return &models.TrialBooking{
		StudentID:   studentID,
		StudentName: name,
		Phone:       "+971500000001",
		TeacherName: "Alice",
		TeacherType: models.TeacherTypeKids,
		TrialDate:   start.Format("2006-01-02"),
		TrialTime:   start.Format("15:04"),
	}
}

func TestReserveAndBook_Single(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	seedTeacher(t, db, 1, "Alice", models.TeacherTypeKids)
	start := tomorrowAt(14)
	end := start.Add(models.SlotLength)
	openTestSlot(t, db, 1, start)

	b := testBooking(10, "Sam", start)
	require.NoError(t, db.ReserveAndBook(ctx, 1, start, end, []*models.TrialBooking{b}))

	assert.NotZero(t, b.ID)
	assert.Equal(t, models.StatusPending, b.Status)
	assert.Equal(t, int64(1), b.Version)
	assert.Equal(t, int64(1), b.TeacherID)

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sam", got.StudentName)
	assert.Equal(t, start, got.UTCStart)
	assert.Empty(t, got.FamilyGroupID)
}

func TestReserveAndBook_SecondAttemptLoses(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	seedTeacher(t, db, 1, "Alice", models.TeacherTypeKids)
	start := tomorrowAt(14)
	end := start.Add(models.SlotLength)
	openTestSlot(t, db, 1, start)

	require.NoError(t, db.ReserveAndBook(ctx, 1, start, end, []*models.TrialBooking{testBooking(10, "Sam", start)}))

	err := db.ReserveAndBook(ctx, 1, start, end, []*models.TrialBooking{testBooking(11, "Lea", start)})
	assert.ErrorIs(t, err, ErrAlreadyBooked)
}

func TestReserveAndBook_Family(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	seedTeacher(t, db, 1, "Alice", models.TeacherTypeMixed)
	start := tomorrowAt(15)
	end := start.Add(models.SlotLength)
	openTestSlot(t, db, 1, start)

	family := "a4f9a3a0-0000-4000-8000-000000000001"
	bookings := []*models.TrialBooking{
		testBooking(10, "Sam", start),
		testBooking(11, "Lea", start),
		testBooking(12, "Max", start),
	}
	for _, b := range bookings {
		b.FamilyGroupID = family
	}

	require.NoError(t, db.ReserveAndBook(ctx, 1, start, end, bookings))

	rows, err := db.GetFamilyBookings(ctx, family)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Equal(t, family, row.FamilyGroupID)
		assert.Equal(t, models.StatusPending, row.Status)
		assert.Equal(t, start, row.UTCStart)
	}
}

func TestReserveAndBook_NoRows(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	seedTeacher(t, db, 1, "Alice", models.TeacherTypeKids)
	start := tomorrowAt(14)
	err := db.ReserveAndBook(context.Background(), 1, start, start.Add(models.SlotLength), nil)
	assert.Error(t, err)
}

func TestReserveAndBook_SameDayLocked(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	seedTeacher(t, db, 1, "Alice", models.TeacherTypeKids)
	start := time.Now().UTC().Truncate(24 * time.Hour).Add(23 * time.Hour)
	err := db.ReserveAndBook(context.Background(), 1, start, start.Add(models.SlotLength),
		[]*models.TrialBooking{testBooking(10, "Sam", start)})
	assert.ErrorIs(t, err, ErrSlotLocked)
}

func TestReserveAndBook_RecordsAssignment(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	seedTeacher(t, db, 1, "Alice", models.TeacherTypeKids)
	seedTeacher(t, db, 2, "Bob", models.TeacherTypeKids)

	start := tomorrowAt(14)
	end := start.Add(models.SlotLength)
	openTestSlot(t, db, 1, start)

	times, err := db.GetAssignmentTimes(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.Empty(t, times)

	require.NoError(t, db.ReserveAndBook(ctx, 1, start, end, []*models.TrialBooking{testBooking(10, "Sam", start)}))

	times, err = db.GetAssignmentTimes(ctx, []int64{1, 2})
	require.NoError(t, err)
	require.Contains(t, times, int64(1))
	assert.NotContains(t, times, int64(2))
	assert.WithinDuration(t, time.Now(), times[1], 5*time.Second)
}

func TestReserveAndBook_InsertFailureReleasesSlot(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	seedTeacher(t, db, 1, "Alice", models.TeacherTypeMixed)
	seedTeacher(t, db, 2, "Bob", models.TeacherTypeMixed)

	start := tomorrowAt(16)
	end := start.Add(models.SlotLength)
	openTestSlot(t, db, 1, start)
	openTestSlot(t, db, 2, start)

	// Make the insert step able to fail mid-transaction: one student, one
	// booking per instant.
	_, err := db.ExecContext(ctx,
		`CREATE UNIQUE INDEX one_booking_per_student_time ON trial_bookings(student_id, utc_start)`)
	require.NoError(t, err)

	// Lea is already booked with Bob at this time.
	require.NoError(t, db.ReserveAndBook(ctx, 2, start, end, []*models.TrialBooking{testBooking(11, "Lea", start)}))

	// A family attempt against Alice reserves her slot, writes Sam's row, then
	// fails on Lea's. Everything must unwind.
	family := []*models.TrialBooking{
		testBooking(10, "Sam", start),
		testBooking(11, "Lea", start),
	}
	err = db.ReserveAndBook(ctx, 1, start, end, family)
	require.Error(t, err)

	// The slot is free again.
	candidates, err := db.FindFree(ctx, start, end, "")
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, int64(1), candidates[0].TeacherID)

	// No partial family rows survived.
	rows, err := db.GetBookingsByDateRange(ctx, start, end)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(11), rows[0].StudentID)
	assert.Equal(t, int64(2), rows[0].TeacherID)

	// Alice's assignment history was not bumped either.
	times, err := db.GetAssignmentTimes(ctx, []int64{1})
	require.NoError(t, err)
	assert.Empty(t, times)
}

func TestGetBooking_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, err := db.GetBooking(context.Background(), 77)
	assert.ErrorIs(t, err, ErrBookingNotFound)
}

func TestUpdateBookingStatusWithVersion(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	seedTeacher(t, db, 1, "Alice", models.TeacherTypeKids)
	start := tomorrowAt(14)
	openTestSlot(t, db, 1, start)

	b := testBooking(10, "Sam", start)
	require.NoError(t, db.ReserveAndBook(ctx, 1, start, start.Add(models.SlotLength), []*models.TrialBooking{b}))

	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, b.ID, 1, models.StatusConfirmed))

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	assert.Equal(t, int64(2), got.Version)

	t.Run("StaleVersion", func(t *testing.T) {
		err := db.UpdateBookingStatusWithVersion(ctx, b.ID, 1, models.StatusTrialCompleted)
		assert.ErrorIs(t, err, ErrVersionConflict)
	})

	t.Run("MissingBooking", func(t *testing.T) {
		err := db.UpdateBookingStatusWithVersion(ctx, 9999, 1, models.StatusConfirmed)
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})
}

func TestGetBookingsByDateRange(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	seedTeacher(t, db, 1, "Alice", models.TeacherTypeKids)
	s1 := tomorrowAt(10)
	s2 := tomorrowAt(12)
	openTestSlot(t, db, 1, s1)
	openTestSlot(t, db, 1, s2)

	require.NoError(t, db.ReserveAndBook(ctx, 1, s1, s1.Add(models.SlotLength), []*models.TrialBooking{testBooking(10, "Sam", s1)}))
	require.NoError(t, db.ReserveAndBook(ctx, 1, s2, s2.Add(models.SlotLength), []*models.TrialBooking{testBooking(11, "Lea", s2)}))

	rows, err := db.GetBookingsByDateRange(ctx, s1, s2)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Sam", rows[0].StudentName)

	rows, err = db.GetBookingsByDateRange(ctx, s1, s2.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestGetDailyBookings(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	seedTeacher(t, db, 1, "Alice", models.TeacherTypeKids)
	s1 := tomorrowAt(10)
	s2 := tomorrowAt(12)
	openTestSlot(t, db, 1, s1)
	openTestSlot(t, db, 1, s2)

	require.NoError(t, db.ReserveAndBook(ctx, 1, s1, s1.Add(models.SlotLength), []*models.TrialBooking{testBooking(10, "Sam", s1)}))
	require.NoError(t, db.ReserveAndBook(ctx, 1, s2, s2.Add(models.SlotLength), []*models.TrialBooking{testBooking(11, "Lea", s2)}))

	daily, err := db.GetDailyBookings(ctx, s1, s2.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, daily, 1)

	day := s1.Format("2006-01-02")
	assert.Len(t, daily[day], 2)
}
