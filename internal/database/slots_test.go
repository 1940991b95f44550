package database

import (
	"context"
	"testing"
	"time"

	"trialdesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSlot(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	seedTeacher(t, db, 1, "Alice", models.TeacherTypeKids)
	start := tomorrowAt(14)

	slot := openTestSlot(t, db, 1, start)
	assert.NotZero(t, slot.ID)
	assert.Equal(t, start.Format("2006-01-02"), slot.Date)
	assert.False(t, slot.IsBooked)

	t.Run("UnknownTeacher", func(t *testing.T) {
		err := db.OpenSlot(ctx, &models.AvailabilitySlot{TeacherID: 99, UTCStart: start, UTCEnd: start.Add(models.SlotLength)})
		assert.ErrorIs(t, err, ErrTeacherNotFound)
	})

	t.Run("Duplicate", func(t *testing.T) {
		err := db.OpenSlot(ctx, &models.AvailabilitySlot{TeacherID: 1, UTCStart: start, UTCEnd: start.Add(models.SlotLength)})
		assert.ErrorIs(t, err, ErrDuplicateSlot)
	})

	t.Run("SameDayLocked", func(t *testing.T) {
		today := time.Now().UTC().Truncate(24 * time.Hour).Add(23 * time.Hour)
		err := db.OpenSlot(ctx, &models.AvailabilitySlot{TeacherID: 1, UTCStart: today, UTCEnd: today.Add(models.SlotLength)})
		// 23:00 today may already be tomorrow in a non-UTC environment, but
		// the test db uses UTC so the date always falls on today.
		assert.ErrorIs(t, err, ErrSlotLocked)
	})
}

func TestGetTeacherSlots(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	seedTeacher(t, db, 1, "Alice", models.TeacherTypeKids)
	seedTeacher(t, db, 2, "Bob", models.TeacherTypeAdult)

	s1 := tomorrowAt(10)
	s2 := tomorrowAt(11)
	openTestSlot(t, db, 1, s1)
	openTestSlot(t, db, 1, s2)
	openTestSlot(t, db, 2, s1)

	slots, err := db.GetTeacherSlots(ctx, 1, s1, s2.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, s1, slots[0].UTCStart)
	assert.Equal(t, s2, slots[1].UTCStart)

	// Range excludes the upper bound.
	slots, err = db.GetTeacherSlots(ctx, 1, s1, s2)
	require.NoError(t, err)
	assert.Len(t, slots, 1)
}

func TestFindFree(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	seedTeacher(t, db, 1, "Kids Teacher", models.TeacherTypeKids)
	seedTeacher(t, db, 2, "Adult Teacher", models.TeacherTypeAdult)
	seedTeacher(t, db, 3, "Mixed Teacher", models.TeacherTypeMixed)

	start := tomorrowAt(14).Add(30 * time.Minute)
	end := start.Add(models.SlotLength)
	openTestSlot(t, db, 1, start)
	openTestSlot(t, db, 2, start)
	openTestSlot(t, db, 3, start)

	t.Run("MixedMatchesAll", func(t *testing.T) {
		candidates, err := db.FindFree(ctx, start, end, models.TeacherTypeMixed)
		require.NoError(t, err)
		require.Len(t, candidates, 3)
		assert.Equal(t, int64(1), candidates[0].TeacherID)
		assert.Equal(t, int64(2), candidates[1].TeacherID)
		assert.Equal(t, int64(3), candidates[2].TeacherID)
	})

	t.Run("EmptyMatchesAll", func(t *testing.T) {
		candidates, err := db.FindFree(ctx, start, end, "")
		require.NoError(t, err)
		assert.Len(t, candidates, 3)
	})

	t.Run("ConcreteTypeIncludesMixedTeachers", func(t *testing.T) {
		candidates, err := db.FindFree(ctx, start, end, models.TeacherTypeKids)
		require.NoError(t, err)
		require.Len(t, candidates, 2)
		assert.Equal(t, int64(1), candidates[0].TeacherID)
		assert.Equal(t, int64(3), candidates[1].TeacherID)
	})

	t.Run("NoSlotAtOtherTime", func(t *testing.T) {
		candidates, err := db.FindFree(ctx, start.Add(time.Hour), end.Add(time.Hour), "")
		require.NoError(t, err)
		assert.Empty(t, candidates)
	})

	t.Run("InactiveTeacherExcluded", func(t *testing.T) {
		require.NoError(t, db.UpsertTeacher(ctx, &models.Teacher{ID: 2, Name: "Adult Teacher", Type: models.TeacherTypeAdult, IsActive: false}))
		candidates, err := db.FindFree(ctx, start, end, "")
		require.NoError(t, err)
		assert.Len(t, candidates, 2)
	})
}

func TestFindFree_BookedSlotExcluded(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	seedTeacher(t, db, 1, "Alice", models.TeacherTypeKids)
	start := tomorrowAt(14)
	end := start.Add(models.SlotLength)
	openTestSlot(t, db, 1, start)

	booking := &models.TrialBooking{StudentID: 10, StudentName: "Sam", TeacherName: "Alice",
		TeacherType: models.TeacherTypeKids, TrialDate: start.Format("2006-01-02"), TrialTime: "14:00"}
	require.NoError(t, db.ReserveAndBook(ctx, 1, start, end, []*models.TrialBooking{booking}))

	candidates, err := db.FindFree(ctx, start, end, "")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}

func TestReleaseSlot(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	seedTeacher(t, db, 1, "Alice", models.TeacherTypeKids)
	start := tomorrowAt(9)
	end := start.Add(models.SlotLength)
	openTestSlot(t, db, 1, start)

	booking := &models.TrialBooking{StudentID: 1, StudentName: "Sam", TeacherName: "Alice",
		TeacherType: models.TeacherTypeKids, TrialDate: start.Format("2006-01-02"), TrialTime: "09:00"}
	require.NoError(t, db.ReserveAndBook(ctx, 1, start, end, []*models.TrialBooking{booking}))

	require.NoError(t, db.ReleaseSlot(ctx, 1, start))

	candidates, err := db.FindFree(ctx, start, end, "")
	require.NoError(t, err)
	assert.Len(t, candidates, 1)

	assert.ErrorIs(t, db.ReleaseSlot(ctx, 1, start.Add(time.Hour)), ErrSlotNotFound)
}

func TestReleaseSlot_SameDayLocked(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()
	ctx := context.Background()

	seedTeacher(t, db, 1, "Alice", models.TeacherTypeKids)

	// A slot dated today cannot be released, booked or not. Inserted directly
	// because OpenSlot refuses today's date for the same reason.
	start := time.Now().UTC().Truncate(24 * time.Hour).Add(23 * time.Hour)
	now := time.Now()
	_, err := db.ExecContext(ctx, `
        INSERT INTO availability_slots (teacher_id, date, utc_start, utc_end, is_booked, created_at, updated_at)
        VALUES (?, ?, ?, ?, 1, ?, ?)`,
		1, start.Format("2006-01-02"), start, start.Add(models.SlotLength), now, now)
	require.NoError(t, err)

	assert.ErrorIs(t, db.ReleaseSlot(ctx, 1, start), ErrSlotLocked)

	// The reservation is untouched.
	candidates, err := db.FindFree(ctx, start, start.Add(models.SlotLength), "")
	require.NoError(t, err)
	assert.Empty(t, candidates)
}
