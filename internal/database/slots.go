package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"trialdesk/internal/models"
)

// OpenSlot publishes one availability window for a teacher. The slot date is
// stored as the calendar day of utc_start in the reference zone. Same-day
// slots are immutable, so opening one for today is rejected as well.
func (db *DB) OpenSlot(ctx context.Context, slot *models.AvailabilitySlot) error {
	if _, ok := db.teacherFromCache(slot.TeacherID); !ok {
		return ErrTeacherNotFound
	}

	date := slot.UTCStart.In(db.refZone).Format("2006-01-02")
	if db.IsLocked(date, time.Now()) {
		return ErrSlotLocked
	}

	query := `
        INSERT INTO availability_slots (teacher_id, date, utc_start, utc_end, is_booked, created_at, updated_at)
        VALUES (?, ?, ?, ?, 0, ?, ?)
    `
	now := time.Now()
	result, err := db.ExecContext(ctx, query, slot.TeacherID, date,
		slot.UTCStart.UTC(), slot.UTCEnd.UTC(), now, now)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateSlot
		}
		return fmt.Errorf("failed to open slot: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	slot.ID = id
	slot.Date = date
	slot.CreatedAt = now
	slot.UpdatedAt = now
	return nil
}

// GetTeacherSlots returns a teacher's slots with utc_start in [from, to).
func (db *DB) GetTeacherSlots(ctx context.Context, teacherID int64, from, to time.Time) ([]models.AvailabilitySlot, error) {
	query := `
        SELECT id, teacher_id, date, utc_start, utc_end, is_booked, created_at, updated_at
        FROM availability_slots
        WHERE teacher_id = ? AND utc_start >= ? AND utc_start < ?
        ORDER BY utc_start
    `
	rows, err := db.QueryContext(ctx, query, teacherID, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get teacher slots: %w", err)
	}
	defer rows.Close()

	var slots []models.AvailabilitySlot
	for rows.Next() {
		var s models.AvailabilitySlot
		if err := rows.Scan(&s.ID, &s.TeacherID, &s.Date, &s.UTCStart, &s.UTCEnd,
			&s.IsBooked, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		s.UTCStart = s.UTCStart.UTC()
		s.UTCEnd = s.UTCEnd.UTC()
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

// FindFree returns every qualifying teacher with an open, non-booked slot
// exactly covering [utcStart, utcEnd). A "mixed" (or empty) filter matches
// all types; a concrete type also matches "mixed" teachers. Results are
// ordered by teacher id.
func (db *DB) FindFree(ctx context.Context, utcStart, utcEnd time.Time, teacherType string) ([]models.SlotCandidate, error) {
	query := `
        SELECT teacher_id, utc_start, utc_end
        FROM availability_slots
        WHERE utc_start = ? AND utc_end = ? AND is_booked = 0
        ORDER BY teacher_id
    `
	rows, err := db.QueryContext(ctx, query, utcStart.UTC(), utcEnd.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to find free slots: %w", err)
	}
	defer rows.Close()

	var candidates []models.SlotCandidate
	for rows.Next() {
		var teacherID int64
		var start, end time.Time
		if err := rows.Scan(&teacherID, &start, &end); err != nil {
			return nil, fmt.Errorf("failed to scan free slot: %w", err)
		}

		teacher, ok := db.teacherFromCache(teacherID)
		if !ok || !teacher.IsActive {
			continue
		}
		if !typeMatches(teacherType, teacher.Type) {
			continue
		}

		candidates = append(candidates, models.SlotCandidate{
			TeacherID:   teacher.ID,
			TeacherName: teacher.Name,
			TeacherType: teacher.Type,
			UTCStart:    start.UTC(),
			UTCEnd:      end.UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].TeacherID < candidates[j].TeacherID })
	return candidates, nil
}

func typeMatches(requested, actual string) bool {
	if requested == "" || requested == models.TeacherTypeMixed {
		return true
	}
	return actual == requested || actual == models.TeacherTypeMixed
}

// IsLocked reports whether a slot date (YYYY-MM-DD) is "today" in the
// reference zone at the given wall-clock instant. Locked dates are read-only
// for every mutator, bookings included.
func (db *DB) IsLocked(date string, now time.Time) bool {
	return date == now.In(db.refZone).Format("2006-01-02")
}

// ReleaseSlot frees a reserved slot again. Same-day slots are immutable here
// too; the booking transaction rolls back its own reservation and never goes
// through this path.
func (db *DB) ReleaseSlot(ctx context.Context, teacherID int64, utcStart time.Time) error {
	date := utcStart.In(db.refZone).Format("2006-01-02")
	if db.IsLocked(date, time.Now()) {
		return ErrSlotLocked
	}

	query := `UPDATE availability_slots SET is_booked = 0, updated_at = ? WHERE teacher_id = ? AND utc_start = ?`
	result, err := db.ExecContext(ctx, query, time.Now(), teacherID, utcStart.UTC())
	if err != nil {
		return fmt.Errorf("failed to release slot: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrSlotNotFound
	}
	return nil
}
