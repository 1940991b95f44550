package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"trialdesk/internal/models"
)

const bookingColumns = `id, student_id, student_name, phone, family_group_id, teacher_id,
	teacher_name, teacher_type, trial_date, trial_time, utc_start, utc_end,
	status, created_at, updated_at, version`

// ReserveAndBook commits one booking attempt as a single transaction:
// compare-and-set the slot to booked, insert every trial row, and bump the
// teacher's assignment history. Exactly one concurrent caller can win the CAS
// for a given (teacher, utc_start); everyone else gets ErrAlreadyBooked.
// Any later failure in the transaction rolls the reservation back, so a
// partial family booking never leaves a reserved-but-unused slot behind.
func (db *DB) ReserveAndBook(ctx context.Context, teacherID int64, utcStart, utcEnd time.Time, bookings []*models.TrialBooking) error {
	if len(bookings) == 0 {
		return errors.New("no bookings to create")
	}

	slotDate := utcStart.In(db.refZone).Format("2006-01-02")
	if db.IsLocked(slotDate, time.Now()) {
		return ErrSlotLocked
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now()

	// 1. Compare-and-set the slot.
	reserve := `
        UPDATE availability_slots SET is_booked = 1, updated_at = ?
        WHERE teacher_id = ? AND utc_start = ? AND utc_end = ? AND is_booked = 0
    `
	result, err := tx.ExecContext(ctx, reserve, now, teacherID, utcStart.UTC(), utcEnd.UTC())
	if err != nil {
		return fmt.Errorf("failed to reserve slot in tx: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAlreadyBooked
	}

	// 2. One trial row per student.
	insert := `
        INSERT INTO trial_bookings (
            student_id, student_name, phone, family_group_id, teacher_id,
            teacher_name, teacher_type, trial_date, trial_time, utc_start, utc_end,
            status, created_at, updated_at, version
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	for _, b := range bookings {
		res, err := tx.ExecContext(ctx, insert,
			b.StudentID,
			b.StudentName,
			b.Phone,
			nullableString(b.FamilyGroupID),
			teacherID,
			b.TeacherName,
			b.TeacherType,
			b.TrialDate,
			b.TrialTime,
			utcStart.UTC(),
			utcEnd.UTC(),
			models.StatusPending,
			now,
			now,
			1,
		)
		if err != nil {
			return fmt.Errorf("failed to insert trial booking in tx: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id in tx: %w", err)
		}
		b.ID = id
		b.TeacherID = teacherID
		b.UTCStart = utcStart.UTC()
		b.UTCEnd = utcEnd.UTC()
		b.Status = models.StatusPending
		b.CreatedAt = now
		b.UpdatedAt = now
		b.Version = 1
	}

	// 3. Assignment history, so round-robin fairness survives restarts.
	assign := `
        INSERT INTO teacher_assignments (teacher_id, teacher_type, last_assigned_at, total_assigned)
        VALUES (?, ?, ?, 1)
        ON CONFLICT(teacher_id) DO UPDATE SET
            last_assigned_at = excluded.last_assigned_at,
            total_assigned = total_assigned + 1
    `
	teacherType := bookings[0].TeacherType
	if _, err := tx.ExecContext(ctx, assign, teacherID, teacherType, now); err != nil {
		return fmt.Errorf("failed to record assignment in tx: %w", err)
	}

	return tx.Commit()
}

// GetAssignmentTimes returns last_assigned_at per teacher. Teachers with no
// assignment yet are absent from the map.
func (db *DB) GetAssignmentTimes(ctx context.Context, teacherIDs []int64) (map[int64]time.Time, error) {
	times := make(map[int64]time.Time, len(teacherIDs))
	if len(teacherIDs) == 0 {
		return times, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(teacherIDs)), ",")
	query := fmt.Sprintf(
		`SELECT teacher_id, last_assigned_at FROM teacher_assignments WHERE teacher_id IN (%s)`,
		placeholders)

	args := make([]any, len(teacherIDs))
	for i, id := range teacherIDs {
		args[i] = id
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get assignment times: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var at time.Time
		if err := rows.Scan(&id, &at); err != nil {
			return nil, fmt.Errorf("failed to scan assignment time: %w", err)
		}
		times[id] = at
	}
	return times, rows.Err()
}

// GetBooking returns a trial booking by id.
func (db *DB) GetBooking(ctx context.Context, id int64) (*models.TrialBooking, error) {
	query := `SELECT ` + bookingColumns + ` FROM trial_bookings WHERE id = ?`
	b, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	return b, err
}

// GetFamilyBookings returns every booking in a family group, ordered by id.
func (db *DB) GetFamilyBookings(ctx context.Context, familyGroupID string) ([]models.TrialBooking, error) {
	query := `SELECT ` + bookingColumns + ` FROM trial_bookings WHERE family_group_id = ? ORDER BY id`
	return db.queryBookings(ctx, query, familyGroupID)
}

// GetBookingsByDateRange returns bookings with utc_start in [start, end).
func (db *DB) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]models.TrialBooking, error) {
	query := `SELECT ` + bookingColumns + `
        FROM trial_bookings
        WHERE utc_start >= ? AND utc_start < ?
        ORDER BY utc_start, id`
	return db.queryBookings(ctx, query, start.UTC(), end.UTC())
}

// GetDailyBookings groups bookings by trial date (reference zone).
func (db *DB) GetDailyBookings(ctx context.Context, start, end time.Time) (map[string][]models.TrialBooking, error) {
	bookings, err := db.GetBookingsByDateRange(ctx, start, end)
	if err != nil {
		return nil, err
	}

	daily := make(map[string][]models.TrialBooking)
	for _, b := range bookings {
		daily[b.TrialDate] = append(daily[b.TrialDate], b)
	}
	return daily, nil
}

// UpdateBookingStatusWithVersion applies an optimistic-concurrency status
// write; a stale version loses with ErrVersionConflict.
func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, version int64, status string) error {
	query := `
        UPDATE trial_bookings SET status = ?, updated_at = ?, version = version + 1
        WHERE id = ? AND version = ?
    `
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, version)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, getErr := db.GetBooking(ctx, id); getErr != nil {
			return getErr
		}
		return ErrVersionConflict
	}
	return nil
}

func (db *DB) queryBookings(ctx context.Context, query string, args ...any) ([]models.TrialBooking, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query bookings: %w", err)
	}
	defer rows.Close()

	var bookings []models.TrialBooking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.TrialBooking, error) {
	var b models.TrialBooking
	var family sql.NullString
	var phone sql.NullString
	err := row.Scan(
		&b.ID,
		&b.StudentID,
		&b.StudentName,
		&phone,
		&family,
		&b.TeacherID,
		&b.TeacherName,
		&b.TeacherType,
		&b.TrialDate,
		&b.TrialTime,
		&b.UTCStart,
		&b.UTCEnd,
		&b.Status,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.Version,
	)
	if err != nil {
		return nil, err
	}
	b.Phone = phone.String
	b.FamilyGroupID = family.String
	b.UTCStart = b.UTCStart.UTC()
	b.UTCEnd = b.UTCEnd.UTC()
	return &b, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
