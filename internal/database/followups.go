package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"trialdesk/internal/models"
)

// CreateFollowUp stores a pending contact reminder.
func (db *DB) CreateFollowUp(ctx context.Context, fu *models.FollowUp) error {
	query := `
        INSERT INTO follow_ups (booking_id, family_group_id, scheduled_at, reason, notes, completed, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, 0, ?, ?)
    `
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		fu.BookingID,
		nullableString(fu.FamilyGroupID),
		fu.ScheduledAt.UTC(),
		fu.Reason,
		fu.Notes,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to create follow-up: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	fu.ID = id
	fu.Completed = false
	fu.CreatedAt = now
	fu.UpdatedAt = now
	return nil
}

// GetFollowUp returns a follow-up by id.
func (db *DB) GetFollowUp(ctx context.Context, id int64) (*models.FollowUp, error) {
	query := `
        SELECT id, booking_id, family_group_id, scheduled_at, reason, notes, completed, outcome, created_at, updated_at
        FROM follow_ups WHERE id = ?
    `
	var fu models.FollowUp
	var family, notes, outcome sql.NullString
	err := db.QueryRowContext(ctx, query, id).Scan(
		&fu.ID,
		&fu.BookingID,
		&family,
		&fu.ScheduledAt,
		&fu.Reason,
		&notes,
		&fu.Completed,
		&outcome,
		&fu.CreatedAt,
		&fu.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFollowUpNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get follow-up: %w", err)
	}
	fu.FamilyGroupID = family.String
	fu.Notes = notes.String
	fu.Outcome = outcome.String
	fu.ScheduledAt = fu.ScheduledAt.UTC()
	return &fu, nil
}

// RescheduleFollowUp moves a pending follow-up to a new time. Completed
// follow-ups cannot move.
func (db *DB) RescheduleFollowUp(ctx context.Context, id int64, scheduledAt time.Time) error {
	query := `UPDATE follow_ups SET scheduled_at = ?, updated_at = ? WHERE id = ? AND completed = 0`
	result, err := db.ExecContext(ctx, query, scheduledAt.UTC(), time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to reschedule follow-up: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, getErr := db.GetFollowUp(ctx, id); getErr != nil {
			return getErr
		}
		return ErrFollowUpCompleted
	}
	return nil
}

// CompleteFollowUp finishes a follow-up exactly once. The guarded UPDATE
// makes a second completion lose with ErrFollowUpCompleted.
func (db *DB) CompleteFollowUp(ctx context.Context, id int64, outcome, notes string) error {
	query := `
        UPDATE follow_ups SET completed = 1, outcome = ?, notes = ?, updated_at = ?
        WHERE id = ? AND completed = 0
    `
	result, err := db.ExecContext(ctx, query, outcome, notes, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to complete follow-up: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		if _, getErr := db.GetFollowUp(ctx, id); getErr != nil {
			return getErr
		}
		return ErrFollowUpCompleted
	}
	return nil
}

// GetPendingFollowUps lists incomplete follow-ups due at or before the given
// instant, oldest first.
func (db *DB) GetPendingFollowUps(ctx context.Context, due time.Time) ([]models.FollowUp, error) {
	query := `
        SELECT id, booking_id, family_group_id, scheduled_at, reason, notes, completed, outcome, created_at, updated_at
        FROM follow_ups
        WHERE completed = 0 AND scheduled_at <= ?
        ORDER BY scheduled_at
    `
	rows, err := db.QueryContext(ctx, query, due.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to get pending follow-ups: %w", err)
	}
	defer rows.Close()

	var followUps []models.FollowUp
	for rows.Next() {
		var fu models.FollowUp
		var family, notes, outcome sql.NullString
		if err := rows.Scan(&fu.ID, &fu.BookingID, &family, &fu.ScheduledAt, &fu.Reason,
			&notes, &fu.Completed, &outcome, &fu.CreatedAt, &fu.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan follow-up: %w", err)
		}
		fu.FamilyGroupID = family.String
		fu.Notes = notes.String
		fu.Outcome = outcome.String
		fu.ScheduledAt = fu.ScheduledAt.UTC()
		followUps = append(followUps, fu)
	}
	return followUps, rows.Err()
}
