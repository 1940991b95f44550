package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"trialdesk/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

var (
	ErrAlreadyBooked      = errors.New("slot already booked")
	ErrSlotLocked         = errors.New("slot locked for same-day changes")
	ErrSlotNotFound       = errors.New("slot not found")
	ErrTeacherNotFound    = errors.New("teacher not found")
	ErrBookingNotFound    = errors.New("booking not found")
	ErrFollowUpNotFound   = errors.New("follow-up not found")
	ErrFollowUpCompleted  = errors.New("follow-up already completed")
	ErrVersionConflict    = errors.New("version conflict")
	ErrDuplicateSlot      = errors.New("slot already open for this teacher and time")
	ErrInvalidTeacherType = errors.New("invalid teacher type")
)

// DB is the sqlite-backed store for teachers, availability slots, trial
// bookings, follow-ups and round-robin assignment history.
type DB struct {
	*sql.DB
	mu            sync.RWMutex
	teachersCache map[int64]models.Teacher
	refZone       *time.Location
	log           *zerolog.Logger
}

// NewDB opens (creating if needed) the sqlite database at path. referenceZone
// is the operational timezone used for the same-day slot lock.
func NewDB(path string, referenceZone *time.Location, logger *zerolog.Logger) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite3", path+"?_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(sqlDB); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if referenceZone == nil {
		referenceZone = time.UTC
	}

	if logger != nil {
		logger.Info().Str("path", path).Str("reference_zone", referenceZone.String()).Msg("database initialized")
	}

	return &DB{
		DB:            sqlDB,
		teachersCache: make(map[int64]models.Teacher),
		refZone:       referenceZone,
		log:           logger,
	}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS teachers (
            id INTEGER PRIMARY KEY,
            name TEXT NOT NULL,
            type TEXT NOT NULL,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS availability_slots (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            teacher_id INTEGER NOT NULL,
            date TEXT NOT NULL,
            utc_start DATETIME NOT NULL,
            utc_end DATETIME NOT NULL,
            is_booked BOOLEAN NOT NULL DEFAULT 0,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            UNIQUE(teacher_id, utc_start)
        )`,
		`CREATE TABLE IF NOT EXISTS trial_bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            student_id INTEGER NOT NULL,
            student_name TEXT NOT NULL,
            phone TEXT,
            family_group_id TEXT,
            teacher_id INTEGER NOT NULL,
            teacher_name TEXT NOT NULL,
            teacher_type TEXT NOT NULL,
            trial_date TEXT NOT NULL,
            trial_time TEXT NOT NULL,
            utc_start DATETIME NOT NULL,
            utc_end DATETIME NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS teacher_assignments (
            teacher_id INTEGER PRIMARY KEY,
            teacher_type TEXT NOT NULL,
            last_assigned_at DATETIME NOT NULL,
            total_assigned INTEGER NOT NULL DEFAULT 0
        )`,
		`CREATE TABLE IF NOT EXISTS follow_ups (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            booking_id INTEGER NOT NULL,
            family_group_id TEXT,
            scheduled_at DATETIME NOT NULL,
            reason TEXT NOT NULL,
            notes TEXT,
            completed BOOLEAN NOT NULL DEFAULT 0,
            outcome TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,

		`CREATE INDEX IF NOT EXISTS idx_slots_utc_start ON availability_slots(utc_start)`,
		`CREATE INDEX IF NOT EXISTS idx_slots_teacher_id ON availability_slots(teacher_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_family ON trial_bookings(family_group_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON trial_bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_utc_start ON trial_bookings(utc_start)`,
		`CREATE INDEX IF NOT EXISTS idx_followups_booking ON follow_ups(booking_id)`,
		`CREATE INDEX IF NOT EXISTS idx_followups_due ON follow_ups(completed, scheduled_at)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// ReferenceZone returns the operational timezone used for same-day locking.
func (db *DB) ReferenceZone() *time.Location {
	return db.refZone
}
