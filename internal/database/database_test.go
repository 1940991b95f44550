package database

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"trialdesk/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	logger := zerolog.Nop()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDB(dbPath, time.UTC, &logger)
	require.NoError(t, err)
	return db
}

func seedTeacher(t *testing.T, db *DB, id int64, name, teacherType string) {
	t.Helper()
	err := db.UpsertTeacher(context.Background(), &models.Teacher{
		ID:       id,
		Name:     name,
		Type:     teacherType,
		IsActive: true,
	})
	require.NoError(t, err)
}

// openTestSlot opens a slot for tomorrow to stay clear of the same-day lock.
func openTestSlot(t *testing.T, db *DB, teacherID int64, utcStart time.Time) *models.AvailabilitySlot {
	t.Helper()
	slot := &models.AvailabilitySlot{
		TeacherID: teacherID,
		UTCStart:  utcStart,
		UTCEnd:    utcStart.Add(models.SlotLength),
	}
	require.NoError(t, db.OpenSlot(context.Background(), slot))
	return slot
}

func tomorrowAt(hour int) time.Time {
	return time.Now().UTC().AddDate(0, 0, 1).Truncate(24 * time.Hour).Add(time.Duration(hour) * time.Hour)
}

func TestNewDB_DirectoryCreation(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "db_test_dir")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "nested", "dir", "test.db")
	logger := zerolog.Nop()

	db, err := NewDB(dbPath, time.UTC, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.FileExists(t, dbPath)
}

func TestNewDB_NilZoneDefaultsToUTC(t *testing.T) {
	logger := zerolog.Nop()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDB(dbPath, nil, &logger)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, time.UTC, db.ReferenceZone())
}

func TestDB_Ping(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	err := db.PingContext(context.Background())
	assert.NoError(t, err)
}

func TestIsLocked(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	now := time.Date(2025, 6, 21, 10, 0, 0, 0, time.UTC)
	assert.True(t, db.IsLocked("2025-06-21", now))
	assert.False(t, db.IsLocked("2025-06-22", now))
	assert.False(t, db.IsLocked("2025-06-20", now))
}

func TestIsLocked_ReferenceZoneBoundary(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Dubai")
	require.NoError(t, err)

	logger := zerolog.Nop()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDB(dbPath, loc, &logger)
	require.NoError(t, err)
	defer db.Close()

	// 21:30 UTC on June 20 is already June 21 in Dubai.
	now := time.Date(2025, 6, 20, 21, 30, 0, 0, time.UTC)
	assert.True(t, db.IsLocked("2025-06-21", now))
	assert.False(t, db.IsLocked("2025-06-20", now))
}
