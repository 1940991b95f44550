package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"trialdesk/internal/models"
)

// SetTeachers fills the in-memory roster cache used for type filtering and
// name lookups. Usually called once at startup from the config catalog.
func (db *DB) SetTeachers(teachers []models.Teacher) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.teachersCache = make(map[int64]models.Teacher, len(teachers))
	for _, t := range teachers {
		db.teachersCache[t.ID] = t
	}
}

// UpsertTeacher writes a roster entry and refreshes the cache.
func (db *DB) UpsertTeacher(ctx context.Context, teacher *models.Teacher) error {
	if !models.ValidTeacherType(teacher.Type) {
		return fmt.Errorf("%w: %s", ErrInvalidTeacherType, teacher.Type)
	}

	query := `
        INSERT INTO teachers (id, name, type, is_active, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            name = excluded.name,
            type = excluded.type,
            is_active = excluded.is_active,
            updated_at = excluded.updated_at
    `
	now := time.Now()
	if _, err := db.ExecContext(ctx, query, teacher.ID, teacher.Name, teacher.Type, teacher.IsActive, now, now); err != nil {
		return fmt.Errorf("failed to upsert teacher: %w", err)
	}

	db.mu.Lock()
	db.teachersCache[teacher.ID] = *teacher
	db.mu.Unlock()
	return nil
}

// GetTeacher returns a roster entry by id, preferring the cache.
func (db *DB) GetTeacher(ctx context.Context, id int64) (*models.Teacher, error) {
	db.mu.RLock()
	cached, ok := db.teachersCache[id]
	db.mu.RUnlock()
	if ok {
		t := cached
		return &t, nil
	}

	query := `SELECT id, name, type, is_active, created_at, updated_at FROM teachers WHERE id = ?`
	var t models.Teacher
	err := db.QueryRowContext(ctx, query, id).Scan(&t.ID, &t.Name, &t.Type, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTeacherNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get teacher: %w", err)
	}
	return &t, nil
}

// GetActiveTeachers returns the active roster ordered by id.
func (db *DB) GetActiveTeachers(ctx context.Context) ([]models.Teacher, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	teachers := make([]models.Teacher, 0, len(db.teachersCache))
	for _, t := range db.teachersCache {
		if t.IsActive {
			teachers = append(teachers, t)
		}
	}
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].ID < teachers[j].ID })
	return teachers, nil
}

// teacherFromCache is a read-locked lookup helper.
func (db *DB) teacherFromCache(id int64) (models.Teacher, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	t, ok := db.teachersCache[id]
	return t, ok
}
