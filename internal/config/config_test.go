package config

import (
	"os"
	"path/filepath"
	"testing"

	"trialdesk/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const minimalConfig = `
app:
  name: trialdesk
  environment: test
database:
  path: /tmp/trialdesk-test.db
booking:
  reference_zone: Europe/Moscow
`

func TestLoad_Minimal(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, "trialdesk", cfg.App.Name)
	assert.Equal(t, "/tmp/trialdesk-test.db", cfg.Database.Path)
	assert.Equal(t, "Europe/Moscow", cfg.Booking.ReferenceZone)
}

func TestLoad_AppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.API.HTTP.Port)
	assert.True(t, cfg.API.Auth.Enabled)
	assert.Equal(t, "x-api-key", cfg.API.Auth.HeaderAPIKey)
	assert.Equal(t, "x-api-extra", cfg.API.Auth.HeaderExtra)
	assert.Equal(t, 60, cfg.Booking.MaxBookingDays)
	assert.Equal(t, 2, cfg.Booking.FollowUpDays)
	assert.Equal(t, 5, cfg.Worker.MaxRetries)
	assert.Equal(t, 2, cfg.Worker.InitialDelaySec)
	assert.Equal(t, 10, cfg.Payments.TimeoutSec)
	assert.Equal(t, 10, cfg.Messaging.TimeoutSec)
}

func TestLoad_ExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("TEST_DB_PATH", "/data/expanded.db")
	t.Setenv("TEST_REDIS_PASSWORD", "s3cret")

	cfg, err := Load(writeConfig(t, `
database:
  path: ${TEST_DB_PATH}
redis:
  address: localhost:6379
  password: ${TEST_REDIS_PASSWORD}
booking:
  reference_zone: Europe/Moscow
`))
	require.NoError(t, err)

	assert.Equal(t, "/data/expanded.db", cfg.Database.Path)
	assert.Equal(t, "s3cret", cfg.Redis.Password)
}

func TestLoad_FullConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
database:
  path: /tmp/trialdesk.db
booking:
  reference_zone: Europe/Moscow
  max_booking_days: 30
api:
  enabled: true
  auth:
    api_keys:
      - key: ops-key
        extra: ops-extra
        name: ops-console
        permissions: ["read:availability", "write:bookings"]
  rate_limit:
    rps: 10
    burst: 20
zone_aliases:
  uae: Asia/Dubai
  egypt: Africa/Cairo
teachers:
  - id: 1
    name: Anna
    type: kids
    is_active: true
packages:
  - id: 1
    name: Starter 8
    lessons: 8
    price: 120000
    is_active: true
exports:
  path: /tmp/exports
`))
	require.NoError(t, err)

	assert.True(t, cfg.API.HTTP.Enabled, "http implied by api.enabled")
	require.Len(t, cfg.API.Auth.APIKeys, 1)
	assert.Equal(t, "ops-console", cfg.API.Auth.APIKeys[0].Name)
	assert.Equal(t, float64(10), cfg.API.RateLimit.RPS)
	assert.Equal(t, 30, cfg.Booking.MaxBookingDays)
	assert.Equal(t, "Asia/Dubai", cfg.ZoneAliases["uae"])
	require.Len(t, cfg.Teachers, 1)
	require.Len(t, cfg.Packages, 1)
	assert.Equal(t, int64(120000), cfg.Packages[0].Price)
	assert.Equal(t, "/tmp/exports", cfg.Exports.Path)
}

func TestLoad_Failures(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "database: [not a mapping"))
	assert.Error(t, err)

	_, err = Load(writeConfig(t, "booking:\n  reference_zone: Europe/Moscow\n"))
	assert.ErrorContains(t, err, "database path")

	_, err = Load(writeConfig(t, "database:\n  path: /tmp/x.db\n"))
	assert.ErrorContains(t, err, "reference zone")
}

func TestValidateTeachers(t *testing.T) {
	valid := []models.Teacher{
		{ID: 1, Name: "Anna", Type: models.TeacherTypeKids},
		{ID: 2, Name: "Boris", Type: models.TeacherTypeMixed},
	}
	assert.NoError(t, ValidateTeachers(valid))

	assert.Error(t, ValidateTeachers([]models.Teacher{{ID: 0, Name: "Zero", Type: "kids"}}))
	assert.Error(t, ValidateTeachers([]models.Teacher{
		{ID: 1, Name: "Anna", Type: "kids"},
		{ID: 1, Name: "Copy", Type: "adult"},
	}))
	assert.Error(t, ValidateTeachers([]models.Teacher{{ID: 1, Name: "Anna", Type: "senior"}}))
}

func TestValidatePackages(t *testing.T) {
	valid := []models.Package{
		{ID: 1, Name: "Starter 8", Price: 120000},
		{ID: 2, Name: "Standard 16", Price: 220000},
	}
	assert.NoError(t, ValidatePackages(valid))

	assert.Error(t, ValidatePackages([]models.Package{{ID: 0, Name: "Zero"}}))
	assert.Error(t, ValidatePackages([]models.Package{
		{ID: 1, Name: "A"},
		{ID: 1, Name: "B"},
	}))
	assert.Error(t, ValidatePackages([]models.Package{{ID: 1, Name: "Neg", Price: -1}}))
}
