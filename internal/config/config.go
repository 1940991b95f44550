package config

import (
	"errors"
	"fmt"
	"os"

	"trialdesk/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App         AppConfig         `yaml:"app"`
	Database    DatabaseConfig    `yaml:"database"`
	Redis       RedisConfig       `yaml:"redis"`
	Monitoring  MonitoringConfig  `yaml:"monitoring"`
	Logging     LoggingConfig     `yaml:"logging"`
	API         APIConfig         `yaml:"api"`
	Booking     BookingConfig     `yaml:"booking"`
	Worker      WorkerConfig      `yaml:"worker"`
	Payments    PaymentsConfig    `yaml:"payments"`
	Messaging   MessagingConfig   `yaml:"messaging"`
	ZoneAliases map[string]string `yaml:"zone_aliases"`
	Teachers    []models.Teacher  `yaml:"teachers"`
	Packages    []models.Package  `yaml:"packages"`
	Exports     ExportConfig      `yaml:"exports"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type APIConfig struct {
	Enabled   bool               `yaml:"enabled"`
	HTTP      APIHTTPConfig      `yaml:"http"`
	Auth      APIAuthConfig      `yaml:"auth"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

type APIAuthConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type APIRateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type BookingConfig struct {
	ReferenceZone  string `yaml:"reference_zone"`
	MaxBookingDays int    `yaml:"max_booking_days"`
	FollowUpDays   int    `yaml:"follow_up_days"`
}

type WorkerConfig struct {
	MaxRetries      int `yaml:"max_retries"`
	InitialDelaySec int `yaml:"initial_delay_sec"`
}

type PaymentsConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

type MessagingConfig struct {
	WebhookURL string `yaml:"webhook_url"`
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional, ignore a missing file
	if err := godotenv.Load(".env"); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Substitute environment variables before parsing
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Booking.ReferenceZone == "" {
		return errors.New("booking reference zone is required")
	}

	if err := ValidateTeachers(c.Teachers); err != nil {
		return err
	}

	return ValidatePackages(c.Packages)
}

func ValidateTeachers(teachers []models.Teacher) error {
	ids := make(map[int64]bool)
	for _, t := range teachers {
		if t.ID == 0 {
			return fmt.Errorf("teacher '%s' has invalid ID 0", t.Name)
		}
		if ids[t.ID] {
			return fmt.Errorf("duplicate teacher ID found: %d", t.ID)
		}
		ids[t.ID] = true
		if !models.ValidTeacherType(t.Type) {
			return fmt.Errorf("teacher '%s' has unknown type '%s'", t.Name, t.Type)
		}
	}
	return nil
}

func ValidatePackages(packages []models.Package) error {
	ids := make(map[int64]bool)
	for _, p := range packages {
		if p.ID == 0 {
			return fmt.Errorf("package '%s' has invalid ID 0", p.Name)
		}
		if ids[p.ID] {
			return fmt.Errorf("duplicate package ID found: %d", p.ID)
		}
		ids[p.ID] = true
		if p.Price < 0 {
			return fmt.Errorf("package '%s' has negative price", p.Name)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 8080
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	// auth enabled by default when API is enabled
	if !c.API.Auth.Enabled {
		c.API.Auth.Enabled = true
	}
	if !c.API.HTTP.Enabled && c.API.Enabled {
		c.API.HTTP.Enabled = true
	}
	if c.API.Auth.HeaderAPIKey == "" {
		c.API.Auth.HeaderAPIKey = "x-api-key"
	}
	if c.API.Auth.HeaderExtra == "" {
		c.API.Auth.HeaderExtra = "x-api-extra"
	}

	if c.Booking.MaxBookingDays == 0 {
		c.Booking.MaxBookingDays = 60
	}
	if c.Booking.FollowUpDays == 0 {
		c.Booking.FollowUpDays = 2
	}
	if c.Worker.MaxRetries == 0 {
		c.Worker.MaxRetries = 5
	}
	if c.Worker.InitialDelaySec == 0 {
		c.Worker.InitialDelaySec = 2
	}
	if c.Payments.TimeoutSec == 0 {
		c.Payments.TimeoutSec = 10
	}
	if c.Messaging.TimeoutSec == 0 {
		c.Messaging.TimeoutSec = 10
	}
}
