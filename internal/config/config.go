package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port    int      `yaml:"port"`
		APIKeys []string `yaml:"api_keys"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address             string `yaml:"address"`
		Password            string `yaml:"password"`
		DB                  int    `yaml:"db"`
		RuleCacheTTLSeconds int    `yaml:"rule_cache_ttl_seconds"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		ReservationTTLSeconds int `yaml:"reservation_ttl_seconds"`
		ReaperIntervalSeconds int `yaml:"reaper_interval_seconds"`
		SlotStepMinutes       int `yaml:"slot_step_minutes"`
		MaxDurationMinutes    int `yaml:"max_duration_minutes"`
		MinAdvanceMinutes     int `yaml:"min_advance_minutes"`
		MaxAdvanceDays        int `yaml:"max_advance_days"`
		HoldBurst             int `yaml:"hold_burst"`
		HoldPerMinute         int `yaml:"hold_per_minute"`
	} `yaml:"booking"`

	Audit struct {
		Enabled       bool   `yaml:"enabled"`
		ExportPath    string `yaml:"export_path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"audit"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/vetbook.db"
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ReservationTTL is how long a hold survives without renewal.
func (c *Config) ReservationTTL() time.Duration {
	if c.Booking.ReservationTTLSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.Booking.ReservationTTLSeconds) * time.Second
}

// ReaperInterval is how often expired holds are swept.
func (c *Config) ReaperInterval() time.Duration {
	if c.Booking.ReaperIntervalSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.Booking.ReaperIntervalSeconds) * time.Second
}

// SlotStep is the slot granularity; zero means "use the visit duration".
func (c *Config) SlotStep() int {
	if c.Booking.SlotStepMinutes < 0 {
		return 0
	}
	return c.Booking.SlotStepMinutes
}

// MaxDuration caps a single visit length.
func (c *Config) MaxDuration() int {
	if c.Booking.MaxDurationMinutes <= 0 {
		return 240
	}
	return c.Booking.MaxDurationMinutes
}

func (c *Config) BookingMinAdvance() time.Duration {
	if c.Booking.MinAdvanceMinutes <= 0 {
		return 0
	}
	return time.Duration(c.Booking.MinAdvanceMinutes) * time.Minute
}

func (c *Config) BookingMaxAdvance() time.Duration {
	if c.Booking.MaxAdvanceDays <= 0 {
		return 90 * 24 * time.Hour
	}
	return time.Duration(c.Booking.MaxAdvanceDays) * 24 * time.Hour
}

func (c *Config) RuleCacheTTL() time.Duration {
	if c.Redis.RuleCacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.Redis.RuleCacheTTLSeconds) * time.Second
}
