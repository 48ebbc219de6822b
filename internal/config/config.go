package config

import (
	"time"

	"github.com/raoulx24/save-archiver/internal/fs"
)

type Config struct {
	Source      SourceConfig      `yaml:"source"`
	Destination DestinationConfig `yaml:"destination"`
	Retry       RetryConfig       `yaml:"retry"`
	Workers     int               `yaml:"workers" validate:"gte=1,lte=32"`
	Restore     RestoreConfig     `yaml:"restore"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type SourceConfig struct {
	Path     string      `yaml:"path" validate:"required"`
	Patterns []string    `yaml:"patterns" validate:"min=1,dive,required,glob"`
	Watch    WatchConfig `yaml:"watch"`
}

type WatchConfig struct {
	Mode           string        `yaml:"mode" validate:"oneof=auto poll fsnotify"`
	PollInterval   time.Duration `yaml:"pollInterval" validate:"gt=0"`
	SettleDelay    time.Duration `yaml:"settleDelay" validate:"gte=0"`
	RescanSchedule string        `yaml:"rescanSchedule"` // cron spec, empty disables
}

type DestinationConfig struct {
	Path      string          `yaml:"path" validate:"required"`
	Compress  bool            `yaml:"compress"`
	Retention RetentionConfig `yaml:"retention"`
}

type RetentionConfig struct {
	MaxKeep int `yaml:"maxKeep"` // <= 0 keeps everything
}

type RetryConfig struct {
	Attempts  int           `yaml:"attempts" validate:"gte=1"`
	BaseDelay time.Duration `yaml:"baseDelay" validate:"gt=0"`
	MaxDelay  time.Duration `yaml:"maxDelay" validate:"gtefield=BaseDelay"`
}

// Policy converts the retry settings for the fs layer.
func (r RetryConfig) Policy() fs.Policy {
	return fs.Policy{Attempts: r.Attempts, BaseDelay: r.BaseDelay, MaxDelay: r.MaxDelay}
}

type RestoreConfig struct {
	// SafetyCopy renames an existing save aside before it is overwritten.
	SafetyCopy bool `yaml:"safetyCopy"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" validate:"omitempty,oneof=trace debug info warn warning error"`
	Format     string `yaml:"format" validate:"omitempty,oneof=text json"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMB" validate:"gte=0"`
	MaxBackups int    `yaml:"maxBackups" validate:"gte=0"`
}

type MetricsConfig struct {
	Listen string `yaml:"listen" validate:"omitempty,hostname_port"`
}
