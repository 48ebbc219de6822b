package config

import "time"

const (
	DefaultPattern      = "*.save"
	DefaultMode         = "auto"
	DefaultPollInterval = 2 * time.Second
	DefaultSettleDelay  = 3 * time.Second
	DefaultMaxKeep      = 10
	DefaultWorkers      = 2
)

// Default returns a config with every optional field set. Load unmarshals the
// file on top of it, so a key present in the file (even maxKeep: 0) wins.
func Default() *Config {
	return &Config{
		Source: SourceConfig{
			Patterns: []string{DefaultPattern},
			Watch: WatchConfig{
				Mode:         DefaultMode,
				PollInterval: DefaultPollInterval,
				SettleDelay:  DefaultSettleDelay,
			},
		},
		Destination: DestinationConfig{
			Retention: RetentionConfig{MaxKeep: DefaultMaxKeep},
		},
		Retry: RetryConfig{
			Attempts:  5,
			BaseDelay: 100 * time.Millisecond,
			MaxDelay:  2 * time.Second,
		},
		Workers: DefaultWorkers,
		Restore: RestoreConfig{SafetyCopy: true},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}
