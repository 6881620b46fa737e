package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
)

// CurrentVersion is the only accepted configuration schema version.
const CurrentVersion = "1"

// Config is the daemon configuration file.
type Config struct {
	Version string        `yaml:"version"`
	Timing  TimingConfig  `yaml:"timing"`
	Storage StorageConfig `yaml:"storage"`
	NATS    NATSConfig    `yaml:"nats"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// TimingConfig holds the protocol waits and background intervals, in milliseconds.
type TimingConfig struct {
	CommandWaitMS         int64 `yaml:"command_wait_time_ms"`
	BotWaitMS             int64 `yaml:"bot_wait_time_ms"`
	BackupDataIntervalMS  int64 `yaml:"backup_data_interval_ms"`
	BackupStatsIntervalMS int64 `yaml:"backup_stats_interval_ms"`
	TickIntervalMS        int64 `yaml:"tick_interval_ms"`
	BotOfflineCheckMS     int64 `yaml:"bot_offline_check_ms"`
}

func ms(v int64) time.Duration { return time.Duration(v) * time.Millisecond }

// CommandWait is the delay before re-requesting after a soft rejection.
func (t TimingConfig) CommandWait() time.Duration { return ms(t.CommandWaitMS) }

// BotWait is the delay before retrying a bot that is busy or closing.
func (t TimingConfig) BotWait() time.Duration { return ms(t.BotWaitMS) }

func (t TimingConfig) BackupDataInterval() time.Duration  { return ms(t.BackupDataIntervalMS) }
func (t TimingConfig) BackupStatsInterval() time.Duration { return ms(t.BackupStatsIntervalMS) }
func (t TimingConfig) TickInterval() time.Duration        { return ms(t.TickIntervalMS) }
func (t TimingConfig) BotOfflineCheck() time.Duration     { return ms(t.BotOfflineCheckMS) }

// StorageConfig locates persisted aggregates and partial downloads.
type StorageConfig struct {
	DataDir string `yaml:"data_dir"`
	TempDir string `yaml:"temp_dir"`
}

// NATSConfig configures the message bus bridge. An empty URL selects the logging transport.
type NATSConfig struct {
	URL           string      `yaml:"url"`
	SubjectPrefix string      `yaml:"subject_prefix"`
	Retry         RetryConfig `yaml:"retry"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads, expands, defaults and validates the configuration file at path.
func Load(path string) (*Config, error) {
	loadEnvFile()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ConfigError(fmt.Sprintf("configuration file not found: %s", path)).
				WithCause(err).WithContext("path", path).Build()
		}
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to read config file").
			WithContext("path", path).Fatal().Build()
	}
	return Parse(data)
}

// Parse decodes configuration from raw YAML. Environment references are expanded first.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, errors.WrapError(err, errors.CategoryConfig, "failed to unmarshal config").Fatal().Build()
	}
	if cfg.Version != CurrentVersion {
		return nil, errors.ConfigError(fmt.Sprintf("unsupported configuration version: %q (expected %s)", cfg.Version, CurrentVersion)).Build()
	}

	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	cfg.NATS.Retry.MaxRetries = DefaultRetryMaxRetries
	applyDefaults(cfg)
	return cfg
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return errors.ValidationError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", path)).Build()
	}

	example := Default()
	example.NATS.URL = "${XGRAB_NATS_URL}"

	data, err := yaml.Marshal(example)
	if err != nil {
		return errors.WrapError(err, errors.CategoryInternal, "failed to marshal example config").Build()
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.WrapError(err, errors.CategoryConfig, "failed to write config file").
			WithContext("path", path).Fatal().Build()
	}
	return nil
}
