package config

import (
	"path/filepath"
	"slices"

	"git.home.luguber.info/inful/xgrab/internal/foundation"
)

// Validate checks ranges and enumerations after defaults have been applied.
func Validate(cfg *Config) error {
	chain := foundation.NewValidatorChain[*Config](
		validateTiming,
		validateStorage,
		validateRetry,
		validateLogging,
	)
	return chain.Validate(cfg).ToError()
}

func validateTiming(cfg *Config) foundation.ValidationResult {
	fields := []struct {
		name  string
		value int64
	}{
		{"timing.command_wait_time_ms", cfg.Timing.CommandWaitMS},
		{"timing.bot_wait_time_ms", cfg.Timing.BotWaitMS},
		{"timing.backup_data_interval_ms", cfg.Timing.BackupDataIntervalMS},
		{"timing.backup_stats_interval_ms", cfg.Timing.BackupStatsIntervalMS},
		{"timing.tick_interval_ms", cfg.Timing.TickIntervalMS},
		{"timing.bot_offline_check_ms", cfg.Timing.BotOfflineCheckMS},
	}
	res := foundation.Valid()
	for _, f := range fields {
		res = res.Combine(foundation.NonNegative[int64](f.name)(f.value))
	}
	return res
}

func validateStorage(cfg *Config) foundation.ValidationResult {
	if filepath.Clean(cfg.Storage.DataDir) == filepath.Clean(cfg.Storage.TempDir) {
		return foundation.Invalid(foundation.NewValidationError(
			"storage.temp_dir", "conflict", "temp_dir must differ from data_dir"))
	}
	return foundation.Valid()
}

func validateRetry(cfg *Config) foundation.ValidationResult {
	r := cfg.NATS.Retry
	return foundation.OneOf("nats.retry.backoff", []RetryBackoffMode{RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential})(r.Backoff).
		Combine(foundation.NonNegative[int]("nats.retry.max_retries")(r.MaxRetries)).
		Combine(foundation.NonNegative[int64]("nats.retry.initial_ms")(r.InitialMS)).
		Combine(foundation.NonNegative[int64]("nats.retry.max_ms")(r.MaxMS))
}

func validateLogging(cfg *Config) foundation.ValidationResult {
	return foundation.OneOf("logging.level", []LogLevel{LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError})(cfg.Logging.Level).
		Combine(foundation.OneOf("logging.format", []LogFormat{LogFormatJSON, LogFormatText})(cfg.Logging.Format))
}

// Equal reports whether two timing blocks are identical; the config watcher
// uses it to skip no-op reloads.
func (t TimingConfig) Equal(o TimingConfig) bool {
	return slices.Equal(t.values(), o.values())
}

func (t TimingConfig) values() []int64 {
	return []int64{t.CommandWaitMS, t.BotWaitMS, t.BackupDataIntervalMS, t.BackupStatsIntervalMS, t.TickIntervalMS, t.BotOfflineCheckMS}
}
