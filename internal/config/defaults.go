package config

const (
	DefaultCommandWaitMS         = 15_000
	DefaultBotWaitMS             = 240_000
	DefaultBackupDataIntervalMS  = 900_000
	DefaultBackupStatsIntervalMS = 60_000
	DefaultTickIntervalMS        = 1_000
	DefaultBotOfflineCheckMS     = 1_200_000

	DefaultDataDir       = "./data"
	DefaultTempDir       = "./data/tmp"
	DefaultSubjectPrefix = "xgrab"
	DefaultMetricsListen = ":9109"

	DefaultRetryInitialMS  = 1_000
	DefaultRetryMaxMS      = 30_000
	DefaultRetryMaxRetries = 2
)

// applyDefaults fills zero values. Log level and format are normalized here
// so that validation sees canonical spellings.
func applyDefaults(cfg *Config) {
	t := &cfg.Timing
	setDefault(&t.CommandWaitMS, DefaultCommandWaitMS)
	setDefault(&t.BotWaitMS, DefaultBotWaitMS)
	setDefault(&t.BackupDataIntervalMS, DefaultBackupDataIntervalMS)
	setDefault(&t.BackupStatsIntervalMS, DefaultBackupStatsIntervalMS)
	setDefault(&t.TickIntervalMS, DefaultTickIntervalMS)
	setDefault(&t.BotOfflineCheckMS, DefaultBotOfflineCheckMS)

	setDefault(&cfg.Storage.DataDir, DefaultDataDir)
	setDefault(&cfg.Storage.TempDir, DefaultTempDir)
	setDefault(&cfg.NATS.SubjectPrefix, DefaultSubjectPrefix)
	setDefault(&cfg.Metrics.Listen, DefaultMetricsListen)

	r := &cfg.NATS.Retry
	setDefault(&r.InitialMS, DefaultRetryInitialMS)
	setDefault(&r.MaxMS, DefaultRetryMaxMS)
	if r.Backoff == "" {
		r.Backoff = RetryBackoffLinear
	} else if mode, err := retryBackoffNormalizer.NormalizeWithError(string(r.Backoff)); err == nil {
		r.Backoff = mode
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	} else if lvl, err := logLevelNormalizer.NormalizeWithError(string(cfg.Logging.Level)); err == nil {
		cfg.Logging.Level = lvl
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	} else if f, err := logFormatNormalizer.NormalizeWithError(string(cfg.Logging.Format)); err == nil {
		cfg.Logging.Format = f
	}
}

func setDefault[T comparable](field *T, value T) {
	var zero T
	if *field == zero {
		*field = value
	}
}
