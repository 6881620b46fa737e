package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "xgrab.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "version: \"1\"\n"))
	require.NoError(t, err)

	assert.Equal(t, 15*time.Second, cfg.Timing.CommandWait())
	assert.Equal(t, 240*time.Second, cfg.Timing.BotWait())
	assert.Equal(t, 900*time.Second, cfg.Timing.BackupDataInterval())
	assert.Equal(t, 60*time.Second, cfg.Timing.BackupStatsInterval())
	assert.Equal(t, time.Second, cfg.Timing.TickInterval())
	assert.Equal(t, 1200*time.Second, cfg.Timing.BotOfflineCheck())
	assert.Equal(t, DefaultDataDir, cfg.Storage.DataDir)
	assert.Equal(t, DefaultSubjectPrefix, cfg.NATS.SubjectPrefix)
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, LogLevelInfo, cfg.Logging.Level)
	assert.Equal(t, LogFormatText, cfg.Logging.Format)
	assert.Equal(t, RetryConfig{Backoff: RetryBackoffLinear, InitialMS: DefaultRetryInitialMS, MaxMS: DefaultRetryMaxMS}, cfg.NATS.Retry)
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("XGRAB_TEST_NATS", "nats://bus:4222")
	cfg, err := Load(writeConfig(t, `version: "1"
timing:
  command_wait_time_ms: 500
nats:
  url: ${XGRAB_TEST_NATS}
  subject_prefix: grab
logging:
  level: WARNING
  format: JSON
`))
	require.NoError(t, err)
	assert.Equal(t, "nats://bus:4222", cfg.NATS.URL)
	assert.Equal(t, "grab", cfg.NATS.SubjectPrefix)
	assert.Equal(t, 500*time.Millisecond, cfg.Timing.CommandWait())
	assert.Equal(t, 240*time.Second, cfg.Timing.BotWait())
	assert.Equal(t, LogLevelWarn, cfg.Logging.Level)
	assert.Equal(t, LogFormatJSON, cfg.Logging.Format)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		category errors.ErrorCategory
	}{
		{"wrong version", "version: \"2.0\"\n", errors.CategoryConfig},
		{"bad yaml", "version: [\n", errors.CategoryConfig},
		{"negative timing", "version: \"1\"\ntiming:\n  bot_wait_time_ms: -1\n", errors.CategoryValidation},
		{"unknown level", "version: \"1\"\nlogging:\n  level: verbose\n", errors.CategoryValidation},
		{"unknown backoff", "version: \"1\"\nnats:\n  retry:\n    backoff: random\n", errors.CategoryValidation},
		{"negative retries", "version: \"1\"\nnats:\n  retry:\n    max_retries: -2\n", errors.CategoryValidation},
		{"same dirs", "version: \"1\"\nstorage:\n  data_dir: ./d\n  temp_dir: d/\n", errors.CategoryValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.True(t, errors.HasCategory(err, tt.category), "got %v", err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryConfig))
}

func TestInitWritesLoadableConfig(t *testing.T) {
	t.Setenv("XGRAB_NATS_URL", "")
	path := filepath.Join(t.TempDir(), "xgrab.yaml")
	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Timing.Equal(Default().Timing))
	assert.Equal(t, DefaultRetryMaxRetries, cfg.NATS.Retry.MaxRetries)

	err = Init(path, false)
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
	require.NoError(t, Init(path, true))
}

func TestTimingEqual(t *testing.T) {
	a := Default().Timing
	b := a
	assert.True(t, a.Equal(b))
	b.BotWaitMS++
	assert.False(t, a.Equal(b))
}

func TestNormalizeLogging(t *testing.T) {
	assert.Equal(t, LogLevelDebug, NormalizeLogLevel(" Debug "))
	assert.Equal(t, LogLevelInfo, NormalizeLogLevel("nonsense"))
	assert.Equal(t, LogFormatJSON, NormalizeLogFormat("JSON"))
	assert.Equal(t, LogFormatText, NormalizeLogFormat(""))
}

func TestNormalizeRetryBackoff(t *testing.T) {
	assert.Equal(t, RetryBackoffExponential, NormalizeRetryBackoff("Exponential"))
	assert.Equal(t, RetryBackoffLinear, NormalizeRetryBackoff("?"))
}
