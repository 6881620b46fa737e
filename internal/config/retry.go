package config

import (
	"time"

	"git.home.luguber.info/inful/xgrab/internal/foundation"
)

// RetryBackoffMode enumerates supported backoff strategies for command retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

var retryBackoffNormalizer = foundation.NewNormalizer(map[string]RetryBackoffMode{
	"fixed":       RetryBackoffFixed,
	"linear":      RetryBackoffLinear,
	"exponential": RetryBackoffExponential,
}, RetryBackoffLinear)

// NormalizeRetryBackoff maps user input onto a mode, falling back to linear.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	return retryBackoffNormalizer.Normalize(raw)
}

// RetryConfig controls how often a failed transport command is resent.
// MaxRetries of zero disables retries.
type RetryConfig struct {
	Backoff    RetryBackoffMode `yaml:"backoff"`
	InitialMS  int64            `yaml:"initial_ms"`
	MaxMS      int64            `yaml:"max_ms"`
	MaxRetries int              `yaml:"max_retries"`
}

func (r RetryConfig) Initial() time.Duration { return ms(r.InitialMS) }
func (r RetryConfig) Max() time.Duration     { return ms(r.MaxMS) }
