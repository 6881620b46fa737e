package errors

import "maps"

// ErrorCategory groups failures by the subsystem that reports them. The CLI
// maps categories to exit codes.
type ErrorCategory string

const (
	CategoryConfig     ErrorCategory = "config"
	CategoryValidation ErrorCategory = "validation"
	CategoryNotFound   ErrorCategory = "not_found"

	// CategoryPersistence covers aggregate snapshot reads and writes.
	CategoryPersistence ErrorCategory = "persistence"
	// CategoryStatistics covers the sqlite stats history.
	CategoryStatistics ErrorCategory = "statistics"

	// CategoryProtocol marks a bot notice that rejected a request for a substantive reason.
	CategoryProtocol    ErrorCategory = "protocol"
	CategoryConsistency ErrorCategory = "consistency"
	CategoryTransport   ErrorCategory = "transport"

	CategoryRuntime  ErrorCategory = "runtime"
	CategoryDaemon   ErrorCategory = "daemon"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity picks the log level an error is reported at.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"
	SeverityError   ErrorSeverity = "error"
	SeverityWarning ErrorSeverity = "warning"
	SeverityInfo    ErrorSeverity = "info"
)

// RetryStrategy tells the caller whether repeating the operation can help.
type RetryStrategy string

const (
	RetryNever    RetryStrategy = "never"
	RetryBackoff  RetryStrategy = "backoff"
	RetryNextTick RetryStrategy = "next_tick" // picked up again by the periodic save job
)

// ErrorContext carries structured key/value details. Values end up as slog
// attributes when the error is logged.
type ErrorContext map[string]any

// Set adds or updates a value, allocating the map on first use.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Get looks up a value.
func (c ErrorContext) Get(key string) (any, bool) {
	value, ok := c[key]
	return value, ok
}

func (c ErrorContext) clone() ErrorContext {
	out := make(ErrorContext, len(c)+1)
	maps.Copy(out, c)
	return out
}
