package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

var exitCodes = map[ErrorCategory]int{
	CategoryValidation:  2,
	CategoryNotFound:    3,
	CategoryConfig:      7,
	CategoryTransport:   8,
	CategoryInternal:    10,
	CategoryPersistence: 11,
	CategoryStatistics:  11,
	CategoryDaemon:      12,
	CategoryRuntime:     12,
}

// CLIErrorAdapter turns a command error into a stderr message, a log
// record and a process exit code.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger

	// Out and Exit default to os.Stderr and os.Exit.
	Out  io.Writer
	Exit func(code int)
}

func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{verbose: verbose, logger: logger, Out: os.Stderr, Exit: os.Exit}
}

// ExitCodeFor returns 0 for nil, 1 for unclassified errors and a
// per-category code otherwise.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	classified, ok := AsClassified(err)
	if !ok {
		return 1
	}
	if code, ok := exitCodes[classified.Category()]; ok {
		return code
	}
	return 1
}

// FormatError renders the one-line message shown to the user.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}
	classified, ok := AsClassified(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if a.verbose {
		return classified.Error()
	}
	switch classified.Category() {
	case CategoryConfig, CategoryValidation, CategoryNotFound:
		return "Error: " + classified.Message()
	case CategoryInternal:
		return "Internal error occurred (use -v for details)"
	}
	if classified.Cause() != nil {
		return fmt.Sprintf("Error: %s: %v", classified.Message(), classified.Cause())
	}
	return "Error: " + classified.Message()
}

// HandleError reports err and exits. It does nothing for nil.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}
	a.log(err)
	fmt.Fprintln(a.Out, a.FormatError(err))
	a.Exit(a.ExitCodeFor(err))
}

// log records fatal errors always and everything else only in verbose mode.
func (a *CLIErrorAdapter) log(err error) {
	classified, ok := AsClassified(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}
	if !a.verbose && classified.Severity() != SeverityFatal {
		return
	}
	level := slog.LevelError
	switch classified.Severity() {
	case SeverityInfo:
		level = slog.LevelInfo
	case SeverityWarning:
		level = slog.LevelWarn
	}
	a.logger.LogAttrs(context.Background(), level, "command failed",
		slog.Any("error", classified),
		slog.Bool("retryable", classified.CanRetry()))
}
