package errors

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"slices"
)

// ClassifiedError is the error value returned across package boundaries.
// Build one with NewError or WrapError.
type ClassifiedError struct {
	category ErrorCategory
	severity ErrorSeverity
	retry    RetryStrategy
	message  string
	cause    error
	context  ErrorContext
}

func (e *ClassifiedError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.category, e.severity, e.message, e.cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.category, e.severity, e.message)
}

func (e *ClassifiedError) Unwrap() error { return e.cause }

func (e *ClassifiedError) Category() ErrorCategory      { return e.category }
func (e *ClassifiedError) Severity() ErrorSeverity      { return e.severity }
func (e *ClassifiedError) RetryStrategy() RetryStrategy { return e.retry }
func (e *ClassifiedError) Message() string              { return e.message }
func (e *ClassifiedError) Cause() error                 { return e.cause }
func (e *ClassifiedError) Context() ErrorContext        { return e.context }

// WithContext returns a copy carrying one more context value. The receiver
// is left untouched so shared sentinel errors stay immutable.
func (e *ClassifiedError) WithContext(key string, value any) *ClassifiedError {
	cp := *e
	cp.context = e.context.clone().Set(key, value)
	return &cp
}

// Is matches another ClassifiedError with the same category and message,
// ignoring context and cause.
func (e *ClassifiedError) Is(target error) bool {
	other, ok := target.(*ClassifiedError)
	return ok && e.category == other.category && e.message == other.message
}

// CanRetry reports whether repeating the failed operation may succeed.
func (e *ClassifiedError) CanRetry() bool {
	return e.retry != RetryNever
}

// LogValue renders the error as a slog group: message, category, cause and
// every context key in sorted order.
func (e *ClassifiedError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("msg", e.message),
		slog.String("category", string(e.category)),
	}
	if e.cause != nil {
		attrs = append(attrs, slog.String("cause", e.cause.Error()))
	}
	keys := make([]string, 0, len(e.context))
	for k := range e.context {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, e.context[k]))
	}
	return slog.GroupValue(attrs...)
}

// AsClassified finds the first ClassifiedError in err's chain.
func AsClassified(err error) (*ClassifiedError, bool) {
	var classified *ClassifiedError
	if stderrors.As(err, &classified) {
		return classified, true
	}
	return nil, false
}

// HasCategory reports whether the first ClassifiedError in err's chain has the category.
func HasCategory(err error, category ErrorCategory) bool {
	classified, ok := AsClassified(err)
	return ok && classified.category == category
}

func HasSeverity(err error, severity ErrorSeverity) bool {
	classified, ok := AsClassified(err)
	return ok && classified.severity == severity
}

func IsNotFound(err error) bool {
	return HasCategory(err, CategoryNotFound)
}
