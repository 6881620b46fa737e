package errors

// ErrorBuilder assembles a ClassifiedError. Builders are single use.
type ErrorBuilder struct {
	err ClassifiedError
}

// NewError starts an error of the given category. Defaults are
// SeverityError and RetryNever.
func NewError(category ErrorCategory, message string) *ErrorBuilder {
	return &ErrorBuilder{err: ClassifiedError{
		category: category,
		severity: SeverityError,
		retry:    RetryNever,
		message:  message,
	}}
}

// WrapError starts an error that wraps cause.
func WrapError(cause error, category ErrorCategory, message string) *ErrorBuilder {
	return NewError(category, message).WithCause(cause)
}

func (b *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	b.err.cause = err
	return b
}

func (b *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	b.err.context = b.err.context.Set(key, value)
	return b
}

func (b *ErrorBuilder) Fatal() *ErrorBuilder   { return b.severity(SeverityFatal) }
func (b *ErrorBuilder) Warning() *ErrorBuilder { return b.severity(SeverityWarning) }
func (b *ErrorBuilder) Info() *ErrorBuilder    { return b.severity(SeverityInfo) }

// Retryable marks the operation as worth repeating with backoff.
func (b *ErrorBuilder) Retryable() *ErrorBuilder { return b.strategy(RetryBackoff) }

// NextTick marks the operation as repeated by the next periodic pass.
func (b *ErrorBuilder) NextTick() *ErrorBuilder { return b.strategy(RetryNextTick) }

func (b *ErrorBuilder) severity(s ErrorSeverity) *ErrorBuilder {
	b.err.severity = s
	return b
}

func (b *ErrorBuilder) strategy(r RetryStrategy) *ErrorBuilder {
	b.err.retry = r
	return b
}

// Build returns the finished error.
func (b *ErrorBuilder) Build() *ClassifiedError {
	out := b.err
	if out.context == nil {
		out.context = ErrorContext{}
	}
	return &out
}

func ConfigError(message string) *ErrorBuilder {
	return NewError(CategoryConfig, message).Fatal()
}

func ValidationError(message string) *ErrorBuilder {
	return NewError(CategoryValidation, message).Fatal()
}

func NotFoundError(message string) *ErrorBuilder {
	return NewError(CategoryNotFound, message).Info()
}

// PersistenceError describes a failed snapshot write; the save job retries it.
func PersistenceError(message string) *ErrorBuilder {
	return NewError(CategoryPersistence, message).NextTick()
}

// ProtocolAnomaly describes a bot reply that rejected a request.
func ProtocolAnomaly(message string) *ErrorBuilder {
	return NewError(CategoryProtocol, message).Warning()
}

// ConsistencyError describes a graph inconsistency resolved by pruning.
func ConsistencyError(message string) *ErrorBuilder {
	return NewError(CategoryConsistency, message)
}

func TransportError(message string) *ErrorBuilder {
	return NewError(CategoryTransport, message).Retryable()
}

func DaemonError(message string) *ErrorBuilder {
	return NewError(CategoryDaemon, message).Fatal()
}

func InternalError(message string) *ErrorBuilder {
	return NewError(CategoryInternal, message).Fatal()
}
