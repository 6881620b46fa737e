// Package errors provides the classified error type used across xgrab.
//
// Every failure that crosses a package boundary is described by a category
// (config, persistence, protocol, ...), a severity and a retry strategy, plus
// free-form context. Nothing in the core treats an error as fatal to the
// process; severity only drives logging and CLI exit codes.
//
// Example usage:
//
//	err := errors.WrapError(ioErr, errors.CategoryPersistence, "save failed").
//		Retryable().
//		WithContext("kind", "files").
//		Build()
package errors
