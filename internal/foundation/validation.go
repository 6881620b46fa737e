package foundation

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
)

// Validator checks one aspect of a value.
type Validator[T any] func(T) ValidationResult

// ValidationResult collects every field failure found by a validator.
type ValidationResult struct {
	Valid  bool
	Errors []FieldError
}

// FieldError names the offending config key, a short machine code and a
// human message.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

func (fe FieldError) Error() string {
	if fe.Field == "" {
		return fe.Message
	}
	return fmt.Sprintf("field '%s': %s", fe.Field, fe.Message)
}

func Valid() ValidationResult {
	return ValidationResult{Valid: true}
}

func Invalid(errs ...FieldError) ValidationResult {
	return ValidationResult{Errors: errs}
}

// NewValidationError is shorthand for a FieldError without a value.
func NewValidationError(field, code, message string) FieldError {
	return FieldError{Field: field, Code: code, Message: message}
}

// Combine keeps the failures of both results.
func (vr ValidationResult) Combine(other ValidationResult) ValidationResult {
	if vr.Valid && other.Valid {
		return Valid()
	}
	return Invalid(append(append([]FieldError(nil), vr.Errors...), other.Errors...)...)
}

// ToError folds the failures into one validation error. The offending
// field names are attached as the "fields" context value.
func (vr ValidationResult) ToError() error {
	if vr.Valid {
		return nil
	}
	messages := make([]string, 0, len(vr.Errors))
	fields := make([]string, 0, len(vr.Errors))
	for _, fe := range vr.Errors {
		messages = append(messages, fe.Error())
		if fe.Field != "" {
			fields = append(fields, fe.Field)
		}
	}
	return errors.ValidationError(strings.Join(messages, "; ")).
		WithContext("fields", fields).
		Build()
}

// ValidatorChain runs several validators and merges their results.
type ValidatorChain[T any] struct {
	validators []Validator[T]
}

func NewValidatorChain[T any](validators ...Validator[T]) *ValidatorChain[T] {
	return &ValidatorChain[T]{validators: validators}
}

func (vc *ValidatorChain[T]) Validate(value T) ValidationResult {
	result := Valid()
	for _, validator := range vc.validators {
		result = result.Combine(validator(value))
	}
	return result
}

// OneOf accepts only the listed values.
func OneOf[T comparable](field string, allowed []T) Validator[T] {
	allowedSet := make(map[T]struct{}, len(allowed))
	for _, item := range allowed {
		allowedSet[item] = struct{}{}
	}
	return func(value T) ValidationResult {
		if _, ok := allowedSet[value]; ok {
			return Valid()
		}
		return Invalid(FieldError{
			Field:   field,
			Code:    "one_of",
			Message: fmt.Sprintf("field must be one of: %v", allowed),
			Value:   value,
		})
	}
}

// NonNegative rejects values below zero. Durations and counters in the
// config use zero to mean "disabled", never a negative number.
func NonNegative[T ~int | ~int64](field string) Validator[T] {
	return func(value T) ValidationResult {
		if value >= 0 {
			return Valid()
		}
		return Invalid(FieldError{Field: field, Code: "negative", Message: "must not be negative", Value: value})
	}
}
