package foundation

import (
	"fmt"
	"slices"
	"strings"
)

func defaultNormalizer(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Normalizer maps free-form config strings onto a closed set of values.
type Normalizer[T comparable] struct {
	validValues  map[string]T
	defaultValue T
}

// NewNormalizer creates a normalizer with a map of valid string->value pairs.
func NewNormalizer[T comparable](values map[string]T, defaultValue T) *Normalizer[T] {
	normalized := make(map[string]T, len(values))
	for k, v := range values {
		normalized[defaultNormalizer(k)] = v
	}

	return &Normalizer[T]{
		validValues:  normalized,
		defaultValue: defaultValue,
	}
}

// Normalize returns the default value if raw is not recognized.
func (n *Normalizer[T]) Normalize(raw string) T {
	if value, exists := n.validValues[defaultNormalizer(raw)]; exists {
		return value
	}
	return n.defaultValue
}

// NormalizeWithError returns an error if raw is not recognized.
func (n *Normalizer[T]) NormalizeWithError(raw string) (T, error) {
	if value, exists := n.validValues[defaultNormalizer(raw)]; exists {
		return value, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid value: %s (valid: %s)", raw, strings.Join(n.ValidKeys(), ", "))
}

// ValidKeys lists the accepted spellings in sorted order.
func (n *Normalizer[T]) ValidKeys() []string {
	keys := make([]string, 0, len(n.validValues))
	for k := range n.validValues {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
