package foundation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/xgrab/internal/foundation/errors"
)

func TestValidatorChain(t *testing.T) {
	type limits struct {
		Retries int
		Mode    string
	}
	chain := NewValidatorChain(
		func(l limits) ValidationResult { return NonNegative[int]("retry.max_retries")(l.Retries) },
		func(l limits) ValidationResult { return OneOf("retry.backoff", []string{"fixed", "linear"})(l.Mode) },
	)

	assert.True(t, chain.Validate(limits{Retries: 0, Mode: "fixed"}).Valid)

	res := chain.Validate(limits{Retries: -1, Mode: "random"})
	require.False(t, res.Valid)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, "negative", res.Errors[0].Code)
	assert.Equal(t, "random", res.Errors[1].Value)

	err := res.ToError()
	require.Error(t, err)
	assert.True(t, errors.HasCategory(err, errors.CategoryValidation))
	assert.Contains(t, err.Error(), "field 'retry.max_retries': must not be negative")

	classified, ok := errors.AsClassified(err)
	require.True(t, ok)
	fields, _ := classified.Context().Get("fields")
	assert.Equal(t, []string{"retry.max_retries", "retry.backoff"}, fields)
}

func TestValidationResultCombine(t *testing.T) {
	assert.True(t, Valid().Combine(Valid()).Valid)
	assert.NoError(t, Valid().ToError())

	combined := Invalid(NewValidationError("a", "x", "bad a")).Combine(Valid())
	assert.False(t, combined.Valid)
	assert.Len(t, combined.Errors, 1)
	assert.False(t, ValidationResult{}.Valid)
}

func TestNormalizer(t *testing.T) {
	type format string
	n := NewNormalizer(map[string]format{"text": "text", "JSON": "json"}, "text")

	assert.Equal(t, format("json"), n.Normalize("  Json "))
	assert.Equal(t, format("text"), n.Normalize("xml"))

	_, err := n.NormalizeWithError("xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "json, text")
	assert.Equal(t, []string{"json", "text"}, n.ValidKeys())
}
