package anthropicclaude

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmdren/anthropic-pipe/internal/pipe"
)

func TestResolveModel_AcceptedSpellings(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"anthropic/claude-sonnet-4.5", "claude-sonnet-4-5-20250929"},
		{"anthropic.claude-sonnet-4.5", "claude-sonnet-4-5-20250929"},
		{"claude-sonnet-4.5", "claude-sonnet-4-5-20250929"},
		{"claude-sonnet-4-5", "claude-sonnet-4-5-20250929"},
		{"claude-sonnet-4-5-20250929", "claude-sonnet-4-5-20250929"},
		{"anthropic/claude-haiku-4.5", "claude-haiku-4-5-20251001"},
		{"anthropic/claude-opus-4.5", "claude-opus-4-5-20251101"},
		{"anthropic.claude-opus-4-5", "claude-opus-4-5-20251101"},
	}

	for _, tc := range cases {
		got, err := ResolveModel(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestResolveModel_UnrecognizedNamesTheInput(t *testing.T) {
	_, err := ResolveModel("anthropic/claude-bogus")
	require.Error(t, err)

	var valErr *pipe.ValidationError
	require.True(t, errors.As(err, &valErr))
	// The stripped alias is named so the caller sees what was rejected.
	assert.Contains(t, valErr.Reason, "claude-bogus")
}

func TestResolveModel_Empty(t *testing.T) {
	_, err := ResolveModel("")
	var valErr *pipe.ValidationError
	assert.True(t, errors.As(err, &valErr))
}

func TestSupportedModels_IsACopy(t *testing.T) {
	models := SupportedModels()
	require.NotEmpty(t, models)

	models[0].UpstreamID = "mutated"
	assert.NotEqual(t, "mutated", SupportedModels()[0].UpstreamID)
}
