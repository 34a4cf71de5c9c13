package anthropicclaude

import (
	"strings"

	"github.com/cmdren/anthropic-pipe/internal/pipe"
)

// modelTable maps host-facing aliases to exact upstream model identifiers.
// The set is data: supporting a new model is one more row, no translation
// code changes. Keys are the short alias in dotted form; normalization in
// ResolveModel folds the other accepted spellings onto them.
var modelTable = []pipe.ModelInfo{
	{ID: "anthropic/claude-sonnet-4.5", Name: "claude-sonnet-4.5", UpstreamID: "claude-sonnet-4-5-20250929"},
	{ID: "anthropic/claude-haiku-4.5", Name: "claude-haiku-4.5", UpstreamID: "claude-haiku-4-5-20251001"},
	{ID: "anthropic/claude-opus-4.5", Name: "claude-opus-4.5", UpstreamID: "claude-opus-4-5-20251101"},
}

// SupportedModels returns the model table in declaration order.
func SupportedModels() []pipe.ModelInfo {
	out := make([]pipe.ModelInfo, len(modelTable))
	copy(out, modelTable)
	return out
}

// ResolveModel maps a host-side model identifier to the exact upstream model
// string. Accepted spellings for each alias:
//
//   - vendor-prefixed: "anthropic/claude-sonnet-4.5", "anthropic.claude-sonnet-4.5"
//   - bare: "claude-sonnet-4.5"
//   - hyphenated version: "claude-sonnet-4-5"
//   - full dated upstream ID: "claude-sonnet-4-5-20250929"
//
// Unrecognized identifiers fail with a validation error naming the input.
func ResolveModel(model string) (string, error) {
	alias := stripVendorPrefix(strings.TrimSpace(model))
	if alias == "" {
		return "", &pipe.ValidationError{Reason: "model identifier is empty"}
	}

	for _, m := range modelTable {
		if alias == m.Name || alias == m.UpstreamID || alias == hyphenated(m.Name) {
			return m.UpstreamID, nil
		}
	}

	return "", &pipe.ValidationError{Reason: "unrecognized model: " + alias}
}

// stripVendorPrefix removes a leading "anthropic/" or "anthropic." vendor
// tag. The dot form splits on the first dot only, so version dots inside the
// alias survive ("anthropic.claude-opus-4.5" -> "claude-opus-4.5").
func stripVendorPrefix(model string) string {
	if after, ok := strings.CutPrefix(model, "anthropic/"); ok {
		return after
	}
	if strings.HasPrefix(model, "anthropic.") {
		_, after, _ := strings.Cut(model, ".")
		return after
	}
	return model
}

// hyphenated folds version dots to hyphens ("claude-sonnet-4.5" ->
// "claude-sonnet-4-5") so both spellings resolve.
func hyphenated(alias string) string {
	return strings.ReplaceAll(alias, ".", "-")
}
