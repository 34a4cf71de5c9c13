// Package pipe defines the host-facing call contract of the Anthropic pipe:
// the request shape a chat host submits, the completion/chunk shapes it gets
// back, and the error taxonomy every failure is classified into.
//
// The contract is a pure function call: no process-lifetime assumptions, no
// cross-call state. Implementations live in subpackages (see anthropicclaude)
// and stay stateless; the HTTP transport is injected per call so tests can
// record and count upstream traffic.
package pipe

import (
	"context"
	"iter"
	"net/http"
)

// Pipe translates host chat requests into one upstream model call and
// translates the result back.
type Pipe interface {
	// Models lists the host-facing model identifiers this pipe serves.
	Models() []ModelInfo

	// Complete performs one buffered call and returns the full completion.
	// The transport handles the upstream HTTP exchange; pass nil for the
	// default transport built from the configured timeouts.
	Complete(ctx context.Context, req ChatRequest, transport http.RoundTripper) (*Completion, error)

	// Stream performs one streaming call and returns a lazy, forward-only,
	// single-pass sequence of text fragments in arrival order. A non-nil
	// error from the sequence terminates it; fragments already yielded
	// remain valid. An error return from Stream itself means the call
	// failed before any fragment was produced.
	Stream(ctx context.Context, req ChatRequest, transport http.RoundTripper) (iter.Seq2[string, error], error)
}

// ModelInfo is one row of the supported-model table.
type ModelInfo struct {
	// ID is the host-facing identifier (e.g. "anthropic/claude-sonnet-4.5").
	ID string `json:"id"`
	// Name is the short display alias (e.g. "claude-sonnet-4.5").
	Name string `json:"name"`
	// UpstreamID is the exact upstream model string the alias resolves to.
	UpstreamID string `json:"-"`
}

// Completion is the result of a buffered call.
type Completion struct {
	// Text is the concatenated text of all text-bearing content blocks in
	// response order. Blocks without extractable text contribute nothing.
	Text string

	// StopReason is the upstream stop reason ("end_turn", "max_tokens", ...).
	StopReason string

	// Usage carries the upstream token accounting when present.
	Usage Usage
}

// Usage is the upstream token accounting.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}
