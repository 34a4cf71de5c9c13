package anthropicclaude

import (
	"context"
	"iter"
	"log/slog"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/cmdren/anthropic-pipe/internal/config"
	"github.com/cmdren/anthropic-pipe/internal/pipe"
)

// Pipe adapts host chat requests to the Anthropic messages API. It holds
// only the configured valves; every call builds its state fresh and discards
// it when the call completes or fails.
type Pipe struct {
	valves  config.Valves
	fetcher *imageFetcher
}

// Compile-time check that Pipe satisfies the host contract.
var _ pipe.Pipe = (*Pipe)(nil)

// New creates a Pipe with the given valves.
func New(valves config.Valves) *Pipe {
	return &Pipe{
		valves:  valves,
		fetcher: newImageFetcher(valves.ConnectionTimeout),
	}
}

// Models lists the supported model table.
func (p *Pipe) Models() []pipe.ModelInfo {
	return SupportedModels()
}

// Complete performs one buffered upstream call.
func (p *Pipe) Complete(ctx context.Context, req pipe.ChatRequest, transport http.RoundTripper) (*pipe.Completion, error) {
	params, err := p.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	client := newClient(p.valves, transport, false)
	msg, err := client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyError(err)
	}

	completion := toCompletion(msg)
	slog.DebugContext(ctx, "completed buffered call",
		"model", params.Model,
		"stop_reason", completion.StopReason,
		"input_tokens", completion.Usage.InputTokens,
		"output_tokens", completion.Usage.OutputTokens,
	)
	return completion, nil
}

// Stream performs one streaming upstream call. The first event is read
// before returning so that rejections (bad request, auth, overload) surface
// as a call error rather than a mid-stream failure.
func (p *Pipe) Stream(ctx context.Context, req pipe.ChatRequest, transport http.RoundTripper) (iter.Seq2[string, error], error) {
	params, err := p.prepare(ctx, req)
	if err != nil {
		return nil, err
	}

	client := newClient(p.valves, transport, true)
	stream := client.Messages.NewStreaming(ctx, params)

	if !stream.Next() {
		err := stream.Err()
		stream.Close()
		if err != nil {
			return nil, classifyError(err)
		}
		// Upstream closed cleanly without a single event.
		return func(yield func(string, error) bool) {}, nil
	}

	state := &streamState{}
	seq := chunkSequence(stream, stream.Current(), state)

	return func(yield func(string, error) bool) {
		seq(yield)
		slog.DebugContext(ctx, "stream finished",
			"model", params.Model,
			"stop_reason", state.stopReason,
			"input_tokens", state.usage.InputTokens,
			"output_tokens", state.usage.OutputTokens,
		)
	}, nil
}

// prepare runs the pre-network phase: the call-time key check, then request
// translation. A missing key fails before any network attempt.
func (p *Pipe) prepare(ctx context.Context, req pipe.ChatRequest) (anthropic.MessageNewParams, error) {
	if p.valves.APIKey == "" {
		return anthropic.MessageNewParams{}, &pipe.ConfigurationError{Reason: "ANTHROPIC_API_KEY not configured"}
	}
	return translateRequest(ctx, req, p.valves, p.fetcher)
}
