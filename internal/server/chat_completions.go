package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmdren/anthropic-pipe/internal/pipe"
)

// ChatCompletionsHandler serves chat completion requests, buffered or
// streamed, by delegating to the pipe.
type ChatCompletionsHandler struct {
	Pipe pipe.Pipe
	// Transport overrides the upstream transport; nil selects the default
	// built from the valves.
	Transport http.RoundTripper
}

// Compile-time check that ChatCompletionsHandler implements http.Handler
var _ http.Handler = (*ChatCompletionsHandler)(nil)

// ServeHTTP decodes the host request and dispatches on the streaming flag.
func (h *ChatCompletionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req pipe.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			slog.WarnContext(ctx, "request exceeds size limit", "limit_bytes", maxBytesErr.Limit)
			writeJSON(ctx, w, &errorResponse{
				Err: errorDetail{
					Message: http.StatusText(http.StatusRequestEntityTooLarge),
					Type:    "invalid_request_error",
				},
			}, http.StatusRequestEntityTooLarge)
			return
		}
		slog.ErrorContext(ctx, "failed to decode request", "error", err)
		writeJSON(ctx, w, &errorResponse{
			Err: errorDetail{
				Message: "Error: malformed request body",
				Type:    "invalid_request_error",
			},
		}, http.StatusBadRequest)
		return
	}

	if req.Stream {
		h.streamResponse(ctx, w, req)
	} else {
		h.writeResponse(ctx, w, req)
	}
}

// writeResponse handles a buffered completion.
func (h *ChatCompletionsHandler) writeResponse(ctx context.Context, w http.ResponseWriter, req pipe.ChatRequest) {
	if ctx.Err() != nil {
		return
	}

	completion, err := h.Pipe.Complete(ctx, req, h.Transport)
	if err != nil {
		writePipeError(ctx, w, err)
		return
	}

	writeJSON(ctx, w, &chatCompletionResponse{
		ID:      newResponseID(),
		Object:  "chat.completion",
		Created: nowUnix(),
		Model:   req.Model,
		Choices: []chatChoice{{
			Message:      chatMessage{Role: "assistant", Content: completion.Text},
			FinishReason: toFinishReason(completion.StopReason),
		}},
		Usage: chatUsage{
			PromptTokens:     completion.Usage.InputTokens,
			CompletionTokens: completion.Usage.OutputTokens,
			TotalTokens:      completion.Usage.InputTokens + completion.Usage.OutputTokens,
		},
	}, http.StatusOK)
}

// streamResponse relays pipe chunks as SSE. Failures before the first chunk
// become a JSON error response; failures mid-stream leave the already-sent
// fragments in place and append the error text as a final fragment.
func (h *ChatCompletionsHandler) streamResponse(ctx context.Context, w http.ResponseWriter, req pipe.ChatRequest) {
	if ctx.Err() != nil {
		return
	}

	stream, err := h.Pipe.Stream(ctx, req, h.Transport)
	if err != nil {
		writePipeError(ctx, w, err)
		return
	}

	sse, err := NewSSEWriter(w)
	if err != nil {
		slog.ErrorContext(ctx, "SSE not supported", "error", err)
		writeJSON(ctx, w, &errorResponse{
			Err: errorDetail{
				Message: http.StatusText(http.StatusInternalServerError),
				Type:    "api_error",
			},
		}, http.StatusInternalServerError)
		return
	}

	id := newResponseID()
	created := nowUnix()

	// Role announcement chunk, per the chat-completions stream protocol.
	if err := sse.WriteData(h.chunk(id, created, req.Model, chunkDelta{Role: "assistant"}, nil)); err != nil {
		slog.ErrorContext(ctx, "failed to write role chunk", "error", err)
		return
	}

	for fragment, err := range stream {
		// Check for client disconnect before processing the fragment.
		if ctx.Err() != nil {
			slog.DebugContext(ctx, "client disconnected during stream")
			return
		}

		if err != nil {
			slog.LogAttrs(ctx, slog.LevelError, "stream failed", pipe.LogAttrs(err)...)

			// Emitted fragments are not retracted; the failure is
			// appended after the last successful one.
			errChunk := h.chunk(id, created, req.Model, chunkDelta{Content: pipe.UserMessage(err)}, nil)
			if writeErr := sse.WriteData(errChunk); writeErr != nil {
				slog.ErrorContext(ctx, "failed to write error chunk", "error", writeErr)
				return
			}
			break
		}

		if err := sse.WriteData(h.chunk(id, created, req.Model, chunkDelta{Content: fragment}, nil)); err != nil {
			slog.ErrorContext(ctx, "failed to write chunk", "error", err)
			return
		}
	}

	finish := "stop"
	if err := sse.WriteData(h.chunk(id, created, req.Model, chunkDelta{}, &finish)); err != nil {
		slog.ErrorContext(ctx, "failed to write finish chunk", "error", err)
		return
	}

	// The chat-completions stream protocol requires the [DONE] marker.
	if err := sse.WriteRaw("[DONE]"); err != nil {
		slog.ErrorContext(ctx, "failed to write stream termination marker", "error", err)
	}
}

func (h *ChatCompletionsHandler) chunk(id string, created int64, model string, delta chunkDelta, finish *string) *chatCompletionChunk {
	return &chatCompletionChunk{
		ID:      id,
		Object:  "chat.completion.chunk",
		Created: created,
		Model:   model,
		Choices: []chunkChoice{{Delta: delta, FinishReason: finish}},
	}
}
