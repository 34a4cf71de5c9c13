package anthropicclaude

import (
	"iter"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/cmdren/anthropic-pipe/internal/pipe"
)

// streamState accumulates per-stream bookkeeping from events that emit no
// text: stop reason and token usage.
type streamState struct {
	stopReason string
	usage      pipe.Usage
}

// handleEvent consumes one stream event. It returns the text chunk to emit
// (empty when the event carries none) and whether the stream is complete.
//
// Only content_block_delta events with a text delta produce output. Every
// other kind either updates bookkeeping or is inert; in particular a
// content_block_start without text is a normal event, not a fault. The
// branches never touch a field the event kind is not guaranteed to carry.
func (s *streamState) handleEvent(ev anthropic.MessageStreamEventUnion) (string, bool) {
	switch event := ev.AsAny().(type) {
	case anthropic.MessageStartEvent:
		s.usage.InputTokens = event.Message.Usage.InputTokens
	case anthropic.ContentBlockStartEvent:
		// Block opening carries no emittable text.
	case anthropic.ContentBlockDeltaEvent:
		if delta, ok := event.Delta.AsAny().(anthropic.TextDelta); ok {
			return delta.Text, false
		}
	case anthropic.ContentBlockStopEvent:
		// Block closing carries no emittable text.
	case anthropic.MessageDeltaEvent:
		s.stopReason = string(event.Delta.StopReason)
		s.usage.OutputTokens = event.Usage.OutputTokens
	case anthropic.MessageStopEvent:
		return "", true
	}
	return "", false
}

// chunkSequence turns the raw event stream into the host's lazy chunk
// sequence. first is the already-read initial event (read ahead so that
// failures before any byte of output surface as a call error instead of a
// mid-stream one). The underlying connection is released on every exit path,
// including early termination by the consumer.
func chunkSequence(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], first anthropic.MessageStreamEventUnion, state *streamState) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer stream.Close()

		ev := first
		for {
			text, done := state.handleEvent(ev)
			if text != "" && !yield(text, nil) {
				return
			}
			if done {
				return
			}
			if !stream.Next() {
				break
			}
			ev = stream.Current()
		}

		// Connection closed without message_stop: either an in-stream
		// error event or a transport failure. Either way the chunks
		// already yielded stand; the failure is signaled after them.
		if err := stream.Err(); err != nil {
			yield("", classifyError(err))
		}
	}
}
