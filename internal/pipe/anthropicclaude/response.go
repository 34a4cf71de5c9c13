package anthropicclaude

import (
	"github.com/anthropics/anthropic-sdk-go"

	"github.com/cmdren/anthropic-pipe/internal/pipe"
)

// toCompletion converts a buffered upstream message into the host completion.
// Text is the concatenation of all text-bearing blocks in content order; any
// block without extractable text (tool use, thinking, ...) is inert, not an
// error.
func toCompletion(msg *anthropic.Message) *pipe.Completion {
	var text []byte
	for _, block := range msg.Content {
		if tb, ok := block.AsAny().(anthropic.TextBlock); ok {
			text = append(text, tb.Text...)
		}
	}

	return &pipe.Completion{
		Text:       string(text),
		StopReason: string(msg.StopReason),
		Usage: pipe.Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}
}
