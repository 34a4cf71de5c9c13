package anthropicclaude

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/cmdren/anthropic-pipe/internal/config"
	"github.com/cmdren/anthropic-pipe/internal/pipe"
)

// translateRequest converts a host ChatRequest into the upstream payload.
// It performs model resolution, system prompt extraction, content block
// conversion with image validation, and parameter selection. It never emits
// a parameter the caller (or a configured default) did not supply, and never
// emits temperature and top_p together.
func translateRequest(ctx context.Context, req pipe.ChatRequest, valves config.Valves, fetcher *imageFetcher) (anthropic.MessageNewParams, error) {
	var zero anthropic.MessageNewParams

	model, err := ResolveModel(req.Model)
	if err != nil {
		return zero, err
	}

	if len(req.Messages) == 0 {
		return zero, &pipe.ValidationError{Reason: "at least one message is required"}
	}

	system, messages, err := popSystemMessage(req.System, req.Messages)
	if err != nil {
		return zero, err
	}

	budget := &imageBudget{}
	params := anthropic.MessageNewParams{
		Model:    anthropic.Model(model),
		Messages: make([]anthropic.MessageParam, 0, len(messages)),
	}

	for i, msg := range messages {
		blocks, err := translateContent(ctx, msg.Content, budget, fetcher)
		if err != nil {
			return zero, fmt.Errorf("messages[%d]: %w", i, err)
		}
		if len(blocks) == 0 {
			return zero, &pipe.ValidationError{
				Reason: fmt.Sprintf("messages[%d] has no content", i),
			}
		}

		switch msg.Role {
		case "user":
			params.Messages = append(params.Messages, anthropic.NewUserMessage(blocks...))
		case "assistant":
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(blocks...))
		case "system":
			return zero, &pipe.ValidationError{
				Reason: fmt.Sprintf("messages[%d]: a system message is only allowed as the first entry", i),
			}
		default:
			return zero, &pipe.ValidationError{
				Reason: fmt.Sprintf("messages[%d] has unsupported role %q", i, msg.Role),
			}
		}
	}

	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	if err := applyParameters(&params, req, valves); err != nil {
		return zero, err
	}

	return params, nil
}

// popSystemMessage merges the out-of-band system prompt with a leading
// system-role message and returns the remaining turns. Upstream requires
// system prompts out of the message array.
func popSystemMessage(system string, messages []pipe.Message) (string, []pipe.Message, error) {
	if len(messages) == 0 || messages[0].Role != "system" {
		return system, messages, nil
	}

	lead := messages[0]
	if lead.Content.IsParts {
		var texts []string
		for _, part := range lead.Content.Parts {
			if part.Type != pipe.PartTypeText {
				return "", nil, &pipe.ValidationError{
					Reason: "system message content must be text",
				}
			}
			texts = append(texts, part.Text)
		}
		return joinSystem(system, strings.Join(texts, "\n")), messages[1:], nil
	}

	return joinSystem(system, lead.Content.Text), messages[1:], nil
}

func joinSystem(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "\n\n" + b
	}
}

// translateContent converts one message's content into Anthropic content
// blocks, charging images against the request budget.
func translateContent(ctx context.Context, content pipe.MessageContent, budget *imageBudget, fetcher *imageFetcher) ([]anthropic.ContentBlockParamUnion, error) {
	if !content.IsParts {
		if content.Text == "" {
			return nil, nil
		}
		return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(content.Text)}, nil
	}

	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(content.Parts))
	for i, part := range content.Parts {
		switch part.Type {
		case pipe.PartTypeText:
			blocks = append(blocks, anthropic.NewTextBlock(part.Text))
		case pipe.PartTypeImageURL:
			if part.ImageURL == nil || part.ImageURL.URL == "" {
				return nil, &pipe.ValidationError{
					Reason: fmt.Sprintf("content part %d is missing an image URL", i),
				}
			}
			block, err := fetcher.processImage(ctx, part.ImageURL.URL, budget)
			if err != nil {
				return nil, err
			}
			blocks = append(blocks, block)
		default:
			return nil, &pipe.ValidationError{
				Reason: fmt.Sprintf("content part %d has unsupported type %q", i, part.Type),
			}
		}
	}
	return blocks, nil
}

// applyParameters sets generation parameters on the payload. Optional keys
// appear only when the caller supplied them or a configured default applies;
// temperature and top_p are mutually exclusive by construction, and the
// configured default temperature is withheld when the caller chose top_p.
func applyParameters(params *anthropic.MessageNewParams, req pipe.ChatRequest, valves config.Valves) error {
	switch {
	case req.MaxTokens == nil:
		params.MaxTokens = valves.MaxTokens
	case *req.MaxTokens <= 0:
		return &pipe.ValidationError{
			Reason: fmt.Sprintf("max_tokens must be positive, got %d", *req.MaxTokens),
		}
	default:
		params.MaxTokens = *req.MaxTokens
	}

	if req.Temperature != nil && req.TopP != nil {
		return &pipe.ValidationError{
			Reason: "temperature and top_p cannot both be specified",
		}
	}

	switch {
	case req.Temperature != nil:
		if *req.Temperature < 0 || *req.Temperature > 1 {
			return &pipe.ValidationError{
				Reason: fmt.Sprintf("temperature must be within [0.0, 1.0], got %g", *req.Temperature),
			}
		}
		params.Temperature = anthropic.Float(*req.Temperature)
	case req.TopP != nil:
		if *req.TopP < 0 || *req.TopP > 1 {
			return &pipe.ValidationError{
				Reason: fmt.Sprintf("top_p must be within [0.0, 1.0], got %g", *req.TopP),
			}
		}
		params.TopP = anthropic.Float(*req.TopP)
	default:
		params.Temperature = anthropic.Float(valves.Temperature)
	}

	if len(req.Stop) > 0 {
		params.StopSequences = []string(req.Stop)
	}

	return nil
}
