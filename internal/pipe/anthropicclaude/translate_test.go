package anthropicclaude

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/cmdren/anthropic-pipe/internal/pipe"
)

func ptr[T any](v T) *T { return &v }

// completeAndCapture runs a buffered call against a recording transport and
// returns the upstream payload that went over the wire.
func completeAndCapture(t *testing.T, req pipe.ChatRequest) []byte {
	t.Helper()

	transport := &recordingTransport{responseBody: minimalMessageBody, responseStatus: 200}
	p := New(testValves())

	_, err := p.Complete(context.Background(), req, transport)
	require.NoError(t, err)
	require.Equal(t, 1, transport.calls)
	return transport.requestBody
}

func textMessage(role, text string) pipe.Message {
	return pipe.Message{Role: role, Content: pipe.MessageContent{Text: text}}
}

func TestComplete_PayloadDefaults(t *testing.T) {
	body := completeAndCapture(t, pipe.ChatRequest{
		Model:    "anthropic/claude-sonnet-4.5",
		Messages: []pipe.Message{textMessage("user", "hi")},
	})

	assert.Equal(t, "claude-sonnet-4-5-20250929", gjson.GetBytes(body, "model").String())
	// Configured defaults apply when the caller supplied nothing.
	assert.Equal(t, int64(4096), gjson.GetBytes(body, "max_tokens").Int())
	assert.Equal(t, 1.0, gjson.GetBytes(body, "temperature").Float())
	// Keys nobody supplied are absent, not null.
	assert.False(t, gjson.GetBytes(body, "top_p").Exists())
	assert.False(t, gjson.GetBytes(body, "stop_sequences").Exists())
	assert.False(t, gjson.GetBytes(body, "system").Exists())
}

func TestComplete_PayloadCallerParameters(t *testing.T) {
	body := completeAndCapture(t, pipe.ChatRequest{
		Model:       "anthropic/claude-haiku-4.5",
		Messages:    []pipe.Message{textMessage("user", "hi")},
		MaxTokens:   ptr(int64(512)),
		Temperature: ptr(0.3),
		Stop:        pipe.StopSequences{"END"},
	})

	assert.Equal(t, int64(512), gjson.GetBytes(body, "max_tokens").Int())
	assert.Equal(t, 0.3, gjson.GetBytes(body, "temperature").Float())
	assert.Equal(t, "END", gjson.GetBytes(body, "stop_sequences.0").String())
	assert.False(t, gjson.GetBytes(body, "top_p").Exists())
}

func TestComplete_TopPSuppressesDefaultTemperature(t *testing.T) {
	body := completeAndCapture(t, pipe.ChatRequest{
		Model:    "anthropic/claude-sonnet-4.5",
		Messages: []pipe.Message{textMessage("user", "hi")},
		TopP:     ptr(0.9),
	})

	// Choosing top_p must not drag the default temperature along: the two
	// sampling parameters never appear together.
	assert.Equal(t, 0.9, gjson.GetBytes(body, "top_p").Float())
	assert.False(t, gjson.GetBytes(body, "temperature").Exists())
}

func TestComplete_TemperatureAndTopPConflict(t *testing.T) {
	transport := &failingTransport{}
	p := New(testValves())

	_, err := p.Complete(context.Background(), pipe.ChatRequest{
		Model:       "anthropic/claude-sonnet-4.5",
		Messages:    []pipe.Message{textMessage("user", "hi")},
		Temperature: ptr(0.5),
		TopP:        ptr(0.9),
	}, transport)

	var valErr *pipe.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Contains(t, valErr.Reason, "temperature and top_p")
	assert.Zero(t, transport.calls)
}

func TestComplete_OutOfDomainParametersRejected(t *testing.T) {
	p := New(testValves())

	cases := []pipe.ChatRequest{
		{
			Model:       "anthropic/claude-sonnet-4.5",
			Messages:    []pipe.Message{textMessage("user", "hi")},
			Temperature: ptr(1.5),
		},
		{
			Model:     "anthropic/claude-sonnet-4.5",
			Messages:  []pipe.Message{textMessage("user", "hi")},
			MaxTokens: ptr(int64(0)),
		},
	}

	for _, req := range cases {
		transport := &failingTransport{}
		_, err := p.Complete(context.Background(), req, transport)

		var valErr *pipe.ValidationError
		assert.True(t, errors.As(err, &valErr), "request %+v", req)
		assert.Zero(t, transport.calls)
	}
}

func TestComplete_LeadingSystemMessageExtracted(t *testing.T) {
	body := completeAndCapture(t, pipe.ChatRequest{
		Model: "anthropic/claude-sonnet-4.5",
		Messages: []pipe.Message{
			textMessage("system", "be terse"),
			textMessage("user", "hi"),
			textMessage("assistant", "hello"),
			textMessage("user", "more"),
		},
	})

	assert.Equal(t, "be terse", gjson.GetBytes(body, "system.0.text").String())

	roles := gjson.GetBytes(body, "messages.#.role").Array()
	require.Len(t, roles, 3)
	for _, role := range roles {
		assert.NotEqual(t, "system", role.String())
	}
}

func TestComplete_SystemFieldAndLeadingMessageJoined(t *testing.T) {
	body := completeAndCapture(t, pipe.ChatRequest{
		Model:  "anthropic/claude-sonnet-4.5",
		System: "base prompt",
		Messages: []pipe.Message{
			textMessage("system", "addendum"),
			textMessage("user", "hi"),
		},
	})

	assert.Equal(t, "base prompt\n\naddendum", gjson.GetBytes(body, "system.0.text").String())
}

func TestComplete_MidListSystemMessageRejected(t *testing.T) {
	transport := &failingTransport{}
	p := New(testValves())

	_, err := p.Complete(context.Background(), pipe.ChatRequest{
		Model: "anthropic/claude-sonnet-4.5",
		Messages: []pipe.Message{
			textMessage("user", "hi"),
			textMessage("system", "sneaky"),
		},
	}, transport)

	var valErr *pipe.ValidationError
	assert.True(t, errors.As(err, &valErr))
	assert.Zero(t, transport.calls)
}

func TestComplete_TranslationIsDeterministic(t *testing.T) {
	req := pipe.ChatRequest{
		Model:  "anthropic/claude-sonnet-4.5",
		System: "sys",
		Messages: []pipe.Message{
			textMessage("system", "lead"),
			textMessage("user", "hi"),
		},
		Temperature: ptr(0.2),
		Stop:        pipe.StopSequences{"a", "b"},
	}

	first := completeAndCapture(t, req)
	second := completeAndCapture(t, req)
	assert.Equal(t, string(first), string(second))
}

func TestComplete_MultiPartContent(t *testing.T) {
	imageData := strings.Repeat("AAAA", 16) // small valid base64 payload
	body := completeAndCapture(t, pipe.ChatRequest{
		Model: "anthropic/claude-sonnet-4.5",
		Messages: []pipe.Message{{
			Role: "user",
			Content: pipe.MessageContent{
				IsParts: true,
				Parts: []pipe.ContentPart{
					{Type: "text", Text: "what is this?"},
					{Type: "image_url", ImageURL: &pipe.ImageURL{URL: "data:image/png;base64," + imageData}},
				},
			},
		}},
	})

	assert.Equal(t, "text", gjson.GetBytes(body, "messages.0.content.0.type").String())
	assert.Equal(t, "image", gjson.GetBytes(body, "messages.0.content.1.type").String())
	assert.Equal(t, "base64", gjson.GetBytes(body, "messages.0.content.1.source.type").String())
	assert.Equal(t, "image/png", gjson.GetBytes(body, "messages.0.content.1.source.media_type").String())
	assert.Equal(t, imageData, gjson.GetBytes(body, "messages.0.content.1.source.data").String())
}

func TestComplete_UnsupportedPartTypeRejected(t *testing.T) {
	transport := &failingTransport{}
	p := New(testValves())

	_, err := p.Complete(context.Background(), pipe.ChatRequest{
		Model: "anthropic/claude-sonnet-4.5",
		Messages: []pipe.Message{{
			Role: "user",
			Content: pipe.MessageContent{
				IsParts: true,
				Parts:   []pipe.ContentPart{{Type: "input_audio"}},
			},
		}},
	}, transport)

	var valErr *pipe.ValidationError
	assert.True(t, errors.As(err, &valErr))
	assert.Zero(t, transport.calls)
}

func TestComplete_MissingAPIKeyFailsBeforeTransport(t *testing.T) {
	valves := testValves()
	valves.APIKey = ""
	transport := &failingTransport{}
	p := New(valves)

	_, err := p.Complete(context.Background(), pipe.ChatRequest{
		Model:    "anthropic/claude-sonnet-4.5",
		Messages: []pipe.Message{textMessage("user", "hi")},
	}, transport)

	var cfgErr *pipe.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Zero(t, transport.calls)
}

func TestStream_MissingAPIKeyFailsBeforeTransport(t *testing.T) {
	valves := testValves()
	valves.APIKey = ""
	transport := &failingTransport{}
	p := New(valves)

	_, err := p.Stream(context.Background(), pipe.ChatRequest{
		Model:    "anthropic/claude-sonnet-4.5",
		Messages: []pipe.Message{textMessage("user", "hi")},
	}, transport)

	var cfgErr *pipe.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Zero(t, transport.calls)
}

func TestComplete_UnrecognizedModel(t *testing.T) {
	transport := &failingTransport{}
	p := New(testValves())

	_, err := p.Complete(context.Background(), pipe.ChatRequest{
		Model:    "anthropic/claude-bogus",
		Messages: []pipe.Message{textMessage("user", "hi")},
	}, transport)

	var valErr *pipe.ValidationError
	require.True(t, errors.As(err, &valErr))
	assert.Contains(t, valErr.Reason, "claude-bogus")
	assert.Zero(t, transport.calls)
}
