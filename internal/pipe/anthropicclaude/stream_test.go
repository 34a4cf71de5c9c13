package anthropicclaude

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmdren/anthropic-pipe/internal/pipe"
)

// sseBody assembles event frames into a response body the way the upstream
// API emits them.
func sseBody(frames ...[2]string) string {
	var b strings.Builder
	for _, f := range frames {
		b.WriteString("event: " + f[0] + "\n")
		b.WriteString("data: " + f[1] + "\n\n")
	}
	return b.String()
}

var streamPreamble = [][2]string{
	{"message_start", `{"type":"message_start","message":{"id":"msg_test","type":"message","role":"assistant","model":"claude-sonnet-4-5-20250929","content":[],"stop_reason":null,"usage":{"input_tokens":7,"output_tokens":0}}}`},
	{"content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`},
}

func streamTail() [][2]string {
	return [][2]string{
		{"content_block_stop", `{"type":"content_block_stop","index":0}`},
		{"message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"},"usage":{"output_tokens":4}}`},
		{"message_stop", `{"type":"message_stop"}`},
	}
}

func startStream(t *testing.T, body string) chunkIter {
	t.Helper()

	transport := &recordingTransport{
		responseBody:   body,
		responseStatus: 200,
		isStreaming:    true,
	}
	p := New(testValves())

	seq, err := p.Stream(context.Background(), pipe.ChatRequest{
		Model:    "anthropic/claude-sonnet-4.5",
		Messages: []pipe.Message{textMessage("user", "hi")},
		Stream:   true,
	}, transport)
	require.NoError(t, err)
	return chunkIter{seq}
}

type chunkIter struct {
	seq func(func(string, error) bool)
}

// collect drains the sequence, returning the concatenated text and the
// terminal error if one was yielded.
func (it chunkIter) collect(t *testing.T) (string, error) {
	t.Helper()

	var b strings.Builder
	var streamErr error
	for chunk, err := range it.seq {
		if err != nil {
			streamErr = err
			break
		}
		b.WriteString(chunk)
	}
	return b.String(), streamErr
}

func TestStream_ConcatenatesTextDeltas(t *testing.T) {
	frames := append([][2]string{}, streamPreamble...)
	frames = append(frames,
		[2]string{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}`},
		[2]string{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" world"}}`},
	)
	frames = append(frames, streamTail()...)

	text, err := startStream(t, sseBody(frames...)).collect(t)
	require.NoError(t, err)
	assert.Equal(t, "Hello world", text)
}

func TestStream_BlockBoundariesEmitNothing(t *testing.T) {
	frames := append([][2]string{}, streamPreamble...)
	frames = append(frames, streamTail()...)

	text, err := startStream(t, sseBody(frames...)).collect(t)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestStream_InStreamErrorAfterOutput(t *testing.T) {
	frames := append([][2]string{}, streamPreamble...)
	frames = append(frames,
		[2]string{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"partial"}}`},
		[2]string{"error", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`},
	)

	text, err := startStream(t, sseBody(frames...)).collect(t)

	// Output already delivered stands; the failure follows it.
	assert.Equal(t, "partial", text)
	var upErr *pipe.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, "overloaded_error", upErr.Code)
}

func TestStream_UpstreamRejectionIsACallError(t *testing.T) {
	transport := &recordingTransport{
		responseStatus: 401,
		responseBody:   `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`,
	}
	p := New(testValves())

	seq, err := p.Stream(context.Background(), pipe.ChatRequest{
		Model:    "anthropic/claude-sonnet-4.5",
		Messages: []pipe.Message{textMessage("user", "hi")},
		Stream:   true,
	}, transport)

	require.Error(t, err)
	assert.Nil(t, seq)
	var upErr *pipe.UpstreamError
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, 401, upErr.StatusCode)
}

func TestStream_ConsumerCanStopEarly(t *testing.T) {
	frames := append([][2]string{}, streamPreamble...)
	frames = append(frames,
		[2]string{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"one"}}`},
		[2]string{"content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"two"}}`},
	)
	frames = append(frames, streamTail()...)

	it := startStream(t, sseBody(frames...))

	var got string
	for chunk, err := range it.seq {
		require.NoError(t, err)
		got = chunk
		break
	}
	assert.Equal(t, "one", got)
}

func TestStream_SendsStreamingRequest(t *testing.T) {
	frames := append([][2]string{}, streamPreamble...)
	frames = append(frames, streamTail()...)
	transport := &recordingTransport{
		responseBody:   sseBody(frames...),
		responseStatus: 200,
		isStreaming:    true,
	}
	p := New(testValves())

	_, err := p.Stream(context.Background(), pipe.ChatRequest{
		Model:    "anthropic/claude-sonnet-4.5",
		Messages: []pipe.Message{textMessage("user", "hi")},
		Stream:   true,
	}, transport)
	require.NoError(t, err)

	assert.Contains(t, string(transport.requestBody), `"stream":true`)
	assert.Equal(t, 1, transport.calls)
}
