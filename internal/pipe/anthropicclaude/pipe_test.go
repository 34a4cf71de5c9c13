package anthropicclaude

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cmdren/anthropic-pipe/internal/config"
)

// testValves returns a fully populated valve set for adapter tests.
func testValves() config.Valves {
	return config.Valves{
		APIKey:            "sk-ant-test",
		APIVersion:        "2023-06-01",
		MaxTokens:         4096,
		Temperature:       1.0,
		RequestTimeout:    60 * time.Second,
		ConnectionTimeout: 3 * time.Second,
		ListenAddr:        "127.0.0.1:0",
		BaseURL:           "https://api.anthropic.com",
	}
}

// recordingTransport returns a pre-recorded response without network calls
// and captures the request body for payload assertions.
type recordingTransport struct {
	responseBody   string
	responseStatus int
	isStreaming    bool

	calls       int
	requestBody []byte
}

func (t *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.calls++
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		t.requestBody = body
	}

	contentType := "application/json"
	if t.isStreaming {
		contentType = "text/event-stream"
	}

	return &http.Response{
		StatusCode: t.responseStatus,
		Body:       io.NopCloser(strings.NewReader(t.responseBody)),
		Header:     http.Header{"Content-Type": []string{contentType}},
		Request:    req,
	}, nil
}

// failingTransport counts calls and fails them; used to assert that a code
// path performs zero network calls.
type failingTransport struct {
	calls int
}

func (t *failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	t.calls++
	return nil, errors.New("unexpected network call")
}

// minimalMessageBody is a valid buffered response for tests that only care
// about the request side.
const minimalMessageBody = `{
	"id": "msg_test",
	"type": "message",
	"role": "assistant",
	"model": "claude-sonnet-4-5-20250929",
	"content": [{"type": "text", "text": "ok"}],
	"stop_reason": "end_turn",
	"usage": {"input_tokens": 1, "output_tokens": 1}
}`
