package anthropicclaude

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/cmdren/anthropic-pipe/internal/pipe"
)

// streamingErrorPrefix is how the upstream SDK wraps an in-stream error
// event's JSON payload into an error string.
const streamingErrorPrefix = "received error while streaming: "

// classifyError folds every upstream failure shape into the pipe taxonomy.
// Context cancellation passes through untouched: an abandoned call is the
// caller's decision, not a failure to report.
func classifyError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.Canceled) {
		return err
	}

	// Structured API error: non-2xx status with an error body.
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		code, message := parseErrorBody(apiErr.RawJSON())
		if message == "" {
			message = apiErr.Error()
		}
		return &pipe.UpstreamError{
			StatusCode: apiErr.StatusCode,
			Code:       code,
			Message:    message,
		}
	}

	// In-stream error event: the SDK flattens it into the error string.
	if jsonStr, ok := strings.CutPrefix(err.Error(), streamingErrorPrefix); ok {
		code, message := parseErrorBody(jsonStr)
		if message == "" {
			message = truncatePayload(jsonStr, 200)
		}
		return &pipe.UpstreamError{Code: code, Message: message}
	}

	if timeoutErr := classifyTimeout(err); timeoutErr != nil {
		return timeoutErr
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &pipe.ParseError{Err: err}
	}

	// Remaining transport failures (connection refused, DNS, TLS) carry no
	// HTTP status.
	return &pipe.UpstreamError{Message: err.Error()}
}

// classifyTimeout distinguishes the two timeout phases: a dial-phase timeout
// means the upstream was never reached; anything after that is a read stall.
// Returns nil for non-timeout errors.
func classifyTimeout(err error) error {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		if opErr.Timeout() {
			return &pipe.ConnectTimeoutError{Err: err}
		}
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &pipe.ReadTimeoutError{Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &pipe.ReadTimeoutError{Err: err}
	}

	// http.Client deadline exhaustion wraps the cause in plain text.
	if strings.Contains(err.Error(), "Client.Timeout exceeded") ||
		strings.Contains(err.Error(), "timeout awaiting response headers") {
		return &pipe.ReadTimeoutError{Err: err}
	}

	return nil
}

// parseErrorBody extracts type and message from an Anthropic error body
// ({"type":"error","error":{"type":...,"message":...}}).
func parseErrorBody(jsonStr string) (code, message string) {
	var body struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal([]byte(jsonStr), &body); err != nil {
		return "", ""
	}
	return body.Error.Type, body.Error.Message
}

// truncatePayload limits diagnostic payload excerpts in log output.
func truncatePayload(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return fmt.Sprintf("%s... (%d bytes total)", s[:maxLen], len(s))
}
