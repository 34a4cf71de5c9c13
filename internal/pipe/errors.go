package pipe

import (
	"errors"
	"fmt"
	"log/slog"
)

// The error taxonomy. Every failure on the call path is classified into one
// of these types before it reaches the host boundary; the boundary converts
// it to a single user-visible string (UserMessage) plus a diagnostic log
// entry (LogAttrs). None of them may escape as a panic.

// ConfigurationError reports a missing or invalid valve, detected before any
// network attempt.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// ValidationError reports a malformed request: an unrecognized model alias,
// an image size ceiling exceeded, conflicting sampling parameters, or an
// out-of-domain generation parameter.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid request: " + e.Reason
}

// ImageFetchError reports a remote image that could not be retrieved. The
// offending URL is always identified; the image is never silently dropped.
type ImageFetchError struct {
	URL string
	Err error
}

func (e *ImageFetchError) Error() string {
	return fmt.Sprintf("failed to fetch image %s: %v", e.URL, e.Err)
}

func (e *ImageFetchError) Unwrap() error { return e.Err }

// ConnectTimeoutError reports a timeout during the dial phase, before any
// bytes were exchanged with the upstream API.
type ConnectTimeoutError struct {
	Err error
}

func (e *ConnectTimeoutError) Error() string {
	return fmt.Sprintf("connection timeout: %v", e.Err)
}

func (e *ConnectTimeoutError) Unwrap() error { return e.Err }

// ReadTimeoutError reports a stall after the connection was established,
// while waiting for response headers or body.
type ReadTimeoutError struct {
	Err error
}

func (e *ReadTimeoutError) Error() string {
	return fmt.Sprintf("request timeout: %v", e.Err)
}

func (e *ReadTimeoutError) Unwrap() error { return e.Err }

// UpstreamError reports a non-2xx upstream status or an in-stream error
// event. StatusCode is zero when the failure carried no HTTP status (network
// errors, in-stream error events).
type UpstreamError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("upstream error (HTTP %d): %s", e.StatusCode, e.Message)
	}
	return "upstream error: " + e.Message
}

// ParseError reports malformed JSON in an upstream response body or event
// frame.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed upstream response: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// UserMessage converts any call-path failure into the single descriptive
// string returned to the host in lieu of completion text. The prefix is
// uniform so hosts can recognize failures textually.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		cfgErr   *ConfigurationError
		valErr   *ValidationError
		imgErr   *ImageFetchError
		connErr  *ConnectTimeoutError
		readErr  *ReadTimeoutError
		upErr    *UpstreamError
		parseErr *ParseError
	)

	switch {
	case errors.As(err, &cfgErr):
		return "Error: " + cfgErr.Reason
	case errors.As(err, &valErr):
		return "Error: " + valErr.Reason
	case errors.As(err, &imgErr):
		return fmt.Sprintf("Error: failed to fetch image %s: %v", imgErr.URL, imgErr.Err)
	case errors.As(err, &connErr):
		return "Error: connection timeout while contacting the Anthropic API"
	case errors.As(err, &readErr):
		return "Error: request timeout while waiting for the Anthropic API"
	case errors.As(err, &upErr):
		if upErr.StatusCode > 0 {
			return fmt.Sprintf("Error: HTTP %d: %s", upErr.StatusCode, upErr.Message)
		}
		return "Error: request failed: " + upErr.Message
	case errors.As(err, &parseErr):
		return "Error: received a malformed response from the Anthropic API"
	default:
		return "Error: " + err.Error()
	}
}

// LogAttrs returns structured diagnostic attributes for a failure: the phase
// it occurred in and, where known, the upstream status. The API key never
// appears here.
func LogAttrs(err error) []slog.Attr {
	attrs := []slog.Attr{slog.String("error", err.Error())}

	var (
		cfgErr   *ConfigurationError
		valErr   *ValidationError
		imgErr   *ImageFetchError
		connErr  *ConnectTimeoutError
		readErr  *ReadTimeoutError
		upErr    *UpstreamError
		parseErr *ParseError
	)

	switch {
	case errors.As(err, &cfgErr):
		attrs = append(attrs, slog.String("phase", "configuration"))
	case errors.As(err, &valErr):
		attrs = append(attrs, slog.String("phase", "validation"))
	case errors.As(err, &imgErr):
		attrs = append(attrs, slog.String("phase", "image_fetch"), slog.String("image_url", imgErr.URL))
	case errors.As(err, &connErr):
		attrs = append(attrs, slog.String("phase", "connect"))
	case errors.As(err, &readErr):
		attrs = append(attrs, slog.String("phase", "read"))
	case errors.As(err, &upErr):
		attrs = append(attrs,
			slog.String("phase", "upstream"),
			slog.Int("status_code", upErr.StatusCode),
			slog.String("upstream_code", upErr.Code))
	case errors.As(err, &parseErr):
		attrs = append(attrs, slog.String("phase", "parse"))
	default:
		attrs = append(attrs, slog.String("phase", "unknown"))
	}

	return attrs
}
