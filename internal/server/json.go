package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/cmdren/anthropic-pipe/internal/pipe"
)

// writeJSON writes a JSON response with the given status code.
// Logs encoding failures internally using the provided context.
func writeJSON(ctx context.Context, w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	// Headers and status are written before encoding to avoid buffering.
	// If encoding fails, the client may receive a partial response.
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.ErrorContext(ctx, "failed to encode JSON response", "error", err)
	}
}

// writePipeError converts a call-path failure into an error response with
// the status its taxonomy class implies, and logs the diagnostic entry.
func writePipeError(ctx context.Context, w http.ResponseWriter, err error) {
	slog.LogAttrs(ctx, slog.LevelError, "request failed", pipe.LogAttrs(err)...)

	status, errType := errorStatus(err)
	writeJSON(ctx, w, &errorResponse{
		Err: errorDetail{
			Message: pipe.UserMessage(err),
			Type:    errType,
		},
	}, status)
}

// errorStatus maps the error taxonomy to an HTTP status and a
// chat-completions error type.
func errorStatus(err error) (int, string) {
	var (
		cfgErr  *pipe.ConfigurationError
		valErr  *pipe.ValidationError
		imgErr  *pipe.ImageFetchError
		connErr *pipe.ConnectTimeoutError
		readErr *pipe.ReadTimeoutError
		upErr   *pipe.UpstreamError
	)

	switch {
	case errors.As(err, &valErr), errors.As(err, &imgErr):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.As(err, &cfgErr):
		return http.StatusInternalServerError, "api_error"
	case errors.As(err, &connErr), errors.As(err, &readErr):
		return http.StatusGatewayTimeout, "api_error"
	case errors.As(err, &upErr):
		return upstreamStatus(upErr)
	default:
		return http.StatusBadGateway, "api_error"
	}
}

// upstreamStatus passes a real upstream status through and derives the error
// type from it; statusless upstream failures read as a bad gateway.
func upstreamStatus(upErr *pipe.UpstreamError) (int, string) {
	if upErr.StatusCode <= 0 {
		return http.StatusBadGateway, "api_error"
	}

	switch upErr.StatusCode {
	case http.StatusBadRequest:
		return upErr.StatusCode, "invalid_request_error"
	case http.StatusUnauthorized, http.StatusForbidden:
		return upErr.StatusCode, "authentication_error"
	case http.StatusTooManyRequests:
		return upErr.StatusCode, "rate_limit_error"
	default:
		return upErr.StatusCode, "api_error"
	}
}
