// Package server exposes the pipe over HTTP the way a chat host consumes
// it: a chat-completions endpoint (buffered JSON or SSE), the model table,
// and health probes.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/cmdren/anthropic-pipe/internal/observability/middleware"
	"github.com/cmdren/anthropic-pipe/internal/pipe"
)

// maxRequestBytes bounds inbound request bodies. Sized for the 100 MiB
// aggregate image ceiling plus base64 overhead and message text.
const maxRequestBytes = 150 << 20

// ReadinessChecker reports whether the application can serve traffic.
type ReadinessChecker interface {
	IsReady() bool
}

// Server is the host-facing HTTP server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
}

// New assembles the route table and middleware chain around the given pipe.
func New(p pipe.Pipe, checker ReadinessChecker) *Server {
	mux := http.NewServeMux()
	mux.Handle("POST /v1/chat/completions", &ChatCompletionsHandler{Pipe: p})
	mux.Handle("GET /v1/models", modelsHandler(p))
	mux.Handle("GET /health/live", livenessHandler())
	mux.Handle("GET /health/ready", readinessHandler(checker))

	handler := applyMiddlewares(mux,
		middleware.RequestIDGeneration,
		middleware.TraceContextExtraction,
		middleware.Logging(slog.Default()),
		middleware.RequestIDPropagation,
		Recovery,
		RequestSizeLimit(maxRequestBytes),
	)

	return &Server{handler: handler}
}

// Start begins serving on addr. The returned channel delivers the terminal
// serve error (nil on graceful shutdown); startup failures are returned
// directly.
func (s *Server) Start(ctx context.Context, addr string) (<-chan error, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: SSE responses are open-ended and bounded by
		// client disconnect or shutdown instead.
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "server listening", "addr", listener.Addr().String())
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	return errCh, nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
