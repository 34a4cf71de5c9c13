// Package app orchestrates the lifecycle of the pipe server: assemble the
// valves, the adapter, and the HTTP surface; run until shutdown; drain.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cmdren/anthropic-pipe/internal/config"
	"github.com/cmdren/anthropic-pipe/internal/pipe/anthropicclaude"
	"github.com/cmdren/anthropic-pipe/internal/server"
)

// shutdownTimeout bounds the drain phase after shutdown is triggered.
const shutdownTimeout = 5 * time.Second

// App owns the server and its readiness state.
type App struct {
	valves config.Valves
	server *server.Server
	health *Health
}

// New assembles the application from resolved valves.
func New(valves config.Valves) *App {
	health := NewHealth()
	return &App{
		valves: valves,
		server: server.New(anthropicclaude.New(valves), health),
		health: health,
	}
}

// Start starts the server and blocks until shutdown is triggered by ctx or
// by a runtime error, then drains with a bounded timeout.
func (a *App) Start(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	var shutdownFuncs []func(context.Context) error

	slog.InfoContext(gCtx, "starting pipe server", "addr", a.valves.ListenAddr)
	serverErrCh, err := a.server.Start(gCtx, a.valves.ListenAddr)
	if err != nil {
		return fmt.Errorf("server startup failed: %w", err)
	}
	shutdownFuncs = append(shutdownFuncs, a.server.Shutdown)

	a.health.SetReady(true)
	if a.valves.APIKey == "" {
		slog.WarnContext(gCtx, "no API key configured; chat calls will fail until ANTHROPIC_API_KEY is set")
	}

	// Monitor runtime errors; errgroup cancels the context on the first.
	g.Go(func() error {
		select {
		case err := <-serverErrCh:
			if err != nil {
				slog.ErrorContext(gCtx, "server runtime error", "error", err)
				return fmt.Errorf("server: %w", err)
			}
			return nil
		case <-gCtx.Done():
			return nil
		}
	})

	runtimeErr := g.Wait()

	a.health.SetReady(false)
	slog.InfoContext(gCtx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	var errs []error
	if runtimeErr != nil {
		errs = append(errs, fmt.Errorf("runtime: %w", runtimeErr))
	}

	for i := len(shutdownFuncs) - 1; i >= 0; i-- {
		if err := shutdownFuncs[i](shutdownCtx); err != nil {
			slog.ErrorContext(shutdownCtx, "shutdown failed", "error", err)
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	slog.Info("application stopped")
	return nil
}
