package app

import (
	"sync/atomic"

	"github.com/cmdren/anthropic-pipe/internal/server"
)

// Health tracks the application's readiness for the probe endpoints.
// Safe for concurrent use.
type Health struct {
	ready atomic.Bool
}

// Compile-time check that Health satisfies the server's readiness contract.
var _ server.ReadinessChecker = (*Health)(nil)

// NewHealth returns a Health that reports not ready until flipped.
func NewHealth() *Health {
	return &Health{}
}

// SetReady updates the readiness state.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports the current readiness state.
func (h *Health) IsReady() bool {
	return h.ready.Load()
}
