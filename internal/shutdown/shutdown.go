// Package shutdown provides ordered graceful shutdown handling for the
// long-running processes built on this module (clusterinspect today,
// any future daemon embedding the manager tomorrow).
package shutdown

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/tokshard/clustermap-go/internal/telemetry/logger"
)

// hook pairs a shutdown action with the component name it belongs to,
// so a failure can be attributed to the right subsystem (metrics
// server, cluster manager, ...) instead of a bare error.
type hook struct {
	name string
	fn   func(context.Context) error
}

// Handler runs registered shutdown hooks, in reverse registration
// order, once a termination signal arrives or Shutdown is called
// directly.
type Handler struct {
	timeout time.Duration
	hooks   []hook
	mu      sync.Mutex
	done    chan struct{}
}

// NewHandler creates a Handler that gives all registered hooks up to
// timeout to finish once shutdown begins.
func NewHandler(timeout time.Duration) *Handler {
	return &Handler{
		timeout: timeout,
		done:    make(chan struct{}),
	}
}

// OnShutdown registers a named shutdown hook. Hooks run in reverse
// registration order, mirroring the order components were started in.
func (h *Handler) OnShutdown(name string, fn func(context.Context) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hooks = append(h.hooks, hook{name: name, fn: fn})
}

// Wait blocks until SIGINT or SIGTERM arrives, then runs every
// registered hook and returns the error of the last hook to fail (every
// hook still runs, so one failing hook never skips the others).
func (h *Handler) Wait() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	return h.Shutdown()
}

// Shutdown runs every registered hook immediately, without waiting for
// a signal. Wait calls this once it receives one.
func (h *Handler) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	h.mu.Lock()
	hooks := make([]hook, len(h.hooks))
	copy(hooks, h.hooks)
	h.mu.Unlock()

	var lastErr error
	for i := len(hooks) - 1; i >= 0; i-- {
		if err := hooks[i].fn(ctx); err != nil {
			logger.Default().Error("shutdown hook failed", "component", hooks[i].name, "error", err)
			lastErr = fmt.Errorf("%s: %w", hooks[i].name, err)
		}
	}

	close(h.done)
	return lastErr
}

// Done returns a channel that closes once Shutdown has run every hook.
func (h *Handler) Done() <-chan struct{} {
	return h.done
}
