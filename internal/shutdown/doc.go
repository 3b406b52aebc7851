// Package shutdown provides graceful shutdown for the cluster topology manager.
//
// This package handles process termination signals:
//
//   - Signal handling (SIGINT, SIGTERM)
//   - A timeout-bounded context passed to every hook (hooks are not
//     interrupted when it expires)
//   - Cleanup callback registration
//   - Shutdown coordination
//
// Usage:
//
//	h := shutdown.NewHandler(10 * time.Second)
//	h.OnShutdown("metrics", srv.Shutdown)
//	err := h.Wait() // blocks until SIGINT/SIGTERM, then runs the hooks
//
// @design DS-0501
package shutdown
