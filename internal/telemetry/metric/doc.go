// Package metric provides Prometheus metrics for the cluster topology
// manager.
//
// Each manager instance owns a private registry rather than publishing
// to the global default, so a process that embeds more than one
// manager never collides on collector names:
//
//   - registry.go: registry construction and metric definitions
//   - handler.go: HTTP exposition
//
// @design DS-0402
package metric
