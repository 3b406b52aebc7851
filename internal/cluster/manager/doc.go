// Package manager composes the topology manager's components —
// bootstrap, router, registry, monitor, and slot math — into the
// surface a client library consumes: slot and client lookups on the
// hot path, key-to-slot derivation, NAT-mapped addresses, and
// lifecycle control.
//
// Manager owns startup and shutdown ordering. It never duplicates the
// logic in bootstrap or monitor; it only sequences their calls and
// forwards the read APIs a request needs.
package manager
