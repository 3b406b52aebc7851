// Package pool defines the capability interface the topology manager
// drives to keep per-node connection pools in sync with the routing
// table. The manager never dials sockets itself; it is a consumer of
// this interface, implemented elsewhere in the client library.
package pool

import (
	"context"
	"fmt"
)

// NodeAddress identifies a cluster node by host and port.
type NodeAddress struct {
	Host string
	Port int
	TLS  bool
}

func (a NodeAddress) String() string {
	scheme := "redis"
	if a.TLS {
		scheme = "rediss"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, a.Host, a.Port)
}

// FreezeReason records who initiated a slave up/down transition.
type FreezeReason int

const (
	// Manager indicates the topology manager itself initiated the
	// transition during reconciliation.
	Manager FreezeReason = iota
	// External indicates the caller, not the manager, requested it.
	External
)

func (r FreezeReason) String() string {
	if r == External {
		return "external"
	}
	return "manager"
}

// ClientHandle is an opaque, comparable reference to a pool's master
// client connection. It is the key used by the registry's
// client-to-entry reverse index.
type ClientHandle any

// Pool is the capability interface a per-node connection pool must
// satisfy for the topology manager to drive its lifecycle.
type Pool interface {
	SetupMaster(ctx context.Context, addr NodeAddress) error
	InitSlaveBalancer(ctx context.Context, failed map[NodeAddress]struct{}, sni string) error
	AddSlave(ctx context.Context, addr NodeAddress, readOnly bool, sni string) error
	HasSlave(addr NodeAddress) bool
	SlaveUp(addr NodeAddress, reason FreezeReason) error
	SlaveDown(addr NodeAddress, reason FreezeReason) error
	MasterDown() error
	NodeDown(member NodeAddress) error
	ShutdownAsync()
	GetEntry(addr NodeAddress) (ClientHandle, bool)
	AllMembers() []NodeAddress
}
