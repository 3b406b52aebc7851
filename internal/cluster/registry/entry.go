package registry

import (
	"sync/atomic"

	"github.com/tokshard/clustermap-go/internal/cluster/partition"
	"github.com/tokshard/clustermap-go/pool"
)

// MasterSlaveEntry is a refcounted handle on one logical master and its
// replicas. The router holds a reference for every slot it routes to
// this entry; the registry's client-to-entry index holds none. When the
// last reference drops, onZero runs exactly once.
type MasterSlaveEntry struct {
	NodeID        partition.NodeID
	MasterAddress pool.NodeAddress

	pool pool.Pool
	refs atomic.Int32

	onZero func(*MasterSlaveEntry)
}

func newEntry(id partition.NodeID, addr pool.NodeAddress, p pool.Pool, onZero func(*MasterSlaveEntry)) *MasterSlaveEntry {
	return &MasterSlaveEntry{
		NodeID:        id,
		MasterAddress: addr,
		pool:          p,
		onZero:        onZero,
	}
}

// Pool returns the underlying connection pool this entry drives.
func (e *MasterSlaveEntry) Pool() pool.Pool {
	return e.pool
}

// IncRef implements router.Entry.
func (e *MasterSlaveEntry) IncRef() {
	e.refs.Add(1)
}

// Release implements router.Entry. It is safe to call concurrently;
// onZero fires exactly once, on whichever call observes the refcount
// reach zero.
func (e *MasterSlaveEntry) Release() {
	if e.refs.Add(-1) == 0 && e.onZero != nil {
		e.onZero(e)
	}
}

// RefCount reports the current reference count, for tests and metrics.
func (e *MasterSlaveEntry) RefCount() int32 {
	return e.refs.Load()
}
