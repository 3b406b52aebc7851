package registry

import (
	"context"
	"sync"

	"github.com/tokshard/clustermap-go/internal/cluster/clustererr"
	"github.com/tokshard/clustermap-go/internal/cluster/partition"
	"github.com/tokshard/clustermap-go/internal/cluster/router"
	"github.com/tokshard/clustermap-go/internal/telemetry/logger"
	"github.com/tokshard/clustermap-go/pkg/cmap"
	"github.com/tokshard/clustermap-go/pool"
	"github.com/tokshard/clustermap-go/subscribe"
)

// PoolFactory builds a fresh pool.Pool for a newly discovered master.
// The registry never dials a node itself; it only drives the Pool
// interface the factory hands back.
type PoolFactory func(nodeID partition.NodeID) pool.Pool

// Registry owns every MasterSlaveEntry installed into the router and
// the client-to-entry reverse index used to answer entry_for_client.
type Registry struct {
	router  *router.Router
	newPool PoolFactory
	sub     subscribe.Service
	log     logger.Logger

	mu        sync.RWMutex
	byNodeID  map[partition.NodeID]*MasterSlaveEntry
	byAddress map[pool.NodeAddress]*MasterSlaveEntry

	clientToEntry *cmap.Map[pool.ClientHandle, *MasterSlaveEntry]
}

// New builds a Registry that installs into r and notifies sub of
// subscription changes. sub may be subscribe.NoOp{}.
func New(r *router.Router, newPool PoolFactory, sub subscribe.Service) *Registry {
	return &Registry{
		router:        r,
		newPool:       newPool,
		sub:           sub,
		log:           logger.Default(),
		byNodeID:      make(map[partition.NodeID]*MasterSlaveEntry),
		byAddress:     make(map[pool.NodeAddress]*MasterSlaveEntry),
		clientToEntry: cmap.New[pool.ClientHandle, *MasterSlaveEntry](),
	}
}

// WithLogger overrides the registry's logger.
func (r *Registry) WithLogger(l logger.Logger) *Registry {
	r.log = l
	return r
}

// AddMasterEntry wires a freshly discovered master partition: it builds
// a pool via the factory, sets up the master and its slaves, installs
// the entry into every slot the partition claims, and indexes every
// known member for entry_for_client.
func (r *Registry) AddMasterEntry(ctx context.Context, part *partition.ClusterPartition) (*MasterSlaveEntry, error) {
	if part.MasterFail {
		return nil, clustererr.NewWithAddr(clustererr.Topology, part.MasterAddress.String(), "refusing to onboard a master already flagged failed", nil)
	}

	r.mu.Lock()
	if existing, ok := r.byNodeID[part.NodeID]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.mu.Unlock()

	p := r.newPool(part.NodeID)
	if err := p.SetupMaster(ctx, part.MasterAddress); err != nil {
		return nil, clustererr.NewWithAddr(clustererr.Connect, part.MasterAddress.String(), "setup master", err)
	}

	if len(part.FailedSlaveAddresses) > 0 {
		if err := p.InitSlaveBalancer(ctx, part.FailedSlaveAddresses, ""); err != nil {
			return nil, clustererr.NewWithAddr(clustererr.Connect, part.MasterAddress.String(), "init slave balancer", err)
		}
	}

	for addr := range part.SlaveAddresses {
		if _, failed := part.FailedSlaveAddresses[addr]; failed {
			continue
		}
		if err := p.AddSlave(ctx, addr, true, ""); err != nil {
			r.log.Warn("failed to add slave", "master", part.MasterAddress.String(), "slave", addr.String(), "error", err)
		}
	}

	entry := newEntry(part.NodeID, part.MasterAddress, p, r.onZero)

	r.mu.Lock()
	r.byNodeID[part.NodeID] = entry
	r.byAddress[part.MasterAddress] = entry
	r.mu.Unlock()

	r.indexMembers(entry)

	for _, slot := range part.Slots.Slots() {
		r.router.Install(slot, entry)
	}

	return entry, nil
}

// RemoveEntry evicts slot from the router, releasing whatever entry
// owned it. If that was the entry's last reference, onZero tears it
// down.
func (r *Registry) RemoveEntry(slot int) {
	r.router.Evict(slot)
}

// EntryForNodeID returns the entry currently registered for a master
// node ID, if any.
func (r *Registry) EntryForNodeID(id partition.NodeID) (*MasterSlaveEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byNodeID[id]
	return e, ok
}

// EntryForAddress returns the entry currently registered for a master
// address, if any.
func (r *Registry) EntryForAddress(addr pool.NodeAddress) (*MasterSlaveEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byAddress[addr]
	return e, ok
}

// EntryForClient resolves a client handle to the entry that owns it,
// first via the reverse index and, on a miss, by scanning registered
// entries for a member whose pool reports that handle.
func (r *Registry) EntryForClient(client pool.ClientHandle) (*MasterSlaveEntry, bool) {
	if e, ok := r.clientToEntry.Get(client); ok {
		return e, true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.byNodeID {
		for _, addr := range e.pool.AllMembers() {
			h, ok := e.pool.GetEntry(addr)
			if !ok {
				continue
			}
			if h == client {
				r.clientToEntry.Set(client, e)
				return e, true
			}
		}
	}
	return nil, false
}

// indexMembers registers every member address's client handle against
// entry in the reverse index.
func (r *Registry) indexMembers(entry *MasterSlaveEntry) {
	for _, addr := range entry.pool.AllMembers() {
		if h, ok := entry.pool.GetEntry(addr); ok {
			r.clientToEntry.Set(h, entry)
		}
	}
}

// onZero is the teardown callback run when an entry's refcount drops
// to zero: it marks every pool member down, shuts the pool down,
// detaches subscriptions bound to it, and drops it from both indexes.
func (r *Registry) onZero(entry *MasterSlaveEntry) {
	for _, addr := range entry.pool.AllMembers() {
		if addr == entry.MasterAddress {
			if err := entry.pool.MasterDown(); err != nil {
				r.log.Warn("master_down failed", "master", addr.String(), "error", err)
			}
			continue
		}
		if err := entry.pool.NodeDown(addr); err != nil {
			r.log.Warn("node_down failed", "addr", addr.String(), "error", err)
		}
	}

	entry.pool.ShutdownAsync()
	r.sub.Remove(entry)

	r.mu.Lock()
	delete(r.byNodeID, entry.NodeID)
	delete(r.byAddress, entry.MasterAddress)
	r.mu.Unlock()

	for _, addr := range entry.pool.AllMembers() {
		if h, ok := entry.pool.GetEntry(addr); ok {
			r.clientToEntry.Delete(h)
		}
	}

	r.log.Info("entry torn down", "node_id", string(entry.NodeID), "master", entry.MasterAddress.String())
}

// Count returns the number of live master entries, for tests and metrics.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byNodeID)
}

// ShutdownAll evicts every covered slot, driving every live entry's
// refcount to zero and tearing each one down through onZero. Used by
// the manager's lifecycle shutdown, not by the reconciliation tick.
func (r *Registry) ShutdownAll() {
	for _, slot := range r.router.CoveredSlots() {
		r.router.Evict(slot)
	}
}
