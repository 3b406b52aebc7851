package monitor

import (
	"context"
	"sync"

	"github.com/tokshard/clustermap-go/internal/cluster/partition"
	"github.com/tokshard/clustermap-go/internal/cluster/slotmath"
	"github.com/tokshard/clustermap-go/pool"
)

func clonePartition(p *partition.ClusterPartition) *partition.ClusterPartition {
	slaves := make(map[pool.NodeAddress]struct{}, len(p.SlaveAddresses))
	for a := range p.SlaveAddresses {
		slaves[a] = struct{}{}
	}
	failed := make(map[pool.NodeAddress]struct{}, len(p.FailedSlaveAddresses))
	for a := range p.FailedSlaveAddresses {
		failed[a] = struct{}{}
	}
	ranges := make([]partition.SlotRange, len(p.SlotRanges))
	copy(ranges, p.SlotRanges)

	return &partition.ClusterPartition{
		NodeID:               p.NodeID,
		Type:                 p.Type,
		MasterAddress:        p.MasterAddress,
		MasterFail:           p.MasterFail,
		SlaveAddresses:       slaves,
		FailedSlaveAddresses: failed,
		SlotRanges:           ranges,
		Slots:                p.Slots,
	}
}

func cloneCurrentLocked(current map[partition.NodeID]*partition.ClusterPartition) map[partition.NodeID]*partition.ClusterPartition {
	out := make(map[partition.NodeID]*partition.ClusterPartition, len(current))
	for id, p := range current {
		out[id] = clonePartition(p)
	}
	return out
}

func indexByNodeID(parts []*partition.ClusterPartition) map[partition.NodeID]*partition.ClusterPartition {
	out := make(map[partition.NodeID]*partition.ClusterPartition, len(parts))
	for _, p := range parts {
		out[p.NodeID] = p
	}
	return out
}

func indexByAddress(parts map[partition.NodeID]*partition.ClusterPartition) map[pool.NodeAddress]*partition.ClusterPartition {
	out := make(map[pool.NodeAddress]*partition.ClusterPartition, len(parts))
	for _, p := range parts {
		out[p.MasterAddress] = p
	}
	return out
}

func slotOwners(parts []*partition.ClusterPartition) map[int]*partition.ClusterPartition {
	out := make(map[int]*partition.ClusterPartition, slotmath.SlotCount)
	for _, p := range parts {
		for _, slot := range p.Slots.Slots() {
			out[slot] = p
		}
	}
	return out
}

// changeMaster ensures an entry exists for the new owning partition and
// installs it for slot, so that a failed-over slot points at its new
// master even before the rest of the new master's slots are onboarded.
func (m *Monitor) changeMaster(ctx context.Context, slot int, owner *partition.ClusterPartition) error {
	entry, ok := m.registry.EntryForAddress(owner.MasterAddress)
	if !ok {
		var err error
		entry, err = m.registry.AddMasterEntry(ctx, owner)
		if err != nil {
			return err
		}
	}
	m.router.Install(slot, entry)
	return nil
}

// masterChange implements 4.E.1: elect new masters for failed-over
// slots, then onboard any wholly new master partitions.
func (m *Monitor) masterChange(
	ctx context.Context,
	working map[partition.NodeID]*partition.ClusterPartition,
	newParts []*partition.ClusterPartition,
	newByID map[partition.NodeID]*partition.ClusterPartition,
	changedSlots map[int]struct{},
) {
	lastByURI := indexByAddress(working)
	owners := slotOwners(newParts)

	mastersElected := make(map[pool.NodeAddress]struct{})
	var addedPartitions []*partition.ClusterPartition

	for _, newPart := range newParts {
		if newPart.Slots.Count() == 0 {
			continue
		}

		currentPart, hasCurrent := lastByURI[newPart.MasterAddress]
		if hasCurrent && newPart.MasterFail {
			touchedOwners := make(map[partition.NodeID]*partition.ClusterPartition)
			oldID := currentPart.NodeID
			oldAddr := currentPart.MasterAddress

			for _, slot := range currentPart.Slots.Slots() {
				owner, ok := owners[slot]
				if !ok || owner.MasterAddress == oldAddr {
					continue
				}

				if err := m.changeMaster(ctx, slot, owner); err != nil {
					m.log.Warn("change_master failed", "slot", slot, "candidate", owner.MasterAddress.String(), "error", err)
					continue
				}
				currentPart.MasterAddress = owner.MasterAddress
				mastersElected[owner.MasterAddress] = struct{}{}
				changedSlots[slot] = struct{}{}
				touchedOwners[owner.NodeID] = owner
			}

			// The old node ID is no longer the owner of anything; replace
			// its entry in the working set with the new owners so later
			// passes (keyed by node ID) see the post-failover topology.
			if len(touchedOwners) > 0 {
				delete(working, oldID)
				for id, owner := range touchedOwners {
					working[id] = clonePartition(owner)
				}
			}
			continue
		}

		if !hasCurrent && !newPart.MasterFail {
			addedPartitions = append(addedPartitions, newPart)
		}
	}

	var toAdd []*partition.ClusterPartition
	for _, p := range addedPartitions {
		if _, elected := mastersElected[p.MasterAddress]; elected {
			continue
		}
		toAdd = append(toAdd, p)
	}

	var (
		wg      sync.WaitGroup
		resMu   sync.Mutex
		applied []*partition.ClusterPartition
	)
	for _, p := range toAdd {
		wg.Add(1)
		go func(p *partition.ClusterPartition) {
			defer wg.Done()
			if _, err := m.registry.AddMasterEntry(ctx, p); err != nil {
				m.log.Error("add_master_entry failed", "master", p.MasterAddress.String(), "error", err)
				return
			}
			resMu.Lock()
			applied = append(applied, p)
			resMu.Unlock()
		}(p)
	}
	wg.Wait()

	for _, p := range applied {
		working[p.NodeID] = clonePartition(p)
	}
}

// slaveChange implements 4.E.2: reconcile each matched partition's
// slave set and failed-slave markers against the entry's pool.
func (m *Monitor) slaveChange(ctx context.Context, working map[partition.NodeID]*partition.ClusterPartition, newParts []*partition.ClusterPartition) {
	currentByURI := indexByAddress(working)

	for _, newPart := range newParts {
		currentPart, ok := currentByURI[newPart.MasterAddress]
		if !ok {
			continue
		}
		entry, ok := m.registry.EntryForAddress(newPart.MasterAddress)
		if !ok {
			continue
		}
		p := entry.Pool()

		for addr := range currentPart.SlaveAddresses {
			if _, stillThere := newPart.SlaveAddresses[addr]; !stillThere {
				if err := p.SlaveDown(addr, pool.Manager); err != nil {
					m.log.Warn("slave_down failed", "addr", addr.String(), "error", err)
				}
				delete(currentPart.SlaveAddresses, addr)
				delete(currentPart.FailedSlaveAddresses, addr)
			}
		}

		for addr := range newPart.SlaveAddresses {
			if _, already := currentPart.SlaveAddresses[addr]; already {
				continue
			}
			if _, hasConn := p.GetEntry(addr); hasConn {
				if err := p.SlaveUp(addr, pool.Manager); err != nil {
					m.log.Warn("slave_up failed", "addr", addr.String(), "error", err)
				}
			} else if err := p.AddSlave(ctx, addr, true, ""); err != nil {
				m.log.Warn("add_slave failed", "addr", addr.String(), "error", err)
				continue
			}
			currentPart.SlaveAddresses[addr] = struct{}{}
		}

		for addr := range currentPart.FailedSlaveAddresses {
			_, newlyAdded := newPart.SlaveAddresses[addr]
			_, stillFailed := newPart.FailedSlaveAddresses[addr]
			if !stillFailed && newlyAdded {
				if err := p.SlaveUp(addr, pool.Manager); err != nil {
					m.log.Warn("slave_up failed", "addr", addr.String(), "error", err)
				}
				delete(currentPart.FailedSlaveAddresses, addr)
			}
		}
		for addr := range newPart.FailedSlaveAddresses {
			if _, wasFailed := currentPart.FailedSlaveAddresses[addr]; wasFailed {
				continue
			}
			if err := p.SlaveDown(addr, pool.Manager); err != nil {
				m.log.Warn("slave_down failed", "addr", addr.String(), "error", err)
			}
			if err := p.NodeDown(addr); err != nil {
				m.log.Warn("node_down failed", "addr", addr.String(), "error", err)
			}
			currentPart.FailedSlaveAddresses[addr] = struct{}{}
		}
	}
}

// slotMigration implements 4.E.3: match partitions by stable node ID
// and move individual slots between entries without touching masters
// or slaves.
func (m *Monitor) slotMigration(
	working map[partition.NodeID]*partition.ClusterPartition,
	newParts []*partition.ClusterPartition,
	newByID map[partition.NodeID]*partition.ClusterPartition,
	changedSlots map[int]struct{},
) {
	for id, newPart := range newByID {
		currentPart, ok := working[id]
		if !ok {
			continue
		}
		entry, ok := m.registry.EntryForNodeID(id)
		if !ok {
			continue
		}

		added := newPart.Slots.Difference(currentPart.Slots)
		removed := currentPart.Slots.Difference(newPart.Slots)

		for _, slot := range added.Slots() {
			m.router.Install(slot, entry)
			changedSlots[slot] = struct{}{}
		}
		for _, slot := range removed.Slots() {
			// Another partition processed earlier in this pass may already
			// have installed its entry here; only evict our own.
			if m.router.EntryForSlot(slot) == entry {
				m.registry.RemoveEntry(slot)
			}
			changedSlots[slot] = struct{}{}
		}
		if added.Count() > 0 || removed.Count() > 0 {
			currentPart.SlotRanges = newPart.SlotRanges
			currentPart.Slots = newPart.Slots
		}
	}
}

// slotCoverageChange implements 4.E.4: a global cross-check that
// catches orphaned or newly introduced slots the per-node migration
// pass could miss.
func (m *Monitor) slotCoverageChange(
	working map[partition.NodeID]*partition.ClusterPartition,
	newParts []*partition.ClusterPartition,
	changedSlots map[int]struct{},
) {
	newTotal := 0
	for _, p := range newParts {
		newTotal += p.Slots.Count()
	}
	if newTotal == m.router.Covered() && newTotal == slotmath.SlotCount {
		return
	}

	owners := slotOwners(newParts)

	for _, slot := range m.router.CoveredSlots() {
		if _, claimed := owners[slot]; !claimed {
			m.registry.RemoveEntry(slot)
			changedSlots[slot] = struct{}{}
		}
	}

	for slot, owner := range owners {
		if m.router.EntryForSlot(slot) != nil {
			continue
		}
		if entry, ok := m.registry.EntryForAddress(owner.MasterAddress); ok {
			m.router.Install(slot, entry)
			changedSlots[slot] = struct{}{}
		}
	}
}
