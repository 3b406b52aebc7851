package router

import (
	"sync/atomic"

	"github.com/tokshard/clustermap-go/internal/cluster/slotmath"
)

// Entry is anything the registry installs into a slot cell. The router
// never constructs or inspects one beyond refcounting it; ownership and
// teardown semantics live entirely with the registry's implementation.
type Entry interface {
	IncRef()
	Release()
}

// cell wraps an Entry so the zero value of atomic.Pointer[cell] (nil)
// unambiguously means "uncovered slot", even for an Entry that is
// itself an interface value.
type cell struct {
	entry Entry
}

// Router is the lock-free slot-to-entry routing table. Reads never
// block a writer and writers never block a reader; the only
// synchronization is the atomic pointer swap on each cell.
//
// Router does not serialize its own writers. That guarantee comes from
// the caller: the topology monitor runs at most one reconciliation
// tick at a time, so Install and Evict are never called concurrently
// for the same slot.
type Router struct {
	cells [slotmath.SlotCount]atomic.Pointer[cell]
}

// New returns an empty Router with every slot uncovered.
func New() *Router {
	return &Router{}
}

// EntryForSlot returns the entry currently routing slot, or nil if the
// slot is uncovered. This is the hot path: one atomic load, no lock.
func (r *Router) EntryForSlot(slot int) Entry {
	c := r.cells[slot].Load()
	if c == nil {
		return nil
	}
	return c.entry
}

// Install publishes entry as the owner of slot, replacing and
// releasing whatever was previously installed there. The new entry's
// reference is taken before the old one is swapped out, so a
// concurrent reader can never observe a slot pointing at a released
// entry.
func (r *Router) Install(slot int, entry Entry) {
	if cur := r.cells[slot].Load(); cur != nil && cur.entry == entry {
		return
	}
	entry.IncRef()
	old := r.cells[slot].Swap(&cell{entry: entry})
	if old != nil {
		old.entry.Release()
	}
}

// Evict clears slot, releasing whatever entry was installed there. It
// is a no-op if the slot was already uncovered.
func (r *Router) Evict(slot int) {
	old := r.cells[slot].Swap(nil)
	if old != nil {
		old.entry.Release()
	}
}

// Covered returns the number of slots with an entry currently
// installed. It walks the full table and is meant for periodic
// reporting, not the hot path.
func (r *Router) Covered() int {
	n := 0
	for i := 0; i < slotmath.SlotCount; i++ {
		if r.cells[i].Load() != nil {
			n++
		}
	}
	return n
}

// CoveredSlots returns every slot currently routed, in ascending
// order. Used by the monitor's slot-coverage-change pass to compute a
// diff against the latest partition snapshot.
func (r *Router) CoveredSlots() []int {
	slots := make([]int, 0, slotmath.SlotCount)
	for i := 0; i < slotmath.SlotCount; i++ {
		if r.cells[i].Load() != nil {
			slots = append(slots, i)
		}
	}
	return slots
}
