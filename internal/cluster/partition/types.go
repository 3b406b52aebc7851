package partition

import (
	"fmt"

	"github.com/tokshard/clustermap-go/internal/cluster/slotmath"
	"github.com/tokshard/clustermap-go/pool"
)

// NodeID is a server-assigned stable identifier, distinct from a plain
// string so it is never accidentally compared against or formatted as
// a NodeAddress.
type NodeID string

// NodeFlags is a set of flags a gossip record reports for a node.
type NodeFlags uint8

const (
	FlagMaster NodeFlags = 1 << iota
	FlagSlave
	FlagFail
	FlagNoAddr
	FlagHandshake
)

func (f NodeFlags) Has(flag NodeFlags) bool {
	return f&flag != 0
}

// SlotRange is a closed interval [Start, End] with 0 <= Start <= End < SlotCount.
type SlotRange struct {
	Start, End int
}

func (r SlotRange) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// wordCount is the number of uint64 words needed to cover every slot.
const wordCount = (slotmath.SlotCount + 63) / 64

// Bitset is a fixed-size bitset over [0, slotmath.SlotCount).
type Bitset [wordCount]uint64

func (b *Bitset) Set(slot int) {
	b[slot/64] |= 1 << uint(slot%64)
}

func (b *Bitset) Clear(slot int) {
	b[slot/64] &^= 1 << uint(slot%64)
}

func (b Bitset) Has(slot int) bool {
	return b[slot/64]&(1<<uint(slot%64)) != 0
}

// Count returns the number of set bits.
func (b Bitset) Count() int {
	n := 0
	for _, w := range b {
		for w != 0 {
			w &= w - 1
			n++
		}
	}
	return n
}

// Slots returns every set slot in ascending order.
func (b Bitset) Slots() []int {
	slots := make([]int, 0, b.Count())
	for i := 0; i < slotmath.SlotCount; i++ {
		if b.Has(i) {
			slots = append(slots, i)
		}
	}
	return slots
}

// Intersects reports whether b and other share any set slot.
func (b Bitset) Intersects(other Bitset) bool {
	for i := range b {
		if b[i]&other[i] != 0 {
			return true
		}
	}
	return false
}

// Difference returns the slots set in b but not in other.
func (b Bitset) Difference(other Bitset) Bitset {
	var out Bitset
	for i := range b {
		out[i] = b[i] &^ other[i]
	}
	return out
}

// Union returns the slots set in either b or other.
func (b Bitset) Union(other Bitset) Bitset {
	var out Bitset
	for i := range b {
		out[i] = b[i] | other[i]
	}
	return out
}

// RangesFromSlots compacts a sorted slot bitset into closed ranges.
func RangesFromSlots(b Bitset) []SlotRange {
	var ranges []SlotRange
	start := -1
	for i := 0; i < slotmath.SlotCount; i++ {
		if b.Has(i) {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			ranges = append(ranges, SlotRange{Start: start, End: i - 1})
			start = -1
		}
	}
	if start != -1 {
		ranges = append(ranges, SlotRange{Start: start, End: slotmath.SlotCount - 1})
	}
	return ranges
}

// BitsetFromRanges builds a Bitset from a list of slot ranges.
func BitsetFromRanges(ranges []SlotRange) Bitset {
	var b Bitset
	for _, r := range ranges {
		for s := r.Start; s <= r.End; s++ {
			b.Set(s)
		}
	}
	return b
}

// RawNodeInfo is one gossip record as reported by CLUSTER NODES, before
// address resolution or partition assignment.
type RawNodeInfo struct {
	NodeID     NodeID
	Address    *pool.NodeAddress // nil if the node reported no address
	Flags      NodeFlags
	SlaveOf    NodeID // empty if this node is a master
	SlotRanges []SlotRange
}

// Type distinguishes a master partition from a (transient, pre-flattening) slave partition.
type Type int

const (
	Master Type = iota
	Slave
)

// ClusterPartition is the canonical, emitted representation of one
// logical master and its replicas.
type ClusterPartition struct {
	NodeID NodeID
	Type   Type

	MasterAddress pool.NodeAddress
	MasterFail    bool

	SlaveAddresses       map[pool.NodeAddress]struct{}
	FailedSlaveAddresses map[pool.NodeAddress]struct{}

	SlotRanges []SlotRange
	Slots      Bitset
}

// HasSlave reports whether addr is a known (possibly failed) slave.
func (p *ClusterPartition) HasSlave(addr pool.NodeAddress) bool {
	_, ok := p.SlaveAddresses[addr]
	return ok
}

// IsFailedSlave reports whether addr is a slave currently marked failed.
func (p *ClusterPartition) IsFailedSlave(addr pool.NodeAddress) bool {
	_, ok := p.FailedSlaveAddresses[addr]
	return ok
}
