package registry

import (
	"context"
	"testing"

	"github.com/tokshard/clustermap-go/internal/cluster/clustererr"
	"github.com/tokshard/clustermap-go/internal/cluster/partition"
	"github.com/tokshard/clustermap-go/internal/cluster/router"
	"github.com/tokshard/clustermap-go/pool"
	"github.com/tokshard/clustermap-go/subscribe"
)

func testPartition(master pool.NodeAddress, slaves ...pool.NodeAddress) *partition.ClusterPartition {
	p := &partition.ClusterPartition{
		NodeID:               partition.NodeID(master.String()),
		Type:                 partition.Master,
		MasterAddress:        master,
		SlaveAddresses:       make(map[pool.NodeAddress]struct{}),
		FailedSlaveAddresses: make(map[pool.NodeAddress]struct{}),
		SlotRanges:           []partition.SlotRange{{Start: 0, End: 100}},
	}
	for _, s := range slaves {
		p.SlaveAddresses[s] = struct{}{}
	}
	p.Slots = partition.BitsetFromRanges(p.SlotRanges)
	return p
}

func TestRegistry_AddMasterEntry_InstallsSlots(t *testing.T) {
	r := router.New()
	var created *pool.Simulated
	reg := New(r, func(partition.NodeID) pool.Pool {
		created = pool.NewSimulated()
		return created
	}, subscribe.NoOp{})

	master := pool.NodeAddress{Host: "10.0.0.1", Port: 7000}
	part := testPartition(master)

	entry, err := reg.AddMasterEntry(context.Background(), part)
	if err != nil {
		t.Fatalf("AddMasterEntry() error = %v", err)
	}
	if got := r.EntryForSlot(0); got != router.Entry(entry) {
		t.Error("slot 0 should route to the new entry")
	}
	if got := r.EntryForSlot(100); got != router.Entry(entry) {
		t.Error("slot 100 should route to the new entry")
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}
	if len(created.Calls) == 0 || created.Calls[0] != "setup_master:"+master.String() {
		t.Errorf("Calls = %v, want first call to be setup_master", created.Calls)
	}
}

func TestRegistry_AddMasterEntry_WiresSlaves(t *testing.T) {
	r := router.New()
	reg := New(r, func(partition.NodeID) pool.Pool { return pool.NewSimulated() }, subscribe.NoOp{})

	master := pool.NodeAddress{Host: "10.0.0.1", Port: 7000}
	slave := pool.NodeAddress{Host: "10.0.0.2", Port: 7000}
	part := testPartition(master, slave)

	entry, err := reg.AddMasterEntry(context.Background(), part)
	if err != nil {
		t.Fatalf("AddMasterEntry() error = %v", err)
	}
	if !entry.Pool().HasSlave(slave) {
		t.Error("slave should have been added to the pool")
	}
}

func TestRegistry_RemoveEntry_TearsDownAtZeroRefs(t *testing.T) {
	r := router.New()
	var created *pool.Simulated
	reg := New(r, func(partition.NodeID) pool.Pool {
		created = pool.NewSimulated()
		return created
	}, subscribe.NoOp{})

	master := pool.NodeAddress{Host: "10.0.0.1", Port: 7000}
	part := testPartition(master)
	entry, err := reg.AddMasterEntry(context.Background(), part)
	if err != nil {
		t.Fatalf("AddMasterEntry() error = %v", err)
	}

	for _, slot := range part.Slots.Slots() {
		reg.RemoveEntry(slot)
	}

	foundMasterDown, foundShutdown := false, false
	for _, c := range created.Calls {
		switch c {
		case "master_down":
			foundMasterDown = true
		case "shutdown":
			foundShutdown = true
			if !foundMasterDown {
				t.Error("master_down should be recorded before shutdown")
			}
		}
	}
	if !foundMasterDown {
		t.Errorf("expected a master_down call, got %v", created.Calls)
	}
	if !foundShutdown {
		t.Errorf("expected a shutdown call, got %v", created.Calls)
	}
	if _, ok := reg.EntryForNodeID(entry.NodeID); ok {
		t.Error("entry should be dropped from the registry after teardown")
	}
}

func TestRegistry_RemoveEntry_MarksSlavesDownBeforeShutdown(t *testing.T) {
	r := router.New()
	var created *pool.Simulated
	reg := New(r, func(partition.NodeID) pool.Pool {
		created = pool.NewSimulated()
		return created
	}, subscribe.NoOp{})

	master := pool.NodeAddress{Host: "10.0.0.1", Port: 7000}
	slave := pool.NodeAddress{Host: "10.0.0.2", Port: 7000}
	part := testPartition(master, slave)
	_, err := reg.AddMasterEntry(context.Background(), part)
	if err != nil {
		t.Fatalf("AddMasterEntry() error = %v", err)
	}

	for _, slot := range part.Slots.Slots() {
		reg.RemoveEntry(slot)
	}

	found := false
	for _, c := range created.Calls {
		if c == "node_down:"+slave.String() {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a node_down call for the slave, got %v", created.Calls)
	}
}

func TestRegistry_AddMasterEntry_RefusesFailedMaster(t *testing.T) {
	r := router.New()
	reg := New(r, func(partition.NodeID) pool.Pool { return pool.NewSimulated() }, subscribe.NoOp{})

	master := pool.NodeAddress{Host: "10.0.0.1", Port: 7000}
	part := testPartition(master)
	part.MasterFail = true

	_, err := reg.AddMasterEntry(context.Background(), part)
	if err == nil {
		t.Fatal("AddMasterEntry() should refuse a partition already flagged failed")
	}
	if !clustererr.Is(err, clustererr.Topology) {
		t.Errorf("error should classify as Topology, got %v", err)
	}
	if reg.Count() != 0 {
		t.Errorf("Count() = %d, want 0", reg.Count())
	}
}

func TestRegistry_AddMasterEntry_Idempotent(t *testing.T) {
	r := router.New()
	calls := 0
	reg := New(r, func(partition.NodeID) pool.Pool {
		calls++
		return pool.NewSimulated()
	}, subscribe.NoOp{})

	master := pool.NodeAddress{Host: "10.0.0.1", Port: 7000}
	part := testPartition(master)

	first, err := reg.AddMasterEntry(context.Background(), part)
	if err != nil {
		t.Fatalf("AddMasterEntry() error = %v", err)
	}
	second, err := reg.AddMasterEntry(context.Background(), part)
	if err != nil {
		t.Fatalf("AddMasterEntry() error = %v", err)
	}
	if first != second {
		t.Error("re-adding the same node ID should return the existing entry")
	}
	if calls != 1 {
		t.Errorf("pool factory called %d times, want 1", calls)
	}
}

func TestRegistry_EntryForClient_DirectIndexHit(t *testing.T) {
	r := router.New()
	reg := New(r, func(partition.NodeID) pool.Pool { return pool.NewSimulated() }, subscribe.NoOp{})

	master := pool.NodeAddress{Host: "10.0.0.1", Port: 7000}
	part := testPartition(master)
	entry, err := reg.AddMasterEntry(context.Background(), part)
	if err != nil {
		t.Fatalf("AddMasterEntry() error = %v", err)
	}

	got, ok := reg.EntryForClient(master)
	if !ok || got != entry {
		t.Error("EntryForClient should resolve the master's own handle")
	}
}

func TestRegistry_EntryForAddress(t *testing.T) {
	r := router.New()
	reg := New(r, func(partition.NodeID) pool.Pool { return pool.NewSimulated() }, subscribe.NoOp{})

	master := pool.NodeAddress{Host: "10.0.0.1", Port: 7000}
	part := testPartition(master)
	entry, err := reg.AddMasterEntry(context.Background(), part)
	if err != nil {
		t.Fatalf("AddMasterEntry() error = %v", err)
	}

	got, ok := reg.EntryForAddress(master)
	if !ok || got != entry {
		t.Error("EntryForAddress should resolve the registered master address")
	}
	if _, ok := reg.EntryForAddress(pool.NodeAddress{Host: "nowhere", Port: 1}); ok {
		t.Error("EntryForAddress should miss for an unregistered address")
	}
}

func TestRegistry_EntryForClient_Miss(t *testing.T) {
	r := router.New()
	reg := New(r, func(partition.NodeID) pool.Pool { return pool.NewSimulated() }, subscribe.NoOp{})

	if _, ok := reg.EntryForClient(pool.NodeAddress{Host: "nowhere", Port: 1}); ok {
		t.Error("EntryForClient should miss for an unregistered handle")
	}
}
