package pool

import (
	"context"
	"sync"
)

// Simulated is an in-memory Pool used by tests and by cmd/clusterinspect
// when no production pool implementation is wired in. It records every
// call it receives rather than touching the network.
type Simulated struct {
	mu sync.Mutex

	master  NodeAddress
	slaves  map[NodeAddress]bool // addr -> up
	down    bool
	clients map[NodeAddress]ClientHandle

	Calls []string
}

// NewSimulated returns an empty Simulated pool.
func NewSimulated() *Simulated {
	return &Simulated{
		slaves:  make(map[NodeAddress]bool),
		clients: make(map[NodeAddress]ClientHandle),
	}
}

func (s *Simulated) record(call string) {
	s.Calls = append(s.Calls, call)
}

func (s *Simulated) SetupMaster(_ context.Context, addr NodeAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.master = addr
	s.clients[addr] = addr
	s.record("setup_master:" + addr.String())
	return nil
}

func (s *Simulated) InitSlaveBalancer(_ context.Context, failed map[NodeAddress]struct{}, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for addr := range failed {
		s.slaves[addr] = false
	}
	s.record("init_slave_balancer")
	return nil
}

func (s *Simulated) AddSlave(_ context.Context, addr NodeAddress, _ bool, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slaves[addr] = true
	s.clients[addr] = addr
	s.record("add_slave:" + addr.String())
	return nil
}

func (s *Simulated) HasSlave(addr NodeAddress) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.slaves[addr]
	return ok
}

func (s *Simulated) SlaveUp(addr NodeAddress, reason FreezeReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slaves[addr] = true
	s.record("slave_up:" + addr.String() + ":" + reason.String())
	return nil
}

func (s *Simulated) SlaveDown(addr NodeAddress, reason FreezeReason) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slaves[addr] = false
	s.record("slave_down:" + addr.String() + ":" + reason.String())
	return nil
}

func (s *Simulated) MasterDown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = true
	s.record("master_down")
	return nil
}

func (s *Simulated) NodeDown(member NodeAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slaves, member)
	s.record("node_down:" + member.String())
	return nil
}

func (s *Simulated) ShutdownAsync() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.down = true
	s.record("shutdown")
}

func (s *Simulated) GetEntry(addr NodeAddress) (ClientHandle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.clients[addr]
	return h, ok
}

func (s *Simulated) AllMembers() []NodeAddress {
	s.mu.Lock()
	defer s.mu.Unlock()
	members := make([]NodeAddress, 0, len(s.slaves)+1)
	members = append(members, s.master)
	for addr := range s.slaves {
		members = append(members, addr)
	}
	return members
}

// IsDown reports whether MasterDown or ShutdownAsync has been called.
func (s *Simulated) IsDown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.down
}
