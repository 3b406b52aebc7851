package natmap

import (
	"testing"

	"github.com/tokshard/clustermap-go/pool"
)

func TestIdentity_Map(t *testing.T) {
	addr := pool.NodeAddress{Host: "10.0.0.1", Port: 7000}
	if got := (Identity{}).Map(addr); got != addr {
		t.Errorf("Identity.Map() = %v, want %v", got, addr)
	}
}

func TestStatic_Map(t *testing.T) {
	internal := pool.NodeAddress{Host: "10.0.0.1", Port: 7000}
	external := pool.NodeAddress{Host: "203.0.113.1", Port: 16379}

	m := NewStatic(map[pool.NodeAddress]pool.NodeAddress{internal: external})

	if got := m.Map(internal); got != external {
		t.Errorf("Map(internal) = %v, want %v", got, external)
	}

	unknown := pool.NodeAddress{Host: "10.0.0.9", Port: 7000}
	if got := m.Map(unknown); got != unknown {
		t.Errorf("Map(unknown) = %v, want unchanged %v", got, unknown)
	}
}
