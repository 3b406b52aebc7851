// Package natmap rewrites node addresses discovered from a cluster's
// internal gossip view into externally reachable addresses, for
// deployments where clients sit behind a NAT or load balancer.
package natmap

import "github.com/tokshard/clustermap-go/pool"

// Mapper rewrites a node address before the manager dials or reports it.
type Mapper interface {
	Map(addr pool.NodeAddress) pool.NodeAddress
}

// Identity returns addr unchanged. It is the default Mapper when no
// NAT mapping is configured.
type Identity struct{}

// Map implements Mapper.
func (Identity) Map(addr pool.NodeAddress) pool.NodeAddress {
	return addr
}

// Static maps individual addresses via a fixed lookup table, falling
// back to the identity mapping for anything not listed.
type Static struct {
	table map[pool.NodeAddress]pool.NodeAddress
}

// NewStatic builds a Static mapper from an internal-to-external table.
func NewStatic(table map[pool.NodeAddress]pool.NodeAddress) *Static {
	return &Static{table: table}
}

// Map implements Mapper.
func (s *Static) Map(addr pool.NodeAddress) pool.NodeAddress {
	if mapped, ok := s.table[addr]; ok {
		return mapped
	}
	return addr
}
