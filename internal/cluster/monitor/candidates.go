package monitor

import (
	"context"
	"math/rand"
	"time"

	"github.com/tokshard/clustermap-go/internal/cluster/partition"
	"github.com/tokshard/clustermap-go/internal/wire"
	"github.com/tokshard/clustermap-go/pool"
)

// buildCandidates returns the ordered list of nodes this tick should
// try, per the endpoint-hostname or gossip strategy.
func (m *Monitor) buildCandidates(ctx context.Context) []pool.NodeAddress {
	m.mu.Lock()
	host := m.configEndpointHost
	port := m.configEndpointPort
	tlsOn := m.configEndpointTLS
	snapshot := make([]*partition.ClusterPartition, 0, len(m.current))
	for _, p := range m.current {
		snapshot = append(snapshot, p)
	}
	m.mu.Unlock()

	if host != "" {
		ips, err := m.resolver.ResolveAll(ctx, host)
		if err != nil {
			m.log.Warn("endpoint hostname re-resolution failed", "host", host, "error", err)
			return nil
		}
		candidates := make([]pool.NodeAddress, 0, len(ips))
		for _, ip := range ips {
			candidates = append(candidates, pool.NodeAddress{Host: ip.String(), Port: port, TLS: tlsOn})
		}
		return candidates
	}

	var masters, slaves []pool.NodeAddress
	for _, p := range snapshot {
		if !p.MasterFail {
			masters = append(masters, p.MasterAddress)
		}
		for addr := range p.SlaveAddresses {
			if _, failed := p.FailedSlaveAddresses[addr]; !failed {
				slaves = append(slaves, addr)
			}
		}
	}
	rand.Shuffle(len(masters), func(i, j int) { masters[i], masters[j] = masters[j], masters[i] })
	rand.Shuffle(len(slaves), func(i, j int) { slaves[i], slaves[j] = slaves[j], slaves[i] })

	return append(masters, slaves...)
}

// attemptCandidate dials addr, issues CLUSTER NODES, and parses the
// reply. A false result means the caller should move on to the next
// candidate; the caller still holds and must release the shutdown
// latch.
func (m *Monitor) attemptCandidate(ctx context.Context, addr pool.NodeAddress) ([]partition.RawNodeInfo, bool) {
	if err := m.limiter.Wait(ctx); err != nil {
		return nil, false
	}

	sni := ""
	m.mu.Lock()
	if addr.TLS && m.configEndpointHost != "" {
		sni = m.configEndpointHost
	}
	m.mu.Unlock()

	conn, err := wire.Dial(ctx, addr, m.cfg.TLSConfig, sni, m.cfg.DialTimeout)
	if err != nil {
		m.log.Warn("candidate connect failed", "addr", addr.String(), "error", err)
		return nil, false
	}
	defer conn.Close()

	raw, err := conn.FetchClusterNodes(time.Now().Add(m.cfg.DialTimeout))
	if err != nil || raw == "" {
		m.log.Warn("candidate CLUSTER NODES failed", "addr", addr.String(), "error", err)
		return nil, false
	}

	nodes, err := wire.ParseClusterNodes(raw)
	if err != nil {
		m.log.Warn("candidate snapshot malformed", "addr", addr.String(), "error", err)
		return nil, false
	}
	return nodes, true
}
