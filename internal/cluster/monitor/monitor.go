package monitor

import (
	"context"
	"crypto/tls"
	"sync"
	"time"

	"github.com/tokshard/clustermap-go/internal/cluster/partition"
	"github.com/tokshard/clustermap-go/internal/cluster/registry"
	"github.com/tokshard/clustermap-go/internal/cluster/router"
	"github.com/tokshard/clustermap-go/internal/telemetry/logger"
	"github.com/tokshard/clustermap-go/internal/telemetry/metric"
	"github.com/tokshard/clustermap-go/resolver"
	"github.com/tokshard/clustermap-go/subscribe"
	"golang.org/x/time/rate"
)

// Config configures the periodic reconciliation loop.
type Config struct {
	// ScanInterval is the delay between the end of one tick and the
	// start of the next.
	ScanInterval time.Duration
	// DialTimeout bounds both the control connection handshake and the
	// CLUSTER NODES round trip.
	DialTimeout time.Duration
	// ConnectRate and ConnectBurst throttle candidate connection
	// attempts across ticks.
	ConnectRate  rate.Limit
	ConnectBurst int
	// TLSConfig is used for TLS-variant control connections.
	TLSConfig *tls.Config
}

// DefaultConfig returns sane defaults for a production deployment.
func DefaultConfig() Config {
	return Config{
		ScanInterval: 1 * time.Second,
		DialTimeout:  2 * time.Second,
		ConnectRate:  10,
		ConnectBurst: 10,
	}
}

// Monitor runs the self-rescheduling reconciliation tick.
type Monitor struct {
	cfg      Config
	resolver resolver.Resolver
	parser   *partition.Parser
	registry *registry.Registry
	router   *router.Router
	sub      subscribe.Service
	baseLog  logger.Logger
	log      logger.Logger
	metrics  *metric.Registry
	limiter  *rate.Limiter

	mu                 sync.Mutex
	current            map[partition.NodeID]*partition.ClusterPartition
	configEndpointHost string
	configEndpointPort int
	configEndpointTLS  bool
	lastClusterNode    string

	latch  latch
	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Monitor. Call SeedInitialState with the bootstrap's
// result before Start so the first tick diffs against a known state
// rather than an empty one.
func New(cfg Config, r resolver.Resolver, p *partition.Parser, reg *registry.Registry, rt *router.Router, sub subscribe.Service) *Monitor {
	return &Monitor{
		cfg:      cfg,
		resolver: r,
		parser:   p,
		registry: reg,
		router:   rt,
		sub:      sub,
		baseLog:  logger.Default(),
		log:      logger.Default(),
		limiter:  rate.NewLimiter(cfg.ConnectRate, cfg.ConnectBurst),
		current:  make(map[partition.NodeID]*partition.ClusterPartition),
	}
}

// WithLogger overrides the monitor's logger. Each tick derives its own
// logger from this one, tagged with that tick's correlation ID.
func (m *Monitor) WithLogger(l logger.Logger) *Monitor {
	m.baseLog = l
	m.log = l
	return m
}

// WithMetrics attaches a metrics registry the tick reports into.
func (m *Monitor) WithMetrics(reg *metric.Registry) *Monitor {
	m.metrics = reg
	return m
}

// SeedInitialState records the partitions bootstrap already installed,
// so the first tick diffs against them instead of an empty state.
func (m *Monitor) SeedInitialState(partitions []*partition.ClusterPartition) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range partitions {
		m.current[p.NodeID] = clonePartition(p)
	}
}

// SetConfigEndpoint records the single non-IP seed host used as the
// endpoint-hostname candidate strategy, per the hostname-behind-a-load-
// balancer deployment mode.
func (m *Monitor) SetConfigEndpoint(host string, port int, tls bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.configEndpointHost = host
	m.configEndpointPort = port
	m.configEndpointTLS = tls
}

// LastClusterNode returns the URI of the candidate the most recent
// successful tick (or bootstrap) fetched its snapshot from.
func (m *Monitor) LastClusterNode() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastClusterNode
}

// SetLastClusterNode is used by bootstrap to seed the value before the
// monitor runs its first tick.
func (m *Monitor) SetLastClusterNode(uri string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastClusterNode = uri
}

// Start launches the self-rescheduling tick loop. It returns
// immediately; the loop runs until ctx is canceled or Stop is called.
func (m *Monitor) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		for {
			m.runTick(ctx)
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.cfg.ScanInterval):
			}
		}
	}()
}

// Stop cancels the tick loop, waits for any in-flight tick's network
// calls to drain, and returns once the loop goroutine has exited.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.latch.closeAndWait()
	if m.done != nil {
		<-m.done
	}
}
