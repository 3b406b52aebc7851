package manager

import (
	"context"
	"crypto/tls"
	"time"

	"github.com/tokshard/clustermap-go/internal/cluster/bootstrap"
	"github.com/tokshard/clustermap-go/internal/cluster/monitor"
	"github.com/tokshard/clustermap-go/internal/cluster/partition"
	"github.com/tokshard/clustermap-go/internal/cluster/registry"
	"github.com/tokshard/clustermap-go/internal/cluster/router"
	"github.com/tokshard/clustermap-go/internal/cluster/slotmath"
	"github.com/tokshard/clustermap-go/internal/telemetry/logger"
	"github.com/tokshard/clustermap-go/internal/telemetry/metric"
	"github.com/tokshard/clustermap-go/natmap"
	"github.com/tokshard/clustermap-go/pool"
	"github.com/tokshard/clustermap-go/resolver"
	"github.com/tokshard/clustermap-go/subscribe"
	"golang.org/x/time/rate"
)

// Config configures a Manager. It mirrors internal/config.Config but
// speaks in resolved Go types rather than the raw koanf-bound shape,
// so callers assembling a Manager by hand don't need the config
// package.
type Config struct {
	SeedAddresses       []pool.NodeAddress
	ScanInterval        time.Duration
	CheckSlotsCoverage  bool
	CheckSkipSlavesInit bool
	DialTimeout         time.Duration
	ConnectRate         rate.Limit
	ConnectBurst        int
	TLSConfig           *tls.Config
	NATMapper           natmap.Mapper
}

// DefaultConfig returns sane defaults for a production deployment.
func DefaultConfig() Config {
	return Config{
		ScanInterval: 1 * time.Second,
		DialTimeout:  2 * time.Second,
		ConnectRate:  10,
		ConnectBurst: 10,
		NATMapper:    natmap.Identity{},
	}
}

// Manager composes bootstrap, the router, the entry registry, and the
// topology monitor into the surface a client library consumes.
type Manager struct {
	cfg      Config
	router   *router.Router
	registry *registry.Registry
	monitor  *monitor.Monitor
	resolver resolver.Resolver
	log      logger.Logger
	metrics  *metric.Registry
}

// New builds a Manager. newPool is the per-node pool factory supplied
// by the owning client library; the manager never dials sockets
// itself, it only drives the Pool interface the factory hands back.
func New(cfg Config, newPool registry.PoolFactory, sub subscribe.Service, r resolver.Resolver) *Manager {
	if cfg.NATMapper == nil {
		cfg.NATMapper = natmap.Identity{}
	}

	rt := router.New()
	reg := registry.New(rt, newPool, sub)
	parser := partition.NewParser(r)

	monCfg := monitor.Config{
		ScanInterval: cfg.ScanInterval,
		DialTimeout:  cfg.DialTimeout,
		ConnectRate:  cfg.ConnectRate,
		ConnectBurst: cfg.ConnectBurst,
		TLSConfig:    cfg.TLSConfig,
	}
	mon := monitor.New(monCfg, r, parser, reg, rt, sub)

	return &Manager{
		cfg:      cfg,
		router:   rt,
		registry: reg,
		monitor:  mon,
		resolver: r,
		log:      logger.Default(),
	}
}

// WithLogger overrides the manager's and its components' logger.
func (m *Manager) WithLogger(l logger.Logger) *Manager {
	m.log = l
	m.registry.WithLogger(l)
	m.monitor.WithLogger(l)
	return m
}

// WithMetrics attaches a metrics registry shared across components.
func (m *Manager) WithMetrics(reg *metric.Registry) *Manager {
	m.metrics = reg
	m.monitor.WithMetrics(reg)
	return m
}

// Start runs bootstrap synchronously, seeds the monitor with the
// result, and launches the reconciliation loop. An error from
// bootstrap is fatal: the manager is not usable and Start's caller
// should not proceed to serve traffic.
func (m *Manager) Start(ctx context.Context) error {
	bsCfg := bootstrap.Config{
		Seeds:          m.cfg.SeedAddresses,
		DialTimeout:    m.cfg.DialTimeout,
		StrictCoverage: m.cfg.CheckSlotsCoverage,
		ConnectRate:    m.cfg.ConnectRate,
		ConnectBurst:   m.cfg.ConnectBurst,
		TLSConfig:      m.cfg.TLSConfig,
	}
	bs := bootstrap.New(bsCfg, partition.NewParser(m.resolver), m.registry, m.router).WithLogger(m.log)
	if m.metrics != nil {
		bs = bs.WithMetrics(m.metrics)
	}

	result, err := bs.Run(ctx)
	if err != nil {
		return err
	}

	m.monitor.SeedInitialState(result.Partitions)
	m.monitor.SetLastClusterNode(result.SeedURI)
	if result.ConfigEndpointHost != "" {
		m.monitor.SetConfigEndpoint(result.ConfigEndpointHost, result.ConfigEndpointPort, result.ConfigEndpointTLS)
	}

	m.monitor.Start(ctx)
	return nil
}

// Shutdown cancels the monitor's reconciliation loop, waits for any
// in-flight tick's network calls to drain, and tears every live entry
// down through the registry.
func (m *Manager) Shutdown() {
	m.monitor.Stop()
	m.registry.ShutdownAll()
}

// EntryForSlot is the hot-path lookup: a single atomic load against
// the routing table.
func (m *Manager) EntryForSlot(slot int) router.Entry {
	return m.router.EntryForSlot(slot)
}

// EntryForURI returns the entry currently serving a master address.
func (m *Manager) EntryForURI(addr pool.NodeAddress) (*registry.MasterSlaveEntry, bool) {
	return m.registry.EntryForAddress(addr)
}

// EntryForClient resolves a pool's client handle back to its owning
// entry.
func (m *Manager) EntryForClient(client pool.ClientHandle) (*registry.MasterSlaveEntry, bool) {
	return m.registry.EntryForClient(client)
}

// CalcSlot derives the hash slot a key routes to.
func (m *Manager) CalcSlot(key []byte) int {
	return slotmath.CalcSlot(key)
}

// ApplyNATMap rewrites addr through the configured NAT mapper.
func (m *Manager) ApplyNATMap(addr pool.NodeAddress) pool.NodeAddress {
	return m.cfg.NATMapper.Map(addr)
}

// LastClusterNode returns the URI of the node the most recent
// successful tick (or bootstrap) fetched its snapshot from.
func (m *Manager) LastClusterNode() string {
	return m.monitor.LastClusterNode()
}

// IsClusterMode always reports true: this manager only ever drives a
// cluster-mode deployment.
func (m *Manager) IsClusterMode() bool {
	return true
}

// ChangeMaster is exposed for tests and operator tooling that need to
// force a slot onto a specific master address outside the normal
// reconciliation tick.
func (m *Manager) ChangeMaster(ctx context.Context, slot int, newMaster *partition.ClusterPartition) error {
	entry, ok := m.registry.EntryForAddress(newMaster.MasterAddress)
	if !ok {
		var err error
		entry, err = m.registry.AddMasterEntry(ctx, newMaster)
		if err != nil {
			return err
		}
	}
	m.router.Install(slot, entry)
	return nil
}
