package metric

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "clustermap"

// Registry holds every metric the manager publishes. Fields are exported
// so components can record against them directly without a setter layer.
type Registry struct {
	registry *prometheus.Registry

	RouterInstalls prometheus.Counter
	RouterEvictions prometheus.Counter
	RouterSlotsCovered prometheus.Gauge

	RegistryEntriesActive prometheus.Gauge
	RegistryEntriesFreed  prometheus.Counter

	TickDuration  prometheus.Histogram
	TickTotal     *prometheus.CounterVec
	MasterChanges prometheus.Counter
	SlaveChanges  prometheus.Counter
	SlotMigrations prometheus.Counter
	CoverageErrors prometheus.Counter

	BootstrapAttempts *prometheus.CounterVec
	BootstrapDuration prometheus.Histogram

	ClusterNodes   prometheus.Gauge
	ClusterMasters prometheus.Gauge
	ClusterSlaves  prometheus.Gauge
}

// NewRegistry builds a Registry backed by a fresh prometheus.Registry,
// with its own Go runtime and process collectors so Handler works
// standalone without touching prometheus.DefaultRegisterer.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		registry: reg,

		RouterInstalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "installs_total",
			Help:      "Number of slot-range entries installed into the router.",
		}),
		RouterEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "evictions_total",
			Help:      "Number of slot-range entries evicted from the router.",
		}),
		RouterSlotsCovered: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "router",
			Name:      "slots_covered",
			Help:      "Number of the 16384 hash slots currently routable.",
		}),

		RegistryEntriesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "entries_active",
			Help:      "Number of master/slave entries with a non-zero refcount.",
		}),
		RegistryEntriesFreed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "entries_freed_total",
			Help:      "Number of master/slave entries torn down after their refcount reached zero.",
		}),

		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of a single reconciliation tick.",
			Buckets:   prometheus.DefBuckets,
		}),
		TickTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "ticks_total",
			Help:      "Reconciliation ticks, partitioned by outcome.",
		}, []string{"outcome"}),
		MasterChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "master_changes_total",
			Help:      "Number of master-change diffs applied across all ticks.",
		}),
		SlaveChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "slave_changes_total",
			Help:      "Number of slave-change diffs applied across all ticks.",
		}),
		SlotMigrations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "slot_migrations_total",
			Help:      "Number of slot-ownership migrations applied across all ticks.",
		}),
		CoverageErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "monitor",
			Name:      "coverage_errors_total",
			Help:      "Number of ticks that observed incomplete slot coverage.",
		}),

		BootstrapAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bootstrap",
			Name:      "attempts_total",
			Help:      "Seed-node connection attempts during bootstrap, partitioned by result.",
		}, []string{"result"}),
		BootstrapDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bootstrap",
			Name:      "duration_seconds",
			Help:      "Time to obtain an initial partition from any seed.",
			Buckets:   prometheus.DefBuckets,
		}),

		ClusterNodes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cluster_nodes",
			Help:      "Total known cluster nodes (masters plus slaves).",
		}),
		ClusterMasters: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cluster_masters",
			Help:      "Known master nodes.",
		}),
		ClusterSlaves: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cluster_slaves",
			Help:      "Known slave nodes.",
		}),
	}

	reg.MustRegister(
		r.RouterInstalls,
		r.RouterEvictions,
		r.RouterSlotsCovered,
		r.RegistryEntriesActive,
		r.RegistryEntriesFreed,
		r.TickDuration,
		r.TickTotal,
		r.MasterChanges,
		r.SlaveChanges,
		r.SlotMigrations,
		r.CoverageErrors,
		r.BootstrapAttempts,
		r.BootstrapDuration,
		r.ClusterNodes,
		r.ClusterMasters,
		r.ClusterSlaves,
	)

	return r
}

var (
	globalOnce sync.Once
	global     *Registry
)

// Global returns a process-wide Registry, created on first use.
// Prefer constructing a Registry explicitly and threading it through
// the manager, as cmd/clusterinspect does; Global exists for callers
// that have no natural owner to hold one.
func Global() *Registry {
	globalOnce.Do(func() {
		global = NewRegistry()
	})
	return global
}
