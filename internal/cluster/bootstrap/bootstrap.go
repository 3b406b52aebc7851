package bootstrap

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/tokshard/clustermap-go/internal/cluster/clustererr"
	"github.com/tokshard/clustermap-go/internal/cluster/partition"
	"github.com/tokshard/clustermap-go/internal/cluster/registry"
	"github.com/tokshard/clustermap-go/internal/cluster/router"
	"github.com/tokshard/clustermap-go/internal/telemetry/logger"
	"github.com/tokshard/clustermap-go/internal/telemetry/metric"
	"github.com/tokshard/clustermap-go/internal/wire"
	"github.com/tokshard/clustermap-go/pool"
	"golang.org/x/time/rate"
)

// Config configures the seed walk.
type Config struct {
	// Seeds are tried in order until one yields a usable snapshot.
	Seeds []pool.NodeAddress
	// DialTimeout bounds both the control connection handshake and the
	// CLUSTER NODES round trip for a single seed attempt.
	DialTimeout time.Duration
	// StrictCoverage fails startup when fewer than 16384 slots end up
	// routable after onboarding.
	StrictCoverage bool
	// ConnectRate and ConnectBurst throttle seed connection attempts.
	ConnectRate  rate.Limit
	ConnectBurst int
	// TLSConfig is used for TLS-variant seed connections.
	TLSConfig *tls.Config
}

// DefaultConfig returns sane defaults for a production deployment.
func DefaultConfig() Config {
	return Config{
		DialTimeout:  2 * time.Second,
		ConnectRate:  5,
		ConnectBurst: 5,
	}
}

// Result is the initial state a successful bootstrap hands to the
// monitor.
type Result struct {
	Partitions         []*partition.ClusterPartition
	SeedURI            string
	ConfigEndpointHost string
	ConfigEndpointPort int
	ConfigEndpointTLS  bool
}

// Bootstrap performs the one-time seed walk.
type Bootstrap struct {
	cfg      Config
	parser   *partition.Parser
	registry *registry.Registry
	router   *router.Router
	log      logger.Logger
	metrics  *metric.Registry
	limiter  *rate.Limiter
}

// New builds a Bootstrap.
func New(cfg Config, p *partition.Parser, reg *registry.Registry, rt *router.Router) *Bootstrap {
	return &Bootstrap{
		cfg:      cfg,
		parser:   p,
		registry: reg,
		router:   rt,
		log:      logger.Default(),
		limiter:  rate.NewLimiter(cfg.ConnectRate, cfg.ConnectBurst),
	}
}

// WithLogger overrides the bootstrap's logger.
func (b *Bootstrap) WithLogger(l logger.Logger) *Bootstrap {
	b.log = l
	return b
}

// WithMetrics attaches a metrics registry the seed walk reports into.
func (b *Bootstrap) WithMetrics(reg *metric.Registry) *Bootstrap {
	b.metrics = reg
	return b
}

// Run walks the configured seeds in order and returns the initial
// topology state, or a *clustererr.Error classified Fatal or Coverage
// if startup cannot proceed.
func (b *Bootstrap) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	defer func() {
		if b.metrics != nil {
			b.metrics.BootstrapDuration.Observe(time.Since(start).Seconds())
		}
	}()

	endpointHost, endpointPort, endpointTLS := singleHostnameSeed(b.cfg.Seeds)

	var (
		nodes    []partition.RawNodeInfo
		seedURI  string
		attempts []string
		found    bool
	)
	for _, seed := range b.cfg.Seeds {
		if err := b.limiter.Wait(ctx); err != nil {
			return nil, clustererr.New(clustererr.Fatal, "bootstrap canceled", err)
		}

		n, err := b.attemptSeed(ctx, seed)
		if err != nil {
			attempts = append(attempts, fmt.Sprintf("%s: %v", seed.String(), err))
			b.recordAttempt("failure")
			continue
		}
		nodes, seedURI = n, seed.String()
		b.recordAttempt("success")
		found = true
		break
	}
	if !found {
		return nil, clustererr.NewWithAddr(clustererr.Fatal, seedList(b.cfg.Seeds), "every seed was exhausted", joinAttempts(attempts))
	}

	partitions, err := b.parser.Parse(ctx, nodes)
	if err != nil {
		return nil, clustererr.New(clustererr.Fatal, "failed to parse bootstrap snapshot", err)
	}

	var toAdd []*partition.ClusterPartition
	for _, p := range partitions {
		if !p.MasterFail && p.Slots.Count() > 0 {
			toAdd = append(toAdd, p)
		}
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		added  []*partition.ClusterPartition
		failed []string
	)
	for _, p := range toAdd {
		wg.Add(1)
		go func(p *partition.ClusterPartition) {
			defer wg.Done()
			if _, err := b.registry.AddMasterEntry(ctx, p); err != nil {
				mu.Lock()
				failed = append(failed, fmt.Sprintf("%s: %v", p.MasterAddress.String(), err))
				mu.Unlock()
				return
			}
			mu.Lock()
			added = append(added, p)
			mu.Unlock()
		}(p)
	}
	wg.Wait()

	if len(added) == 0 {
		return nil, clustererr.New(clustererr.Fatal, fmt.Sprintf("no master could be onboarded, failed masters: %v", failed), nil)
	}
	if len(failed) > 0 {
		b.log.Warn("bootstrap: some masters failed to onboard", "failed", failed)
	}

	if b.cfg.StrictCoverage {
		if covered := b.router.Covered(); covered < 16384 {
			return nil, clustererr.New(clustererr.Coverage, fmt.Sprintf("only %d of 16384 slots covered after bootstrap", covered), nil)
		}
	}

	return &Result{
		Partitions:         added,
		SeedURI:            seedURI,
		ConfigEndpointHost: endpointHost,
		ConfigEndpointPort: endpointPort,
		ConfigEndpointTLS:  endpointTLS,
	}, nil
}

func (b *Bootstrap) attemptSeed(ctx context.Context, seed pool.NodeAddress) ([]partition.RawNodeInfo, error) {
	conn, err := wire.Dial(ctx, seed, b.cfg.TLSConfig, "", b.cfg.DialTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	raw, err := conn.FetchClusterNodes(time.Now().Add(b.cfg.DialTimeout))
	if err != nil {
		return nil, err
	}
	return wire.ParseClusterNodes(raw)
}

func (b *Bootstrap) recordAttempt(result string) {
	if b.metrics != nil {
		b.metrics.BootstrapAttempts.WithLabelValues(result).Inc()
	}
}

// singleHostnameSeed returns the seed hostname to record as the
// endpoint-hostname candidate strategy, but only when exactly one seed
// is not a literal IP address.
func singleHostnameSeed(seeds []pool.NodeAddress) (host string, port int, tlsOn bool) {
	var match pool.NodeAddress
	count := 0
	for _, s := range seeds {
		if net.ParseIP(s.Host) == nil {
			count++
			match = s
		}
	}
	if count == 1 {
		return match.Host, match.Port, match.TLS
	}
	return "", 0, false
}

func seedList(seeds []pool.NodeAddress) string {
	out := ""
	for i, s := range seeds {
		if i > 0 {
			out += ","
		}
		out += s.String()
	}
	return out
}

func joinAttempts(attempts []string) error {
	if len(attempts) == 0 {
		return nil
	}
	msg := attempts[0]
	for _, a := range attempts[1:] {
		msg += "; " + a
	}
	return fmt.Errorf("%s", msg)
}
