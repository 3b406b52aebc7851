package config

import (
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/tokshard/clustermap-go/internal/tlsroots"
	"github.com/tokshard/clustermap-go/pool"
)

// ReadMode controls which members of a master/slave entry serve reads.
type ReadMode string

const (
	ReadMaster      ReadMode = "MASTER"
	ReadSlave       ReadMode = "SLAVE"
	ReadMasterSlave ReadMode = "MASTER_SLAVE"
)

// Config is the root configuration for the topology manager.
type Config struct {
	Manager ManagerSection `koanf:"manager"`
	Nodes   NodesSection   `koanf:"nodes"`
	TLS     TLSSection     `koanf:"tls"`
	NAT     NATSection     `koanf:"nat"`
	Log     LogSection     `koanf:"log"`
}

// ManagerSection configures the reconciliation loop and read behavior.
type ManagerSection struct {
	ScanIntervalMS      int      `koanf:"scan_interval_ms"`
	CheckSlotsCoverage  bool     `koanf:"check_slots_coverage"`
	ReadMode            ReadMode `koanf:"read_mode"`
	CheckSkipSlavesInit bool     `koanf:"check_skip_slaves_init"`
	DialTimeoutMS       int      `koanf:"dial_timeout_ms"`
	ConnectRatePerSec   float64  `koanf:"connect_rate_per_sec"`
	ConnectBurst        int      `koanf:"connect_burst"`
}

// NodesSection configures the seed address list.
type NodesSection struct {
	Addresses []string `koanf:"addresses"`
}

// TLSSection configures TLS for control connections to cluster nodes.
type TLSSection struct {
	Enabled            bool   `koanf:"enabled"`
	CAFile             string `koanf:"ca_file"`
	CertFile           string `koanf:"cert_file"`
	KeyFile            string `koanf:"key_file"`
	InsecureSkipVerify bool   `koanf:"insecure_skip_verify"`
}

// NATEntry pairs the internal address a cluster node actually gossips
// with the externally-visible address it is reached at.
type NATEntry struct {
	External string `koanf:"external"`
	Internal string `koanf:"internal"`
}

// NATSection configures static NAT address rewriting.
type NATSection struct {
	Map []NATEntry `koanf:"map"`
}

// LogSection configures logging, matching the rest of the client
// library's logger.Config shape.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the manager's default configuration.
func Default() Config {
	return Config{
		Manager: ManagerSection{
			ScanIntervalMS:    1000,
			ReadMode:          ReadMaster,
			DialTimeoutMS:     2000,
			ConnectRatePerSec: 10,
			ConnectBurst:      10,
		},
		Log: LogSection{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks invariants Load cannot express through struct tags
// alone.
func (c Config) Validate() error {
	if len(c.Nodes.Addresses) == 0 {
		return fmt.Errorf("config: nodes.addresses must list at least one seed")
	}
	switch c.Manager.ReadMode {
	case ReadMaster, ReadSlave, ReadMasterSlave:
	default:
		return fmt.Errorf("config: manager.read_mode %q is not one of MASTER, SLAVE, MASTER_SLAVE", c.Manager.ReadMode)
	}
	for _, addr := range c.Nodes.Addresses {
		if _, _, err := parseHostPort(addr); err != nil {
			return fmt.Errorf("config: nodes.addresses: %w", err)
		}
	}
	return nil
}

// SeedAddresses resolves nodes.addresses into pool.NodeAddress values.
func (c Config) SeedAddresses() ([]pool.NodeAddress, error) {
	out := make([]pool.NodeAddress, 0, len(c.Nodes.Addresses))
	for _, addr := range c.Nodes.Addresses {
		host, port, err := parseHostPort(addr)
		if err != nil {
			return nil, err
		}
		out = append(out, pool.NodeAddress{Host: host, Port: port, TLS: c.TLS.Enabled})
	}
	return out, nil
}

// NATTable builds the static address-rewrite table natmap.NewStatic
// expects.
func (c Config) NATTable() (map[pool.NodeAddress]pool.NodeAddress, error) {
	table := make(map[pool.NodeAddress]pool.NodeAddress, len(c.NAT.Map))
	for _, entry := range c.NAT.Map {
		extHost, extPort, err := parseHostPort(entry.External)
		if err != nil {
			return nil, fmt.Errorf("config: nat.map external %q: %w", entry.External, err)
		}
		intHost, intPort, err := parseHostPort(entry.Internal)
		if err != nil {
			return nil, fmt.Errorf("config: nat.map internal %q: %w", entry.Internal, err)
		}
		table[pool.NodeAddress{Host: intHost, Port: intPort, TLS: c.TLS.Enabled}] = pool.NodeAddress{Host: extHost, Port: extPort, TLS: c.TLS.Enabled}
	}
	return table, nil
}

// TLSConfig builds the dial-side tls.Config the manager uses for its
// control connections to seed and candidate nodes, from the ca_file/
// cert_file/key_file/insecure_skip_verify settings in the tls section.
// It returns nil, nil when TLS is disabled.
func (c Config) TLSConfig() (*tls.Config, error) {
	if !c.TLS.Enabled {
		return nil, nil
	}

	pool, err := tlsroots.NewPool()
	if err != nil {
		return nil, fmt.Errorf("config: tls: %w", err)
	}
	if c.TLS.CAFile != "" {
		if err := pool.AddCertFile(c.TLS.CAFile); err != nil {
			return nil, fmt.Errorf("config: tls: ca_file: %w", err)
		}
	}

	var cfg *tls.Config
	if c.TLS.CertFile != "" && c.TLS.KeyFile != "" {
		cfg, err = pool.ClientTLSConfig(c.TLS.CertFile, c.TLS.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("config: tls: %w", err)
		}
	} else {
		cfg = pool.TLSConfig()
	}

	cfg.InsecureSkipVerify = c.TLS.InsecureSkipVerify
	return cfg, nil
}

func parseHostPort(addr string) (string, int, error) {
	host, portStr, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return "", 0, fmt.Errorf("invalid host:port %q: %w", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("invalid port in %q: %w", addr, err)
	}
	return host, port, nil
}
