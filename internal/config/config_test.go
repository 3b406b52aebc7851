package config

import "testing"

func TestValidate_RequiresAtLeastOneSeed(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() should fail with no seed addresses")
	}
}

func TestValidate_RejectsUnknownReadMode(t *testing.T) {
	cfg := Default()
	cfg.Nodes.Addresses = []string{"10.0.0.1:7000"}
	cfg.Manager.ReadMode = "BOGUS"

	if err := cfg.Validate(); err == nil {
		t.Fatal("Validate() should reject an unrecognized read mode")
	}
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	cfg := Default()
	cfg.Nodes.Addresses = []string{"10.0.0.1:7000", "10.0.0.2:7000"}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestSeedAddresses(t *testing.T) {
	cfg := Default()
	cfg.Nodes.Addresses = []string{"10.0.0.1:7000", "cluster.internal:7001"}

	addrs, err := cfg.SeedAddresses()
	if err != nil {
		t.Fatalf("SeedAddresses() error = %v", err)
	}
	if len(addrs) != 2 {
		t.Fatalf("len(addrs) = %d, want 2", len(addrs))
	}
	if addrs[0].Host != "10.0.0.1" || addrs[0].Port != 7000 {
		t.Errorf("addrs[0] = %+v, want 10.0.0.1:7000", addrs[0])
	}
}

func TestSeedAddresses_RejectsMalformed(t *testing.T) {
	cfg := Default()
	cfg.Nodes.Addresses = []string{"not-a-host-port"}

	if _, err := cfg.SeedAddresses(); err == nil {
		t.Fatal("SeedAddresses() should fail on a malformed address")
	}
}

func TestNATTable(t *testing.T) {
	cfg := Default()
	cfg.NAT.Map = []NATEntry{
		{External: "203.0.113.1:7000", Internal: "10.0.0.1:7000"},
	}

	table, err := cfg.NATTable()
	if err != nil {
		t.Fatalf("NATTable() error = %v", err)
	}
	if len(table) != 1 {
		t.Fatalf("len(table) = %d, want 1", len(table))
	}
}

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	_, err := Load("")
	if err == nil {
		t.Fatal("Load() should fail validation with no seed addresses configured")
	}
}

func TestTLSConfig_DisabledReturnsNil(t *testing.T) {
	cfg := Default()

	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		t.Fatalf("TLSConfig() error = %v", err)
	}
	if tlsCfg != nil {
		t.Error("TLSConfig() should return nil when tls.enabled is false")
	}
}

func TestTLSConfig_EnabledWithoutCertFiles(t *testing.T) {
	cfg := Default()
	cfg.TLS.Enabled = true
	cfg.TLS.InsecureSkipVerify = true

	tlsCfg, err := cfg.TLSConfig()
	if err != nil {
		t.Fatalf("TLSConfig() error = %v", err)
	}
	if tlsCfg == nil {
		t.Fatal("TLSConfig() returned nil")
	}
	if !tlsCfg.InsecureSkipVerify {
		t.Error("TLSConfig() did not apply insecure_skip_verify")
	}
	if len(tlsCfg.Certificates) != 0 {
		t.Error("TLSConfig() should not set Certificates without cert_file/key_file")
	}
}

func TestTLSConfig_MissingCAFile(t *testing.T) {
	cfg := Default()
	cfg.TLS.Enabled = true
	cfg.TLS.CAFile = "/nonexistent/ca.pem"

	if _, err := cfg.TLSConfig(); err == nil {
		t.Fatal("TLSConfig() should fail when ca_file cannot be read")
	}
}
