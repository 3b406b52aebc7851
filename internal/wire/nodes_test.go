package wire

import (
	"testing"

	"github.com/tokshard/clustermap-go/internal/cluster/clustererr"
	"github.com/tokshard/clustermap-go/internal/cluster/partition"
)

const sampleSnapshot = `07c37dfeb235213a872192d90877d0cd55635b91 127.0.0.1:30004@31004 slave e7d1eecce10fd6bb5eb35b9f99a514335d9ba9ca 0 1426238317239 4 connected
67ed2db8d677e59ec4a4cefb06858cf2a1a89fa1 127.0.0.1:30002@31002 master - 0 1426238316232 2 connected 5461-10922
292f8b365bb7edb5e285caf0b7e6ddc7265d2f4f 127.0.0.1:30001@31001 myself,master - 0 0 1 connected 0-5460
e7d1eecce10fd6bb5eb35b9f99a514335d9ba9ca 127.0.0.1:30005@31005 master - 0 1426238316232 3 connected 10923-16383
`

func TestParseClusterNodes_Basic(t *testing.T) {
	nodes, err := ParseClusterNodes(sampleSnapshot)
	if err != nil {
		t.Fatalf("ParseClusterNodes() error = %v", err)
	}
	if len(nodes) != 4 {
		t.Fatalf("len(nodes) = %d, want 4", len(nodes))
	}

	slave := nodes[0]
	if !slave.Flags.Has(partition.FlagSlave) {
		t.Error("first node should be flagged slave")
	}
	if slave.SlaveOf != "e7d1eecce10fd6bb5eb35b9f99a514335d9ba9ca" {
		t.Errorf("SlaveOf = %q, want master node ID", slave.SlaveOf)
	}
	if slave.Address == nil || slave.Address.Host != "127.0.0.1" || slave.Address.Port != 30004 {
		t.Errorf("Address = %+v, want 127.0.0.1:30004", slave.Address)
	}

	master := nodes[1]
	if !master.Flags.Has(partition.FlagMaster) {
		t.Error("second node should be flagged master")
	}
	if len(master.SlotRanges) != 1 || master.SlotRanges[0] != (partition.SlotRange{Start: 5461, End: 10922}) {
		t.Errorf("SlotRanges = %v, want [{5461 10922}]", master.SlotRanges)
	}
}

func TestParseClusterNodes_SkipsImportingMigratingAnnotations(t *testing.T) {
	line := "id1 127.0.0.1:7000@17000 master - 0 0 1 connected 0-100 [101-<-id2]\n"
	nodes, err := ParseClusterNodes(line)
	if err != nil {
		t.Fatalf("ParseClusterNodes() error = %v", err)
	}
	if len(nodes[0].SlotRanges) != 1 {
		t.Fatalf("SlotRanges = %v, want only the settled range", nodes[0].SlotRanges)
	}
}

func TestParseClusterNodes_NoAddrPlaceholder(t *testing.T) {
	line := "id1 :0@0 master,noaddr - 0 0 1 connected\n"
	nodes, err := ParseClusterNodes(line)
	if err != nil {
		t.Fatalf("ParseClusterNodes() error = %v", err)
	}
	if nodes[0].Address != nil {
		t.Error("NOADDR placeholder should parse to a nil Address")
	}
	if !nodes[0].Flags.Has(partition.FlagNoAddr) {
		t.Error("node should be flagged NOADDR")
	}
}

func TestParseClusterNodes_EmptyInputIsProtocolError(t *testing.T) {
	_, err := ParseClusterNodes("")
	if !clustererr.Is(err, clustererr.Protocol) {
		t.Fatalf("ParseClusterNodes(\"\") error = %v, want a Protocol clustererr", err)
	}
}

func TestParseClusterNodes_MalformedLine(t *testing.T) {
	_, err := ParseClusterNodes("too short\n")
	if !clustererr.Is(err, clustererr.Protocol) {
		t.Fatalf("error = %v, want a Protocol clustererr", err)
	}
}
