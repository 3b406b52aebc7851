package wire

import (
	"net"
	"strconv"
	"strings"

	"github.com/tokshard/clustermap-go/internal/cluster/clustererr"
	"github.com/tokshard/clustermap-go/internal/cluster/partition"
	"github.com/tokshard/clustermap-go/pool"
)

// ParseClusterNodes decodes a CLUSTER NODES snapshot into RawNodeInfo
// records, one per reported line. It accepts the standard
//
//	<id> <ip:port@cport[,hostname]> <flags> <master> <ping-sent> <pong-recv> <config-epoch> <link-state> [<slot>...]
//
// line shape and ignores importing/migrating slot annotations
// (bracketed tokens), since the manager only tracks settled ownership.
func ParseClusterNodes(raw string) ([]partition.RawNodeInfo, error) {
	lines := strings.Split(strings.TrimSpace(raw), "\n")

	out := make([]partition.RawNodeInfo, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		node, err := parseNodeLine(line)
		if err != nil {
			return nil, err
		}
		out = append(out, node)
	}

	if len(out) == 0 {
		return nil, clustererr.New(clustererr.Protocol, "empty CLUSTER NODES response", nil)
	}
	return out, nil
}

func parseNodeLine(line string) (partition.RawNodeInfo, error) {
	fields := strings.Fields(line)
	if len(fields) < 8 {
		return partition.RawNodeInfo{}, clustererr.New(clustererr.Protocol, "malformed CLUSTER NODES line: "+line, nil)
	}

	flags := parseFlags(fields[2])

	var slaveOf partition.NodeID
	if fields[3] != "-" {
		slaveOf = partition.NodeID(fields[3])
	}

	return partition.RawNodeInfo{
		NodeID:     partition.NodeID(fields[0]),
		Address:    parseAddress(fields[1]),
		Flags:      flags,
		SlaveOf:    slaveOf,
		SlotRanges: parseSlotRanges(fields[8:]),
	}, nil
}

func parseFlags(field string) partition.NodeFlags {
	var flags partition.NodeFlags
	for _, f := range strings.Split(field, ",") {
		switch f {
		case "master":
			flags |= partition.FlagMaster
		case "slave", "replica":
			flags |= partition.FlagSlave
		case "fail", "fail?":
			flags |= partition.FlagFail
		case "noaddr":
			flags |= partition.FlagNoAddr
		case "handshake":
			flags |= partition.FlagHandshake
		}
	}
	return flags
}

// parseAddress splits the "ip:port@cport[,hostname]" address field.
// It returns nil for a NOADDR placeholder such as ":0@0".
func parseAddress(field string) *pool.NodeAddress {
	hostPort := strings.SplitN(field, "@", 2)[0]
	if hostPort == "" || hostPort == ":0" {
		return nil
	}
	host, portStr, err := net.SplitHostPort(hostPort)
	if err != nil {
		return nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil
	}
	return &pool.NodeAddress{Host: host, Port: port}
}

// parseSlotRanges parses the trailing slot tokens of a CLUSTER NODES
// line, skipping bracketed importing/migrating annotations such as
// "[1-<-073fa...]".
func parseSlotRanges(tokens []string) []partition.SlotRange {
	var ranges []partition.SlotRange
	for _, tok := range tokens {
		if strings.HasPrefix(tok, "[") {
			continue
		}
		parts := strings.SplitN(tok, "-", 2)
		start, err := strconv.Atoi(parts[0])
		if err != nil {
			continue
		}
		end := start
		if len(parts) == 2 {
			if end, err = strconv.Atoi(parts[1]); err != nil {
				continue
			}
		}
		ranges = append(ranges, partition.SlotRange{Start: start, End: end})
	}
	return ranges
}
