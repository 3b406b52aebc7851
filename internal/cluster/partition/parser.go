package partition

import (
	"context"
	"sync"

	"github.com/tokshard/clustermap-go/internal/telemetry/logger"
	"github.com/tokshard/clustermap-go/pool"
	"github.com/tokshard/clustermap-go/resolver"
)

// Parser turns a snapshot of RawNodeInfo into a canonical set of master
// ClusterPartitions, resolving addresses and flattening cascade slaves
// along the way.
type Parser struct {
	resolver resolver.Resolver
	log      logger.Logger
}

// NewParser builds a Parser that resolves addresses through r.
func NewParser(r resolver.Resolver) *Parser {
	return &Parser{resolver: r, log: logger.Default()}
}

// WithLogger overrides the parser's logger.
func (p *Parser) WithLogger(l logger.Logger) *Parser {
	p.log = l
	return p
}

// builder is the parser-local, mutable representation of a partition in
// progress. The parent pointer exists only to let step 7 flatten cascade
// slaves and never escapes Parse.
type builder struct {
	nodeID NodeID

	typ    Type
	parent *builder

	masterAddress    pool.NodeAddress
	masterAddressSet bool
	masterFail       bool

	slaveAddresses       map[pool.NodeAddress]struct{}
	failedSlaveAddresses map[pool.NodeAddress]struct{}

	slotRanges []SlotRange
}

func newBuilder(id NodeID) *builder {
	return &builder{
		nodeID:               id,
		slaveAddresses:       make(map[pool.NodeAddress]struct{}),
		failedSlaveAddresses: make(map[pool.NodeAddress]struct{}),
	}
}

// resolvedNode pairs a raw gossip record with its resolved, literal-IP
// address.
type resolvedNode struct {
	raw  RawNodeInfo
	addr pool.NodeAddress
}

// Parse implements spec steps 1-8.
func (p *Parser) Parse(ctx context.Context, nodes []RawNodeInfo) ([]*ClusterPartition, error) {
	resolved := p.resolveAll(ctx, nodes)

	partitions := make(map[NodeID]*builder)
	getOrCreate := func(id NodeID) *builder {
		if b, ok := partitions[id]; ok {
			return b
		}
		b := newBuilder(id)
		partitions[id] = b
		return b
	}

	for _, rn := range resolved {
		node := rn.raw

		effectiveMasterID := node.NodeID
		if node.Flags.Has(FlagSlave) {
			effectiveMasterID = node.SlaveOf
		}
		if effectiveMasterID == "" {
			continue
		}

		if node.Flags.Has(FlagSlave) {
			masterB := getOrCreate(effectiveMasterID)
			slaveB := getOrCreate(node.NodeID)
			slaveB.typ = Slave
			slaveB.parent = masterB

			masterB.slaveAddresses[rn.addr] = struct{}{}
			if node.Flags.Has(FlagFail) {
				masterB.failedSlaveAddresses[rn.addr] = struct{}{}
			}
			continue
		}

		masterB := getOrCreate(node.NodeID)
		masterB.typ = Master
		masterB.slotRanges = append(masterB.slotRanges, node.SlotRanges...)
		masterB.masterAddress = rn.addr
		masterB.masterAddressSet = true
		if node.Flags.Has(FlagFail) {
			masterB.masterFail = true
		}
	}

	flattenCascadeSlaves(partitions)

	out := make([]*ClusterPartition, 0, len(partitions))
	for _, b := range partitions {
		if b.typ != Master || !b.masterAddressSet {
			continue
		}
		out = append(out, &ClusterPartition{
			NodeID:               b.nodeID,
			Type:                 Master,
			MasterAddress:        b.masterAddress,
			MasterFail:           b.masterFail,
			SlaveAddresses:       b.slaveAddresses,
			FailedSlaveAddresses: b.failedSlaveAddresses,
			SlotRanges:           b.slotRanges,
			Slots:                BitsetFromRanges(b.slotRanges),
		})
	}

	return out, nil
}

// flattenCascadeSlaves repeatedly folds slave-typed builders into their
// parent until none remain, so that a slave-of-a-slave ends up attached
// directly to the ultimate master.
func flattenCascadeSlaves(partitions map[NodeID]*builder) {
	for {
		changed := false
		for id, b := range partitions {
			if b.typ != Slave || b.parent == nil {
				continue
			}
			root := b.parent
			for hops := 0; root.typ == Slave && root.parent != nil && hops < len(partitions); hops++ {
				root = root.parent
			}
			for addr := range b.slaveAddresses {
				root.slaveAddresses[addr] = struct{}{}
			}
			for addr := range b.failedSlaveAddresses {
				root.failedSlaveAddresses[addr] = struct{}{}
			}
			delete(partitions, id)
			changed = true
		}
		if !changed {
			return
		}
	}
}

// resolveAll applies steps 1 and 4: drop structurally invalid nodes,
// then resolve every remaining node's address concurrently. A resolution
// failure drops only the offending node.
func (p *Parser) resolveAll(ctx context.Context, nodes []RawNodeInfo) []resolvedNode {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		out []resolvedNode
	)

	for _, node := range nodes {
		if node.Flags.Has(FlagNoAddr) || node.Flags.Has(FlagHandshake) {
			continue
		}
		if node.Address == nil {
			continue
		}
		if !node.Flags.Has(FlagSlave) && len(node.SlotRanges) == 0 {
			continue
		}

		node := node
		wg.Add(1)
		go func() {
			defer wg.Done()

			ips, err := p.resolver.ResolveAll(ctx, node.Address.Host)
			if err != nil || len(ips) == 0 {
				p.log.Warn("dropping node: address resolution failed",
					"node_id", string(node.NodeID),
					"host", node.Address.Host,
					"error", err,
				)
				return
			}

			addr := pool.NodeAddress{
				Host: ips[0].String(),
				Port: node.Address.Port,
				TLS:  node.Address.TLS,
			}

			mu.Lock()
			out = append(out, resolvedNode{raw: node, addr: addr})
			mu.Unlock()
		}()
	}

	wg.Wait()
	return out
}
