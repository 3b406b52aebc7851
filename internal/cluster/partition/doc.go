// Package partition turns a cluster's raw gossip node table into a
// canonical set of master partitions, one per live master, with slave
// addresses and the slots each partition owns resolved and attached.
//
//   - types.go: RawNodeInfo, ClusterPartition, SlotRange, Bitset
//   - parser.go: the parsing and cascade-slave-flattening procedure
//
// @design DS-0403
package partition
