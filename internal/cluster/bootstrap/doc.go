// Package bootstrap performs the one-time seed walk that gives the
// topology manager its first view of the cluster: dial each configured
// seed in order, fetch and parse its CLUSTER NODES snapshot, and
// onboard every non-failed master the snapshot describes.
//
// A successful bootstrap feeds the monitor its initial state and the
// seed it used as last_cluster_node; an exhausted seed list, a parse
// that onboards zero masters, or (in strict mode) incomplete slot
// coverage are all fatal startup errors.
package bootstrap
