// Package monitor runs the periodic topology reconciliation loop: it
// fetches a fresh CLUSTER NODES snapshot from a candidate node, parses
// it, and diffs the result against the last accepted state in a fixed
// order — master change, slave change, slot migration, slot coverage
// change — applying router and pool mutations as it goes.
//
// A tick never runs concurrently with itself: each tick reschedules
// the next one only from its own terminal step, and the shutdown latch
// guarantees no network call starts once shutdown has begun.
package monitor
