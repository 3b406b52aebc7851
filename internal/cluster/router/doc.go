// Package router holds the slot-to-entry routing table every request
// consults on the hot path.
//
// EntryForSlot is a single atomic load against a fixed-size array; no
// lock is ever taken on a read. Install and Evict are the only writers;
// they are called by the entry registry, by the topology monitor's diff
// passes (whose ticks never run concurrently with each other), and by
// Manager.ChangeMaster.
package router
