// Package registry owns the lifecycle of every entry installed into
// the slot router: it pairs a partition's pool.Pool with a refcount,
// keeps the client-to-entry reverse index used to answer
// entry_for_client, and tears an entry down exactly once its last
// reference is released.
//
// The registry installs an entry's slots when it onboards the entry and
// evicts slots through RemoveEntry and ShutdownAll; the monitor's diff
// passes and Manager.ChangeMaster also call router.Install directly.
// AddMasterEntry may run concurrently for different partitions (bootstrap
// and the master-change pass onboard masters in parallel); the indexes
// are guarded by a mutex.
package registry
