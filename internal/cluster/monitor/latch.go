package monitor

import (
	"sync"
	"sync/atomic"
)

// latch gates every network call a tick makes against an in-progress
// shutdown. A tick acquires it before opening any connection and
// releases it on every exit path, including error returns. Shutdown
// closes the latch so no new acquisition can succeed, then waits for
// every already-acquired holder to release.
type latch struct {
	closed atomic.Bool
	wg     sync.WaitGroup
}

// acquire reports whether the caller may proceed. A false result means
// shutdown is in progress and the caller must abort immediately
// without having touched the network.
func (l *latch) acquire() bool {
	if l.closed.Load() {
		return false
	}
	l.wg.Add(1)
	if l.closed.Load() {
		l.wg.Done()
		return false
	}
	return true
}

// release must be called exactly once for every acquire that returned true.
func (l *latch) release() {
	l.wg.Done()
}

// closeAndWait closes the latch to new acquisitions and blocks until
// every outstanding holder has released.
func (l *latch) closeAndWait() {
	l.closed.Store(true)
	l.wg.Wait()
}
