package monitor

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tokshard/clustermap-go/internal/cluster/partition"
	"github.com/tokshard/clustermap-go/internal/telemetry/logger"
)

// newTickID mints a correlation ID for a single reconciliation tick,
// so every log line it produces can be traced back to it.
func newTickID() string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return ""
	}
	return id.String()
}

// runTick performs one reconciliation pass: pick a candidate, fetch
// and parse its snapshot, then run the four diff passes in order.
// Any failure along the way leaves state untouched; the tick always
// returns so the caller can reschedule the next one.
func (m *Monitor) runTick(ctx context.Context) {
	tickID := newTickID()
	ctx = logger.WithTickID(ctx, tickID)
	m.log = m.baseLog.With("tick_id", tickID)

	candidates := m.buildCandidates(ctx)

	var (
		nodes   []partition.RawNodeInfo
		chosen  string
		success bool
	)
	for _, addr := range candidates {
		if !m.latch.acquire() {
			return // shutdown in progress; abort the tick silently
		}
		n, ok := m.attemptCandidate(ctx, addr)
		m.latch.release()
		if ok {
			nodes, chosen, success = n, addr.String(), true
			break
		}
	}
	if !success {
		if m.metrics != nil {
			m.metrics.TickTotal.WithLabelValues("no_candidate").Inc()
		}
		return
	}

	newParts, err := m.parser.Parse(ctx, nodes)
	if err != nil {
		m.log.Error("tick: parse failed", "error", err)
		if m.metrics != nil {
			m.metrics.TickTotal.WithLabelValues("parse_error").Inc()
		}
		return
	}

	m.mu.Lock()
	m.lastClusterNode = chosen
	working := cloneCurrentLocked(m.current)
	m.mu.Unlock()

	newByID := indexByNodeID(newParts)
	changedSlots := make(map[int]struct{})

	m.masterChange(ctx, working, newParts, newByID, changedSlots)
	m.slaveChange(ctx, working, newParts)
	m.slotMigration(working, newParts, newByID, changedSlots)
	m.slotCoverageChange(working, newParts, changedSlots)

	for slot := range changedSlots {
		m.sub.ReattachPubsub(slot)
	}

	m.mu.Lock()
	m.current = working
	m.mu.Unlock()

	if m.metrics != nil {
		m.metrics.TickTotal.WithLabelValues("ok").Inc()
		m.metrics.RouterSlotsCovered.Set(float64(m.router.Covered()))
	}
}
