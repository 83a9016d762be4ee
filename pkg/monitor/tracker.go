package monitor

import (
	"time"

	"github.com/codeready-toolchain/operator/pkg/invariant"
)

// graceTracker holds per-key consecutive-observation counts in memory so the
// monitor can require a violation to persist across grace_period_sec/interval
// cycles (rounded up) before opening a ticket, per spec.md §8 scenario 2's
// tick-based definition of persistence rather than a wall-clock duration. It
// is explicitly lossy across process restarts (spec.md §4.2 step 4) —
// acceptable because the grace window simply restarts.
type graceTracker struct {
	cycles map[invariant.Tracked]int
}

func newGraceTracker() *graceTracker {
	return &graceTracker{cycles: make(map[invariant.Tracked]int)}
}

// observe records that key was seen for one more cycle and reports whether
// it has now been observed for at least requiredCycles(gracePeriod, interval)
// consecutive cycles.
func (g *graceTracker) observe(key invariant.Tracked, gracePeriod, interval time.Duration) bool {
	g.cycles[key]++
	return g.cycles[key] >= requiredCycles(gracePeriod, interval)
}

// requiredCycles converts a grace period into the number of consecutive
// poll cycles it spans, rounding up: a violation observed on cycles
// 1, 2, ..., requiredCycles is the one that opens a ticket.
func requiredCycles(gracePeriod, interval time.Duration) int {
	if gracePeriod <= 0 || interval <= 0 {
		return 1
	}
	n := int(gracePeriod / interval)
	if gracePeriod%interval != 0 {
		n++
	}
	if n < 1 {
		n = 1
	}
	return n
}

// clear drops a key's cycle count, called once a ticket has been opened for
// it (or once it's no longer observed) so a later recurrence starts its own
// fresh grace window.
func (g *graceTracker) clear(key invariant.Tracked) {
	delete(g.cycles, key)
}
