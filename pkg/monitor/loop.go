// Package monitor implements the observe/check/reconcile cycle: poll a
// Subject, evaluate registered invariants, and open or auto-close tickets
// in the shared store. The loop is single-threaded and cooperative; a
// context cancellation is the only concurrency primitive it needs.
package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/codeready-toolchain/operator/pkg/invariant"
	"github.com/codeready-toolchain/operator/pkg/model"
	"github.com/codeready-toolchain/operator/pkg/store"
	"github.com/codeready-toolchain/operator/pkg/subject"
)

// ObserveTimeout bounds how long a single subject.Observe call may block.
const ObserveTimeout = 10 * time.Second

// Loop drives the monitor's observe/check/reconcile cycle at a fixed
// cadence.
type Loop struct {
	subject    subject.Subject
	invariants []invariant.Invariant
	store      *store.Store
	interval   time.Duration
	log        *slog.Logger

	grace *graceTracker
}

// New creates a monitor loop for subj, evaluating invariants every
// interval and persisting tickets through st.
func New(subj subject.Subject, invariants []invariant.Invariant, st *store.Store, interval time.Duration, log *slog.Logger) *Loop {
	if log == nil {
		log = slog.Default()
	}
	return &Loop{
		subject:    subj,
		invariants: invariants,
		store:      st,
		interval:   interval,
		log:        log,
		grace:      newGraceTracker(),
	}
}

// Run executes ticks until ctx is cancelled. It completes the current tick
// before observing cancellation — the "complete current tick, then exit"
// shutdown semantics of spec.md §4.2.
func (l *Loop) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	l.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			l.log.Info("monitor loop shutting down")
			return nil
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// tick runs exactly one observe/check/reconcile cycle. Errors are logged,
// never propagated — the monitor never crashes the process over a single
// bad cycle (spec.md §4.2 "Failure handling").
func (l *Loop) tick(ctx context.Context) {
	obsCtx, cancel := context.WithTimeout(ctx, ObserveTimeout)
	obs, err := l.subject.Observe(obsCtx)
	cancel()
	if err != nil {
		l.log.Warn("subject observation failed, skipping reconciliation", "error", err)
		return
	}

	observed := make(map[invariant.Tracked]subject.Violation)

	for _, inv := range l.invariants {
		violations, err := inv.Evaluate(obs)
		if err != nil {
			l.log.Error("invariant evaluation failed", "invariant", inv.Name, "error", err)
			continue
		}
		for _, v := range violations {
			observed[invariant.Tracked{InvariantName: inv.Name, Key: v.Key}] = v
		}
	}

	tracked, err := l.trackedTickets(ctx)
	if err != nil {
		l.log.Error("listing tracked tickets failed", "error", err)
		return
	}

	l.reconcileOpens(ctx, observed, tracked)
	l.reconcileCloses(ctx, observed, tracked)
}

// reconcileOpens opens tickets for newly-observed violations once they have
// persisted across the invariant's grace period, counted in consecutive
// poll cycles rather than wall-clock elapsed time (spec.md §8 scenario 2).
func (l *Loop) reconcileOpens(ctx context.Context, observed map[invariant.Tracked]subject.Violation, tracked map[invariant.Tracked]*model.Ticket) {
	invBySeverity := make(map[string]invariant.Invariant, len(l.invariants))
	for _, inv := range l.invariants {
		invBySeverity[inv.Name] = inv
	}

	// A key missing from this cycle breaks its run of consecutive cycles.
	for key := range l.grace.cycles {
		if _, seen := observed[key]; !seen {
			l.grace.clear(key)
		}
	}

	for key, violation := range observed {
		if _, isTracked := tracked[key]; isTracked {
			l.grace.clear(key)
			continue
		}

		inv, ok := invBySeverity[key.InvariantName]
		if !ok {
			continue
		}
		gracePeriod := time.Duration(inv.GracePeriodSec) * time.Second
		if !l.grace.observe(key, gracePeriod, l.interval) {
			continue
		}

		details := invariant.WithViolationKey(violation.Key, violation.Details)
		ticketID, err := l.store.OpenTicket(ctx, key.InvariantName, inv.SubjectName, violation.Key, model.Severity(violation.Severity), details)
		if err != nil {
			l.log.Error("failed to open ticket", "invariant", key.InvariantName, "key", key.Key, "error", err)
			continue
		}
		l.grace.clear(key)
		l.log.Info("opened ticket", "ticket_id", ticketID, "invariant", key.InvariantName, "key", key.Key)
	}
}

// reconcileCloses auto-closes tickets whose violation has cleared, but only
// if the ticket was never claimed. A ticket that is in_progress is left
// alone — the agent owns resolution once it has started working
// (spec.md §4.2 "Auto-close" rationale).
func (l *Loop) reconcileCloses(ctx context.Context, observed map[invariant.Tracked]subject.Violation, tracked map[invariant.Tracked]*model.Ticket) {
	for key, ticket := range tracked {
		if _, stillObserved := observed[key]; stillObserved {
			continue
		}
		l.grace.clear(key)
		if ticket.Status != model.TicketOpen {
			continue
		}
		if err := l.store.ResolveTicket(ctx, ticket.ID, "invariant cleared"); err != nil {
			l.log.Error("failed to auto-close ticket", "ticket_id", ticket.ID, "error", err)
		}
	}
}

// trackedTickets returns every currently open or in_progress ticket, keyed
// by (invariant_name, violation_key).
func (l *Loop) trackedTickets(ctx context.Context) (map[invariant.Tracked]*model.Ticket, error) {
	out := make(map[invariant.Tracked]*model.Ticket)
	for _, status := range []model.TicketStatus{model.TicketOpen, model.TicketInProgress} {
		tickets, err := l.store.ListTickets(ctx, store.TicketFilter{Status: status})
		if err != nil {
			return nil, err
		}
		for i := range tickets {
			t := tickets[i]
			out[invariant.Tracked{InvariantName: t.InvariantName, Key: t.ViolationKey}] = &t
		}
	}
	return out, nil
}
