package monitor

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/operator/pkg/invariant"
	"github.com/codeready-toolchain/operator/pkg/model"
	"github.com/codeready-toolchain/operator/pkg/store"
	"github.com/codeready-toolchain/operator/pkg/subject"
)

// scriptedSubject replays a fixed sequence of observations, one per Observe
// call, repeating the last one once the script is exhausted.
type scriptedSubject struct {
	mu     sync.Mutex
	script []subject.Observation
	idx    int
}

func (s *scriptedSubject) Name() string        { return "test-subject" }
func (s *scriptedSubject) Description() string { return "" }
func (s *scriptedSubject) IsHealthy(subject.Observation) bool { return true }

func (s *scriptedSubject) Observe(context.Context) (subject.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obs := s.script[s.idx]
	if s.idx < len(s.script)-1 {
		s.idx++
	}
	return obs, nil
}

func keyPresentInvariant(name string, gracePeriodSec int) invariant.Invariant {
	return invariant.Invariant{
		Name:           name,
		SubjectName:    "test-subject",
		Severity:       model.SeverityCritical,
		GracePeriodSec: gracePeriodSec,
		Evaluate: func(obs subject.Observation) ([]subject.Violation, error) {
			if present, _ := obs["violated"].(bool); !present {
				return nil, nil
			}
			return []subject.Violation{{
				InvariantName: name,
				Key:           "store-2",
				Severity:      string(model.SeverityCritical),
				Details:       map[string]any{"store_id": "store-2"},
			}}, nil
		},
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "operator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMonitor_DedupUnderPersistence(t *testing.T) {
	st := newTestStore(t)
	subj := &scriptedSubject{script: []subject.Observation{{"violated": true}}}
	loop := New(subj, []invariant.Invariant{keyPresentInvariant("quorum", 0)}, st, time.Millisecond, nil)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		loop.tick(ctx)
	}

	tickets, err := st.ListTickets(ctx, store.TicketFilter{})
	require.NoError(t, err)
	require.Len(t, tickets, 1, "exactly one ticket should exist after 5 cycles of the same violation")
}

func TestMonitor_GracePeriodDelaysOpen(t *testing.T) {
	st := newTestStore(t)
	subj := &scriptedSubject{script: []subject.Observation{{"violated": true}}}
	inv := keyPresentInvariant("quorum", 6)
	loop := New(subj, []invariant.Invariant{inv}, st, 2*time.Second, nil)

	ctx := context.Background()
	loop.tick(ctx) // tick 1: first sighting, 6s grace period cannot yet be satisfied

	tickets, err := st.ListTickets(ctx, store.TicketFilter{})
	require.NoError(t, err)
	require.Empty(t, tickets, "grace period not yet satisfied at first sighting")
}

// TestMonitor_GracePeriodOpensAtThirdTick exercises spec.md §8 scenario 2
// directly: grace_period_sec=6, interval=2s, the violation observed on
// ticks 1/2/3 opens a ticket at tick 3 (3 = ceil(6/2) consecutive cycles),
// not at 6 wall-clock seconds.
func TestMonitor_GracePeriodOpensAtThirdTick(t *testing.T) {
	st := newTestStore(t)
	subj := &scriptedSubject{script: []subject.Observation{{"violated": true}}}
	inv := keyPresentInvariant("quorum", 6)
	loop := New(subj, []invariant.Invariant{inv}, st, 2*time.Second, nil)

	ctx := context.Background()
	loop.tick(ctx) // tick 1
	loop.tick(ctx) // tick 2

	tickets, err := st.ListTickets(ctx, store.TicketFilter{})
	require.NoError(t, err)
	require.Empty(t, tickets, "grace period not yet satisfied after 2 of 3 required cycles")

	loop.tick(ctx) // tick 3

	tickets, err = st.ListTickets(ctx, store.TicketFilter{})
	require.NoError(t, err)
	require.Len(t, tickets, 1, "ticket must open at tick 3, the third consecutive 2s cycle of a 6s grace period")
}

func TestGraceTracker_OpensOnlyAfterPersistence(t *testing.T) {
	g := newGraceTracker()
	key := invariant.Tracked{InvariantName: "quorum", Key: "store-2"}
	grace := 6 * time.Second
	interval := 2 * time.Second

	require.False(t, g.observe(key, grace, interval), "tick 1")
	require.False(t, g.observe(key, grace, interval), "tick 2")
	require.True(t, g.observe(key, grace, interval), "tick 3: 3 consecutive cycles satisfies a 6s/2s grace period")
}

func TestRequiredCycles(t *testing.T) {
	tests := []struct {
		name        string
		gracePeriod time.Duration
		interval    time.Duration
		want        int
	}{
		{name: "exact multiple", gracePeriod: 6 * time.Second, interval: 2 * time.Second, want: 3},
		{name: "rounds up", gracePeriod: 5 * time.Second, interval: 2 * time.Second, want: 3},
		{name: "zero grace opens immediately", gracePeriod: 0, interval: 2 * time.Second, want: 1},
		{name: "sub-interval grace still needs one cycle", gracePeriod: time.Second, interval: 2 * time.Second, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, requiredCycles(tt.gracePeriod, tt.interval))
		})
	}
}

func TestMonitor_DoesNotAutoCloseInProgressTicket(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ticketID, err := st.OpenTicket(ctx, "quorum", "test-subject", "store-2", model.SeverityCritical, nil)
	require.NoError(t, err)
	_, err = st.ClaimOpenTicket(ctx, "sess-1")
	require.NoError(t, err)

	subj := &scriptedSubject{script: []subject.Observation{{"violated": false}}}
	loop := New(subj, []invariant.Invariant{keyPresentInvariant("quorum", 0)}, st, time.Second, nil)
	loop.tick(ctx)

	ticket, err := st.GetTicket(ctx, ticketID)
	require.NoError(t, err)
	require.Equal(t, model.TicketInProgress, ticket.Status, "monitor must never auto-close an in_progress ticket")
}

func TestMonitor_AutoClosesOpenTicketWhenCleared(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ticketID, err := st.OpenTicket(ctx, "quorum", "test-subject", "store-2", model.SeverityCritical, nil)
	require.NoError(t, err)

	subj := &scriptedSubject{script: []subject.Observation{{"violated": false}}}
	loop := New(subj, []invariant.Invariant{keyPresentInvariant("quorum", 0)}, st, time.Second, nil)
	loop.tick(ctx)

	ticket, err := st.GetTicket(ctx, ticketID)
	require.NoError(t, err)
	require.Equal(t, model.TicketResolved, ticket.Status)
	require.Equal(t, "invariant cleared", ticket.Diagnosis)
}

func TestMonitor_SubjectObserveFailureSkipsCycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	failing := &erroringSubject{}
	loop := New(failing, []invariant.Invariant{keyPresentInvariant("quorum", 0)}, st, time.Second, nil)
	loop.tick(ctx)

	tickets, err := st.ListTickets(ctx, store.TicketFilter{})
	require.NoError(t, err)
	require.Empty(t, tickets, "an observe failure must not open or close any ticket")
}

type erroringSubject struct{}

func (erroringSubject) Name() string        { return "broken" }
func (erroringSubject) Description() string { return "" }
func (erroringSubject) IsHealthy(subject.Observation) bool { return false }
func (erroringSubject) Observe(context.Context) (subject.Observation, error) {
	return nil, context.DeadlineExceeded
}
