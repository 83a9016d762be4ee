// Package eval implements the evaluation harness: trial orchestration
// (chaos injection -> detection window -> resolution window -> snapshot),
// campaign-level parallelism, and idempotent post-hoc scoring. Each trial
// reuses the production monitor and agent loops against an isolated
// Subject instance; the harness itself only scripts the chaos and polls
// the shared store for the outcome.
package eval

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/operator/pkg/chaos"
	"github.com/codeready-toolchain/operator/pkg/model"
	"github.com/codeready-toolchain/operator/pkg/store"
	"github.com/codeready-toolchain/operator/pkg/subject"
)

// pollStep is how often DETECT_WAIT and RESOLVE_WAIT re-check the store.
const pollStep = 500 * time.Millisecond

// Spec describes one trial to run: which subject, which fault, and the
// timing bounds the trial's phases must respect.
type Spec struct {
	CampaignID      int64
	SubjectName     string
	ChaosType       string
	ChaosParams     map[string]any
	BaselineWait    time.Duration
	DetectTimeout   time.Duration
	ResolveTimeout  time.Duration
	// Reset restores subj to a known clean state before SETUP observes it.
	// When nil, SETUP skips the reset and observes the subject as it is.
	Reset func(ctx context.Context) error
}

// Runner executes a single Spec against a live Subject/Injector/Store,
// implementing the SETUP -> BASELINE_WAIT -> INJECT -> DETECT_WAIT ->
// RESOLVE_WAIT -> SNAPSHOT -> DONE state machine of spec.md §4.6.
type Runner struct {
	store    *store.Store
	subj     subject.Subject
	injector chaos.Injector
}

// NewRunner builds a trial Runner over subj/injector, persisting results
// through st.
func NewRunner(st *store.Store, subj subject.Subject, injector chaos.Injector) *Runner {
	return &Runner{store: st, subj: subj, injector: injector}
}

// Run executes spec end to end and persists the resulting Trial, returning
// its id.
func (r *Runner) Run(ctx context.Context, spec Spec) (int64, error) {
	trial := model.Trial{CampaignID: spec.CampaignID, StartedAt: time.Now().UTC()}

	// SETUP
	if spec.Reset != nil {
		if err := spec.Reset(ctx); err != nil {
			return 0, fmt.Errorf("eval: setup reset failed: %w", err)
		}
	}
	initial, err := r.subj.Observe(ctx)
	if err != nil {
		return 0, fmt.Errorf("eval: setup observe failed: %w", err)
	}
	trial.InitialState = initial

	// BASELINE_WAIT
	if spec.BaselineWait > 0 {
		if err := sleepCtx(ctx, spec.BaselineWait); err != nil {
			return 0, err
		}
	}

	// INJECT
	trial.ChaosInjectedAt = time.Now().UTC()
	metadata, err := r.injector.Inject(ctx, spec.ChaosType, spec.ChaosParams)
	if err != nil {
		return 0, fmt.Errorf("eval: chaos injection failed: %w", err)
	}
	trial.ChaosMetadata = metadata

	// DETECT_WAIT
	ticket, err := r.pollForTicket(ctx, spec.SubjectName, trial.ChaosInjectedAt, spec.DetectTimeout)
	if err != nil {
		return 0, err
	}
	if ticket == nil {
		trial.Outcome = model.TrialTimeout
		return r.finish(ctx, spec, trial)
	}
	ticketCreatedAt := ticket.OpenedAt
	trial.TicketCreatedAt = &ticketCreatedAt

	// RESOLVE_WAIT
	final, err := r.pollForTerminal(ctx, ticket.ID, spec.ResolveTimeout)
	if err != nil {
		return 0, err
	}
	switch {
	case final == nil:
		trial.Outcome = model.TrialTimeout
	case final.Status == model.TicketResolved:
		trial.Outcome = model.TrialResolved
		trial.ResolvedAt = final.ResolvedAt
	case final.Status == model.TicketEscalated:
		trial.Outcome = model.TrialEscalated
	default:
		trial.Outcome = model.TrialError
	}

	return r.finish(ctx, spec, trial)
}

// finish runs SNAPSHOT and persists the trial.
func (r *Runner) finish(ctx context.Context, spec Spec, trial model.Trial) (int64, error) {
	trial.EndedAt = time.Now().UTC()

	final, err := r.subj.Observe(ctx)
	if err != nil {
		return 0, fmt.Errorf("eval: snapshot observe failed: %w", err)
	}
	trial.FinalState = final

	entries, err := r.store.QueryEntriesByTimerange(ctx, trial.ChaosInjectedAt, trial.EndedAt)
	if err != nil {
		return 0, fmt.Errorf("eval: extracting trial commands: %w", err)
	}
	trial.CommandsJSON = make([]model.ToolCallRecord, 0, len(entries))
	for _, e := range entries {
		params, _ := jsonString(e.ToolParams)
		trial.CommandsJSON = append(trial.CommandsJSON, model.ToolCallRecord{
			Timestamp: e.Timestamp,
			ToolName:  e.ToolName,
			Params:    params,
			ExitCode:  e.ExitCode,
		})
	}

	return r.store.RecordTrial(ctx, trial)
}

// pollForTicket implements DETECT_WAIT: poll the store until a ticket for
// subjectName opened at or after since appears, or timeout elapses.
func (r *Runner) pollForTicket(ctx context.Context, subjectName string, since time.Time, timeout time.Duration) (*model.Ticket, error) {
	deadline := time.Now().Add(timeout)
	for {
		t, err := r.store.FindTicketOpenedSince(ctx, subjectName, since)
		if err != nil {
			return nil, fmt.Errorf("eval: detect poll failed: %w", err)
		}
		if t != nil {
			return t, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		if err := sleepCtx(ctx, pollStep); err != nil {
			return nil, err
		}
	}
}

// pollForTerminal implements RESOLVE_WAIT: poll ticketID until it reaches a
// terminal status, or timeout elapses.
func (r *Runner) pollForTerminal(ctx context.Context, ticketID int64, timeout time.Duration) (*model.Ticket, error) {
	deadline := time.Now().Add(timeout)
	for {
		t, err := r.store.GetTicket(ctx, ticketID)
		if err != nil {
			return nil, fmt.Errorf("eval: resolve poll failed: %w", err)
		}
		if t.Status.IsTerminal() {
			return t, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		if err := sleepCtx(ctx, pollStep); err != nil {
			return nil, err
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
