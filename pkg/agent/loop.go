// Package agent implements the agent's claim/run/finish polling loop: pick
// up the oldest open ticket, run an LLM-driven tool-calling conversation
// against it, and record the outcome. The polling shape mirrors the
// teacher's pkg/queue.Worker; the conversation itself is new.
package agent

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/codeready-toolchain/operator/pkg/llm"
	"github.com/codeready-toolchain/operator/pkg/store"
	"github.com/codeready-toolchain/operator/pkg/tool"
)

// DefaultMaxTurns bounds how many model round-trips one conversation may
// take before the loop escalates it as unresolved.
const DefaultMaxTurns = 20

// Config configures a Loop. Safety and Approval are resolved once at
// construction and held fixed for the loop's lifetime (spec.md §4.4).
type Config struct {
	PollInterval  time.Duration
	PollJitter    time.Duration
	MaxTurns      int
	Safety        SafetyMode
	Approval      ApprovalMode
	SessionTimeout time.Duration
}

// Loop polls the store for open tickets and resolves them one at a time.
type Loop struct {
	store *store.Store
	conv  llm.Conversation
	tools *tool.Registry
	cfg   Config
	log   *slog.Logger
}

// New creates an agent loop. conv is the model backend; tools is the
// registry of actions it may call.
func New(st *store.Store, conv llm.Conversation, tools *tool.Registry, cfg Config, log *slog.Logger) *Loop {
	if cfg.MaxTurns == 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.SessionTimeout == 0 {
		cfg.SessionTimeout = 30 * time.Minute
	}
	if log == nil {
		log = slog.Default()
	}
	return &Loop{store: st, conv: conv, tools: tools, cfg: cfg, log: log}
}

// Run polls until ctx is cancelled. A ticket that is mid-conversation when
// ctx is cancelled sees the cancelled ctx in its in-flight model or tool
// call; the session is then finished rather than left dangling
// in_progress: escalated with ctx's cancellation cause as its summary when
// one was recorded (the CLI records "interrupted by SIGTERM"), failed on a
// plain cancel or timeout, and the ticket is escalated either way.
func (l *Loop) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			l.log.Info("agent loop shutting down")
			return nil
		default:
		}

		processed, err := l.pollAndProcess(ctx)
		if err != nil {
			l.log.Error("agent loop iteration failed", "error", err)
			l.sleep(ctx, time.Second)
			continue
		}
		if !processed {
			l.sleep(ctx, l.pollInterval())
		}
	}
}

func (l *Loop) sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// pollAndProcess claims the oldest open ticket, if any, and runs it to
// completion. It returns (false, nil) when there is no work available.
func (l *Loop) pollAndProcess(ctx context.Context) (bool, error) {
	sessionID := store.NewSessionID()
	ticket, err := l.store.ClaimOpenTicket(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if ticket == nil {
		return false, nil
	}

	if err := l.store.StartSession(ctx, sessionID, ticket.ID); err != nil {
		return true, err
	}

	log := l.log.With("session_id", sessionID, "ticket_id", ticket.ID)
	log.Info("session started")

	sessionCtx, cancel := context.WithTimeout(ctx, l.cfg.SessionTimeout)
	defer cancel()

	runner := &conversationRunner{
		conv:      l.conv,
		tools:     l.tools,
		st:        l.store,
		sessionID: sessionID,
		ticket:    ticket,
		safety:    l.cfg.Safety,
		approval:  l.cfg.Approval,
		maxTurns:  l.cfg.MaxTurns,
	}

	outcome, summary, runErr := runner.run(sessionCtx)
	if runErr != nil {
		log.Error("conversation failed", "error", runErr)
	}

	// ctx may already be cancelled here (shutdown mid-conversation); the
	// finalizing writes must still land, so they run on a context that
	// keeps ctx's values but drops its cancellation.
	finishCtx := context.WithoutCancel(ctx)
	if err := finishSessionAndTicket(finishCtx, l.store, sessionID, ticket.ID, outcome, summary); err != nil {
		log.Error("failed to finish session", "error", err)
		return true, err
	}
	log.Info("session finished", "outcome", outcome)
	return true, nil
}

// pollInterval returns the configured poll interval with symmetric
// jitter applied, mirroring the teacher's Worker.pollInterval.
func (l *Loop) pollInterval() time.Duration {
	base := l.cfg.PollInterval
	jitter := l.cfg.PollJitter
	if jitter <= 0 {
		return base
	}
	offset := time.Duration(rand.Int64N(int64(2 * jitter)))
	return base - jitter + offset
}
