package agent

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/operator/pkg/llm"
	"github.com/codeready-toolchain/operator/pkg/model"
	"github.com/codeready-toolchain/operator/pkg/store"
	"github.com/codeready-toolchain/operator/pkg/tool"
)

type echoShell struct{ called int }

func (e *echoShell) Schema() tool.Schema {
	return tool.Schema{Name: "shell", ParametersSchema: json.RawMessage(`{}`)}
}
func (e *echoShell) Execute(context.Context, map[string]any) (tool.Result, error) {
	e.called++
	return tool.Result{Content: "ok"}, nil
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "operator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLoop_ResolvesTicketOnFinalText(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ticketID, err := st.OpenTicket(ctx, "quorum", "test-subject", "store-2", model.SeverityCritical, nil)
	require.NoError(t, err)

	conv := llm.NewStubConversation(llm.Reply{Text: "root cause found, node restarted, ticket resolved"})
	reg := tool.NewRegistry(nil)

	loop := New(st, conv, reg, Config{PollInterval: time.Millisecond, MaxTurns: 5}, nil)
	processed, err := loop.pollAndProcess(ctx)
	require.NoError(t, err)
	require.True(t, processed)

	ticket, err := st.GetTicket(ctx, ticketID)
	require.NoError(t, err)
	require.Equal(t, model.TicketResolved, ticket.Status)
}

func TestLoop_ExecutesToolCallThenResolves(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ticketID, err := st.OpenTicket(ctx, "quorum", "test-subject", "store-2", model.SeverityCritical, nil)
	require.NoError(t, err)

	conv := llm.NewStubConversation(
		llm.Reply{ToolCall: &llm.ToolCall{ID: "1", Name: "shell", Arguments: `{"command":"echo hi"}`}},
		llm.Reply{Text: "done"},
	)
	shell := &echoShell{}
	reg := tool.NewRegistry(nil)
	reg.Register(shell)

	loop := New(st, conv, reg, Config{PollInterval: time.Millisecond, MaxTurns: 5}, nil)
	processed, err := loop.pollAndProcess(ctx)
	require.NoError(t, err)
	require.True(t, processed)
	require.Equal(t, 1, shell.called)

	ticket, err := st.GetTicket(ctx, ticketID)
	require.NoError(t, err)
	require.Equal(t, model.TicketResolved, ticket.Status)
}

func TestLoop_EscalatesWhenTurnCapReached(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ticketID, err := st.OpenTicket(ctx, "quorum", "test-subject", "store-2", model.SeverityCritical, nil)
	require.NoError(t, err)

	replies := make([]llm.Reply, 3)
	for i := range replies {
		replies[i] = llm.Reply{ToolCall: &llm.ToolCall{ID: "1", Name: "shell", Arguments: `{"command":"echo hi"}`}}
	}
	conv := llm.NewStubConversation(replies...)
	reg := tool.NewRegistry(nil)
	reg.Register(&echoShell{})

	loop := New(st, conv, reg, Config{PollInterval: time.Millisecond, MaxTurns: 3}, nil)
	processed, err := loop.pollAndProcess(ctx)
	require.NoError(t, err)
	require.True(t, processed)

	ticket, err := st.GetTicket(ctx, ticketID)
	require.NoError(t, err)
	require.Equal(t, model.TicketEscalated, ticket.Status)
}

func TestLoop_EscalatesAfterConsecutiveToolErrors(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ticketID, err := st.OpenTicket(ctx, "quorum", "test-subject", "store-2", model.SeverityCritical, nil)
	require.NoError(t, err)

	replies := []llm.Reply{
		{ToolCall: &llm.ToolCall{ID: "1", Name: "broken", Arguments: `{}`}},
		{ToolCall: &llm.ToolCall{ID: "2", Name: "broken", Arguments: `{}`}},
		{ToolCall: &llm.ToolCall{ID: "3", Name: "broken", Arguments: `{}`}},
	}
	conv := llm.NewStubConversation(replies...)
	reg := tool.NewRegistry(nil) // "broken" is never registered, so every call errors

	loop := New(st, conv, reg, Config{PollInterval: time.Millisecond, MaxTurns: 10}, nil)
	processed, err := loop.pollAndProcess(ctx)
	require.NoError(t, err)
	require.True(t, processed)

	ticket, err := st.GetTicket(ctx, ticketID)
	require.NoError(t, err)
	require.Equal(t, model.TicketEscalated, ticket.Status)
}

func TestFinishSessionAndTicket_RequiresAnUncancelledContext(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	ticketID, err := st.OpenTicket(ctx, "quorum", "test-subject", "store-3", model.SeverityCritical, nil)
	require.NoError(t, err)
	sessionID := store.NewSessionID()
	require.NoError(t, st.StartSession(ctx, sessionID, ticketID))

	cancelledCtx, cancel := context.WithCancel(ctx)
	cancel()

	// Passing the already-cancelled context directly fails to commit —
	// this is why loop.go finalizes on context.WithoutCancel(ctx) instead
	// of the session's own (possibly-cancelled) context.
	require.Error(t, finishSessionAndTicket(cancelledCtx, st, sessionID, ticketID, OutcomeEscalated, "interrupted by SIGTERM"))

	require.NoError(t, finishSessionAndTicket(context.WithoutCancel(cancelledCtx), st, sessionID, ticketID, OutcomeEscalated, "interrupted by SIGTERM"))

	ticket, err := st.GetTicket(ctx, ticketID)
	require.NoError(t, err)
	require.Equal(t, model.TicketEscalated, ticket.Status)

	sess, err := st.GetSession(ctx, sessionID)
	require.NoError(t, err)
	require.Equal(t, model.SessionEscalated, sess.Status)
	require.Contains(t, sess.OutcomeSummary, "interrupted by SIGTERM")
}

func TestLoop_NoWorkReturnsFalse(t *testing.T) {
	st := newTestStore(t)
	conv := llm.NewStubConversation()
	reg := tool.NewRegistry(nil)
	loop := New(st, conv, reg, Config{PollInterval: time.Millisecond}, nil)

	processed, err := loop.pollAndProcess(context.Background())
	require.NoError(t, err)
	require.False(t, processed)
}
