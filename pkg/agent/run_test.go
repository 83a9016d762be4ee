package agent

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/operator/pkg/llm"
	"github.com/codeready-toolchain/operator/pkg/model"
	"github.com/codeready-toolchain/operator/pkg/tool"
)

func TestShutdownOutcome(t *testing.T) {
	t.Run("plain cancellation reports timeout", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		outcome, summary, err := shutdownOutcome(ctx)
		require.NoError(t, err)
		assert.Equal(t, OutcomeTimeout, outcome)
		assert.Equal(t, "session timed out before completion", summary)
	})

	t.Run("deadline exceeded reports timeout", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Millisecond)
		defer cancel()
		<-ctx.Done()

		outcome, _, err := shutdownOutcome(ctx)
		require.NoError(t, err)
		assert.Equal(t, OutcomeTimeout, outcome)
	})

	t.Run("signal interrupt escalates with the signal in the reason", func(t *testing.T) {
		ctx, cancel := context.WithCancelCause(context.Background())
		cancel(fmt.Errorf("interrupted by SIGTERM"))

		outcome, summary, err := shutdownOutcome(ctx)
		require.NoError(t, err)
		assert.Equal(t, OutcomeEscalated, outcome)
		assert.Contains(t, summary, "interrupted by SIGTERM")
	})
}

func TestConversationRunner_InterruptedBeforeFirstTurnEscalates(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(fmt.Errorf("interrupted by SIGTERM"))

	r := &conversationRunner{
		conv:     llm.NewStubConversation(), // must never be called
		tools:    tool.NewRegistry(nil),
		ticket:   &model.Ticket{ID: 1, InvariantName: "quorum", SubjectName: "test-subject", Severity: model.SeverityCritical},
		maxTurns: 5,
	}

	outcome, summary, err := r.run(ctx)
	require.NoError(t, err)
	assert.Equal(t, OutcomeEscalated, outcome)
	assert.Contains(t, summary, "interrupted by SIGTERM")
}
