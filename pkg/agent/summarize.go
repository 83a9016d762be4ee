package agent

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/operator/pkg/llm"
	"github.com/codeready-toolchain/operator/pkg/model"
	"github.com/codeready-toolchain/operator/pkg/store"
)

// Summarizer produces a one-sentence outcome summary from a conversation
// transcript. Callers typically wire this to a cheaper model than the one
// driving the investigation itself, since summarization needs no tool use.
type Summarizer interface {
	Summarize(ctx context.Context, outcome Outcome, rawText string) (string, error)
}

// conversationSummarizer asks its underlying Conversation for a short
// summary, reusing the same llm.Conversation abstraction as the
// investigation itself.
type conversationSummarizer struct {
	conv llm.Conversation
}

// NewConversationSummarizer wraps conv as a Summarizer.
func NewConversationSummarizer(conv llm.Conversation) Summarizer {
	return conversationSummarizer{conv: conv}
}

func (s conversationSummarizer) Summarize(ctx context.Context, outcome Outcome, rawText string) (string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: "Summarize the following investigation outcome in one sentence."},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Outcome: %s\n\n%s", outcome, rawText)},
	}
	reply, err := s.conv.Send(ctx, messages, nil)
	if err != nil {
		return rawText, err
	}
	return reply.Text, nil
}

func sessionStatusFor(outcome Outcome) model.SessionStatus {
	switch outcome {
	case OutcomeResolved:
		return model.SessionCompleted
	case OutcomeEscalated:
		return model.SessionEscalated
	default:
		return model.SessionFailed
	}
}

// finishSessionAndTicket records the session's terminal state and resolves
// or escalates the owning ticket accordingly. Callers must pass a context
// that is not already cancelled (see loop.go's use of
// context.WithoutCancel) so the write still lands when the conversation
// itself was interrupted by shutdown.
func finishSessionAndTicket(ctx context.Context, st *store.Store, sessionID string, ticketID int64, outcome Outcome, summary string) error {
	if err := st.FinishSession(ctx, sessionID, sessionStatusFor(outcome), summary); err != nil {
		return err
	}
	switch outcome {
	case OutcomeResolved:
		return st.ResolveTicket(ctx, ticketID, summary)
	default:
		return st.EscalateTicket(ctx, ticketID, summary)
	}
}
