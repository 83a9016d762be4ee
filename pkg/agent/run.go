package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/codeready-toolchain/operator/pkg/llm"
	"github.com/codeready-toolchain/operator/pkg/model"
	"github.com/codeready-toolchain/operator/pkg/store"
	"github.com/codeready-toolchain/operator/pkg/tool"
)

// Outcome classifies how a conversation ended (spec.md §4.4 "termination
// classification").
type Outcome string

const (
	OutcomeResolved  Outcome = "resolved"
	OutcomeEscalated Outcome = "escalated"
	OutcomeTimeout   Outcome = "timeout"
)

// approvalPollInterval is how often the loop re-checks a pending
// proposal's status while execute mode with approvals on is waiting on a
// human.
const approvalPollInterval = 2 * time.Second

// conversationRunner drives one ticket's conversation turn-by-turn: send
// to the model, execute any requested tool call, append both to the
// session's audit trail, and repeat until the model replies with final
// text, the turn cap is hit, or the tool-error quota is exhausted.
type conversationRunner struct {
	conv      llm.Conversation
	tools     *tool.Registry
	st        *store.Store
	sessionID string
	ticket    *model.Ticket
	safety    SafetyMode
	approval  ApprovalMode
	maxTurns  int
}

func (r *conversationRunner) run(ctx context.Context) (Outcome, string, error) {
	state := &IterationState{MaxIterations: r.maxTurns}
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: systemPrompt(r.safety)},
		{Role: llm.RoleUser, Content: ticketPrompt(r.ticket)},
	}
	toolDefs := toolDefinitions(r.tools)
	var lastErrSig string

	for {
		if ctx.Err() != nil {
			return shutdownOutcome(ctx)
		}
		if state.ReachedMaxIterations() {
			return OutcomeEscalated, "turn cap reached without resolution", nil
		}
		state.CurrentIteration++

		reply, err := r.conv.Send(ctx, messages, toolDefs)
		if errors.Is(err, llm.ErrProtocol) && ctx.Err() == nil {
			// One retry with a simplified request (no tool definitions)
			// before escalating on an unparseable reply.
			reply, err = r.conv.Send(ctx, messages, nil)
		}
		if err != nil {
			if ctx.Err() != nil {
				return shutdownOutcome(ctx)
			}
			if _, logErr := r.appendLog(ctx, model.EntryReasoning, "", nil, fmt.Sprintf("LLM call failed: %v", err), nil, nil); logErr != nil {
				return OutcomeEscalated, "", logErr
			}
			return OutcomeEscalated, fmt.Sprintf("LLM call failed: %v", err), nil
		}

		if reply.ToolCall == nil {
			if _, err := r.appendLog(ctx, model.EntryReasoning, "", nil, reply.Text, nil, nil); err != nil {
				return OutcomeEscalated, "", err
			}
			return OutcomeResolved, reply.Text, nil
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, Content: toolCallEcho(*reply.ToolCall)})

		result, toolErr := r.executeToolCall(ctx, *reply.ToolCall)
		if toolErr != nil {
			if ctx.Err() != nil {
				return shutdownOutcome(ctx)
			}
			return OutcomeEscalated, toolErr.Error(), nil
		}

		// The tool-error quota counts consecutive failures of the same call
		// signature (tool name plus raw arguments).
		sig := reply.ToolCall.Name + reply.ToolCall.Arguments
		if result.IsError {
			if sig != lastErrSig {
				state.ConsecutiveToolErrors = 0
			}
			lastErrSig = sig
			state.RecordFailure(result.Content)
			if state.ShouldAbortOnToolErrors() {
				return OutcomeEscalated, "consecutive tool-error quota exhausted", nil
			}
		} else {
			state.RecordSuccess()
			lastErrSig = ""
		}

		messages = append(messages, llm.Message{Role: llm.RoleUser, Content: result.Content})
	}
}

// shutdownOutcome classifies a cancelled context. A session that hit its
// own timeout (context.Cause is context.DeadlineExceeded, or no cause was
// ever recorded) is reported as OutcomeTimeout; an external interrupt —
// recorded as a distinct cause by the CLI's signal handler — escalates
// the session instead, per spec.md §4.4's shutdown semantics.
func shutdownOutcome(ctx context.Context) (Outcome, string, error) {
	switch cause := context.Cause(ctx); cause {
	case nil, context.Canceled, context.DeadlineExceeded:
		return OutcomeTimeout, "session timed out before completion", nil
	default:
		return OutcomeEscalated, cause.Error(), nil
	}
}

// executeToolCall parses the model's raw arguments, resolves the approval
// gate (creating and waiting on an ActionProposal when ApprovalOn requires
// it), executes via the registry, and appends the tool_call/tool_result
// pair to the audit trail.
func (r *conversationRunner) executeToolCall(ctx context.Context, call llm.ToolCall) (tool.Result, error) {
	params, err := parseArguments(call.Arguments)
	if err != nil {
		return tool.Result{}, err
	}

	if _, err := r.appendLog(ctx, model.EntryToolCall, call.Name, params, "", nil, nil); err != nil {
		return tool.Result{}, err
	}

	approved := true
	if r.approval == ApprovalOn {
		t, ok := r.tools.Lookup(call.Name)
		if ok && t.Schema().RequiresApproval {
			approved, err = r.waitForApproval(ctx, call.Name, params)
			if err != nil {
				return tool.Result{}, err
			}
		}
	}

	start := time.Now()
	result, execErr := r.tools.Execute(ctx, call.Name, params, approved)
	duration := time.Since(start).Milliseconds()

	if execErr != nil && result.Content == "" {
		result = tool.Result{Content: execErr.Error(), IsError: true}
	}

	if _, err := r.appendLog(ctx, model.EntryToolResult, call.Name, nil, result.Content, result.ExitCode, &duration); err != nil {
		return tool.Result{}, err
	}
	return result, nil
}

// waitForApproval creates an ActionProposal and polls until it leaves the
// validated state or ctx is cancelled.
func (r *conversationRunner) waitForApproval(ctx context.Context, toolName string, params map[string]any) (bool, error) {
	proposalID, err := r.st.CreateProposal(ctx, r.ticket.ID, toolName, params)
	if err != nil {
		return false, fmt.Errorf("agent: creating proposal: %w", err)
	}

	ticker := time.NewTicker(approvalPollInterval)
	defer ticker.Stop()
	for {
		proposal, err := r.st.GetProposal(ctx, proposalID)
		if err != nil {
			return false, fmt.Errorf("agent: polling proposal: %w", err)
		}
		switch proposal.Status {
		case model.ProposalExecuting, model.ProposalCompleted:
			return true, nil
		case model.ProposalCancelled, model.ProposalFailed:
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, nil
		case <-ticker.C:
		}
	}
}

func (r *conversationRunner) appendLog(ctx context.Context, entryType model.LogEntryType, toolName string, params map[string]any, content string, exitCode *int, durationMS *int64) (int64, error) {
	return r.st.AppendLog(ctx, r.sessionID, model.AgentLogEntry{
		SessionID:  r.sessionID,
		Timestamp:  time.Now().UTC(),
		EntryType:  entryType,
		ToolName:   toolName,
		ToolParams: params,
		Content:    content,
		ExitCode:   exitCode,
		DurationMS: durationMS,
	})
}

func toolDefinitions(reg *tool.Registry) []llm.ToolDefinition {
	schemas := reg.Schemas()
	defs := make([]llm.ToolDefinition, 0, len(schemas))
	for _, s := range schemas {
		defs = append(defs, llm.ToolDefinition{
			Name:             s.Name,
			Description:      s.Description,
			ParametersSchema: s.ParametersSchema,
		})
	}
	return defs
}

func parseArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrProtocol, err)
	}
	return params, nil
}

func toolCallEcho(call llm.ToolCall) string {
	return fmt.Sprintf("[called %s with %s]", call.Name, call.Arguments)
}

func systemPrompt(safety SafetyMode) string {
	if safety == SafetyObserve {
		return "You are investigating an infrastructure ticket. You may only observe; you cannot take remediating action. Diagnose the root cause and report your findings."
	}
	return "You are an autonomous operator investigating and remediating an infrastructure ticket. Use the available tools to diagnose and resolve the issue. Reply with final plain text once the issue is resolved or you have determined it needs human attention."
}

func ticketPrompt(t *model.Ticket) string {
	return fmt.Sprintf("Ticket #%d: invariant %q violated for subject %q (severity %s). Details: %v",
		t.ID, t.InvariantName, t.SubjectName, t.Severity, t.ViolationDetails)
}
