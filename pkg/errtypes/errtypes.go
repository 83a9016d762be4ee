// Package errtypes defines the error taxonomy shared across the monitor,
// agent, and evaluation harness. Components classify failures with
// errors.Is/errors.As against these sentinels rather than inspecting error
// strings.
package errtypes

import "errors"

var (
	// ErrSchemaMissing indicates a query hit a table that schema init should
	// have created. It must never surface in practice — schema
	// initialization is unconditional on every store open. Seeing this
	// error is a bug, not an expected runtime condition.
	ErrSchemaMissing = errors.New("operator: schema missing (bug: schema init did not run)")

	// ErrTicketStateConflict indicates an attempted ticket transition from a
	// status that does not allow it (e.g. resolving an already-escalated
	// ticket).
	ErrTicketStateConflict = errors.New("operator: ticket state conflict")

	// ErrProposalStateConflict indicates an attempted ActionProposal
	// transition from a status that does not allow it (e.g. approving a
	// proposal that isn't validated).
	ErrProposalStateConflict = errors.New("operator: proposal state conflict")

	// ErrSessionNotRunning indicates finish_session was called on a session
	// whose status is not "running".
	ErrSessionNotRunning = errors.New("operator: session is not running")

	// ErrUnknownSession indicates append_log targeted a session_id with no
	// matching row.
	ErrUnknownSession = errors.New("operator: unknown session")

	// ErrApprovalRequired indicates a mutating tool call was blocked by
	// approval mode. The agent loop does not return it: a call whose
	// proposal is rejected or never approved fails in tool.Registry with
	// tool.ErrApprovalRequired, and that failure goes back to the model as
	// an error tool result; the session is not escalated on it.
	ErrApprovalRequired = errors.New("operator: approval required")

	// ErrToolTimeout indicates a tool call exceeded its wall-clock budget.
	// The shell tool reports a timeout as exit_code=124 with "timed out" in
	// its output.
	ErrToolTimeout = errors.New("operator: tool timed out")

	// ErrLLMProtocol indicates the model returned an unparseable response
	// after the single retry spec.md §7 allows.
	ErrLLMProtocol = errors.New("operator: llm protocol error")

	// ErrFatalConfig indicates invalid CLI args or missing required
	// environment (e.g. ANTHROPIC_API_KEY). Always surfaces before any loop
	// starts; never recovered from mid-loop.
	ErrFatalConfig = errors.New("operator: fatal configuration error")
)
