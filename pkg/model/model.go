// Package model holds the persistent domain types shared by the store,
// monitor, agent, and evaluation harness: Ticket, AgentSession,
// AgentLogEntry, ActionProposal, Campaign, and Trial. These mirror the
// entities in the data model one-for-one; no behaviour lives here beyond
// small derived helpers (e.g. ActionProposal.IsApproved).
package model

import "time"

// Severity is the severity of an invariant violation / ticket.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// TicketStatus is the lifecycle status of a Ticket.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketResolved   TicketStatus = "resolved"
	TicketEscalated  TicketStatus = "escalated"
)

// IsTerminal reports whether the status is a final state.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketResolved || s == TicketEscalated
}

// IsTracked reports whether the status counts as "open or in_progress" for
// dedup and auto-close purposes.
func (s TicketStatus) IsTracked() bool {
	return s == TicketOpen || s == TicketInProgress
}

// Ticket is a durable record of an invariant violation and its lifecycle.
type Ticket struct {
	ID               int64
	InvariantName    string
	SubjectName      string
	ViolationKey     string
	Severity         Severity
	Status           TicketStatus
	OpenedAt         time.Time
	ResolvedAt       *time.Time
	ViolationDetails map[string]any
	Diagnosis        string
	AssignedSession  string
}

// SessionStatus is the lifecycle status of an AgentSession.
type SessionStatus string

const (
	SessionRunning   SessionStatus = "running"
	SessionCompleted SessionStatus = "completed"
	SessionFailed    SessionStatus = "failed"
	SessionEscalated SessionStatus = "escalated"
)

// AgentSession is bound to exactly one ticket and immutable after
// completion.
type AgentSession struct {
	SessionID      string
	TicketID       int64
	StartedAt      time.Time
	EndedAt        *time.Time
	Status         SessionStatus
	OutcomeSummary string
}

// LogEntryType distinguishes the three kinds of append-only audit entries.
type LogEntryType string

const (
	EntryReasoning  LogEntryType = "reasoning"
	EntryToolCall   LogEntryType = "tool_call"
	EntryToolResult LogEntryType = "tool_result"
)

// AgentLogEntry is one append-only row in a session's audit trail.
type AgentLogEntry struct {
	SessionID  string
	Seq        int64
	Timestamp  time.Time
	EntryType  LogEntryType
	ToolName   string
	ToolParams map[string]any
	Content    string
	ExitCode   *int
	DurationMS *int64
}

// ProposalStatus is the lifecycle status of an ActionProposal.
type ProposalStatus string

const (
	ProposalProposed  ProposalStatus = "proposed"
	ProposalValidated ProposalStatus = "validated"
	ProposalCancelled ProposalStatus = "cancelled"
	ProposalExecuting ProposalStatus = "executing"
	ProposalCompleted ProposalStatus = "completed"
	ProposalFailed    ProposalStatus = "failed"
)

// ActionProposal is created when approval mode gates a mutating tool call.
type ActionProposal struct {
	ID               int64
	TicketID         int64
	ActionName       string
	Params           map[string]any
	Status           ProposalStatus
	ProposedAt       time.Time
	ValidatedAt      *time.Time
	ApprovedAt       *time.Time
	ApprovedBy       string
	RejectedAt       *time.Time
	RejectedBy       string
	RejectionReason  string
}

// IsApproved reports whether the proposal has been approved.
func (p *ActionProposal) IsApproved() bool {
	return p.ApprovedAt != nil
}

// Campaign is a labelled batch of trials sharing subject/chaos/variant.
type Campaign struct {
	ID                    int64
	Name                  string
	SubjectName           string
	ChaosType             string
	Variant               string
	IsBaseline            bool
	CreatedAt             time.Time
	CooldownSeconds       int
	DetectTimeoutSeconds  int
	ResolveTimeoutSeconds int
	Parallelism           int
}

// TrialOutcome is the terminal classification of one chaos trial.
type TrialOutcome string

const (
	TrialResolved  TrialOutcome = "resolved"
	TrialEscalated TrialOutcome = "escalated"
	TrialTimeout   TrialOutcome = "timeout"
	TrialError     TrialOutcome = "error"
)

// Trial is one chaos experiment run within a Campaign.
type Trial struct {
	ID              int64
	CampaignID      int64
	StartedAt       time.Time
	ChaosInjectedAt time.Time
	ChaosMetadata   map[string]any
	TicketCreatedAt *time.Time
	ResolvedAt      *time.Time
	EndedAt         time.Time
	Outcome         TrialOutcome
	InitialState    map[string]any
	FinalState      map[string]any
	CommandsJSON    []ToolCallRecord
}

// ToolCallRecord is one captured tool_call entry serialized into a trial's
// commands_json column.
type ToolCallRecord struct {
	Timestamp time.Time `json:"timestamp"`
	ToolName  string    `json:"tool_name"`
	Params    string    `json:"params"`
	ExitCode  *int      `json:"exit_code,omitempty"`
}
