package agent

import "fmt"

// SafetyMode gates whether the shell tool may run mutating commands.
type SafetyMode string

const (
	// SafetyObserve restricts the shell tool to a read-only whitelist; the
	// agent can diagnose but never remediate.
	SafetyObserve SafetyMode = "observe"
	// SafetyExecute allows any shell command, subject to ApprovalMode.
	SafetyExecute SafetyMode = "execute"
)

// ApprovalMode gates whether a mutating tool call requires a pre-approved
// ActionProposal before it is allowed to run.
type ApprovalMode string

const (
	ApprovalOff ApprovalMode = "off"
	ApprovalOn  ApprovalMode = "on"
)

// ParseSafetyMode validates an OPERATOR_SAFETY_MODE value.
func ParseSafetyMode(s string) (SafetyMode, error) {
	switch SafetyMode(s) {
	case SafetyObserve, SafetyExecute:
		return SafetyMode(s), nil
	default:
		return "", fmt.Errorf("agent: invalid safety mode %q, want %q or %q", s, SafetyObserve, SafetyExecute)
	}
}

// ParseApprovalMode validates an OPERATOR_APPROVAL_MODE value, which per
// spec.md §6.6 is a boolean string ("true"/"false"), not the internal
// on/off enum name.
func ParseApprovalMode(s string) (ApprovalMode, error) {
	switch s {
	case "true":
		return ApprovalOn, nil
	case "false":
		return ApprovalOff, nil
	default:
		return "", fmt.Errorf("agent: invalid approval mode %q, want \"true\" or \"false\"", s)
	}
}
