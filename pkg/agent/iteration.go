package agent

// MaxConsecutiveToolErrors is the threshold for escalating a session.
// After this many consecutive tool-result errors, the loop gives up on
// the conversation rather than burning the rest of its turn budget
// (spec.md §4.4 "≥3 consecutive non-zero exits → escalated").
const MaxConsecutiveToolErrors = 3

// IterationState tracks turn-by-turn progress of one agent conversation:
// how many turns have run, how many of the most recent turns ended in a
// tool error, and the last failure seen.
type IterationState struct {
	CurrentIteration      int
	MaxIterations         int
	LastInteractionFailed bool
	LastErrorMessage      string
	ConsecutiveToolErrors int
}

// ShouldAbortOnToolErrors returns true once consecutive tool-error turns
// have reached the quota.
func (s *IterationState) ShouldAbortOnToolErrors() bool {
	return s.ConsecutiveToolErrors >= MaxConsecutiveToolErrors
}

// ReachedMaxIterations reports whether the turn cap has been hit.
func (s *IterationState) ReachedMaxIterations() bool {
	return s.CurrentIteration >= s.MaxIterations
}

// RecordSuccess resets failure tracking after a successful interaction.
func (s *IterationState) RecordSuccess() {
	s.LastInteractionFailed = false
	s.LastErrorMessage = ""
	s.ConsecutiveToolErrors = 0
}

// RecordFailure records a tool-result error, incrementing the
// consecutive-error count toward the escalation quota.
func (s *IterationState) RecordFailure(errMsg string) {
	s.LastInteractionFailed = true
	s.LastErrorMessage = errMsg
	s.ConsecutiveToolErrors++
}
