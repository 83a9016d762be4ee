// Package invariant defines the declarative invariant shape the monitor
// loop evaluates every tick. No built-in invariants live here — each
// Subject package registers its own (see pkg/demo for an illustrative set).
package invariant

import (
	"fmt"

	"github.com/codeready-toolchain/operator/pkg/model"
	"github.com/codeready-toolchain/operator/pkg/subject"
)

// Invariant is a named, deterministic predicate over a Subject observation.
// Evaluate must be a pure function of obs: no I/O, no hidden state beyond
// what the invariant captures in its own closure at registration time.
type Invariant struct {
	Name           string
	SubjectName    string
	Severity       model.Severity
	GracePeriodSec int
	Evaluate       func(obs subject.Observation) ([]subject.Violation, error)
}

// ViolationKeyField is the well-known key every Violation.Details map must
// carry: the deterministic fingerprint the store dedups tickets on.
const ViolationKeyField = "violation_key"

// WithViolationKey returns a copy of details with violation_key set to key,
// the convention every invariant's Evaluate should follow so the store's
// dedup index (invariant_name, subject_name, status, violation_key) stays
// meaningful.
func WithViolationKey(key string, details map[string]any) map[string]any {
	out := make(map[string]any, len(details)+1)
	for k, v := range details {
		out[k] = v
	}
	out[ViolationKeyField] = key
	return out
}

// Tracked is the (invariant, key) identity the monitor diffs observed
// violations against open/in_progress tickets.
type Tracked struct {
	InvariantName string
	Key           string
}

func (t Tracked) String() string {
	return fmt.Sprintf("%s/%s", t.InvariantName, t.Key)
}
