// Package chaos defines the interface the evaluation harness uses to
// inject and later undo a failure against a Subject. Concrete injectors
// are supplied by whoever wires up a given Subject; this package only
// specifies the contract (spec.md §1 "chaos injector is an opaque
// collaborator").
package chaos

import "context"

// Metadata is opaque, chaos-type-specific state an Injector returns from
// Inject and must later accept back unchanged in Recover — e.g. which node
// was killed, which process id to restore.
type Metadata map[string]any

// Injector introduces and reverts a single fault against a subject.
type Injector interface {
	// Inject applies chaosType with params and returns metadata describing
	// exactly what was done, so Recover can undo it precisely.
	Inject(ctx context.Context, chaosType string, params map[string]any) (Metadata, error)

	// Recover reverses the effect of a prior Inject call.
	Recover(ctx context.Context, metadata Metadata) error
}
