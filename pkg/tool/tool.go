// Package tool defines the runtime the agent loop uses to execute actions
// against a Subject: a Tool{Schema, Execute} pair per action, a Registry
// that resolves calls by name, and an optional AuditSink that Execute
// reports every executed call to when one is set.
package tool

import (
	"context"
	"encoding/json"
	"fmt"
)

// Schema describes one tool to both the model and the approval layer.
type Schema struct {
	Name              string
	Description       string
	Mutating          bool // false: read-only, always allowed in observe mode
	RequiresApproval  bool // true: needs an approved ActionProposal before Execute runs
	ParametersSchema  json.RawMessage
}

// Result is the outcome of one tool execution, reported back to the model
// as plain text content. Errors are surfaced as Result.IsError rather than
// a Go error wherever the failure is something the model can reasonably
// react to (a bad command, a timeout) — mirrors the MCP convention the
// teacher's ToolExecutor follows.
type Result struct {
	Content  string
	IsError  bool
	ExitCode *int
}

// Tool is one callable action.
type Tool interface {
	Schema() Schema
	Execute(ctx context.Context, params map[string]any) (Result, error)
}

// AuditSink receives a record of every tool invocation, successful or not.
// Tests use a recording fake; the agent loop builds its registry without a
// sink and writes its own tool_call/tool_result audit entries.
type AuditSink interface {
	RecordToolCall(ctx context.Context, name string, params map[string]any, result Result, durationMS int64) error
}

// Registry resolves tool calls by name and enforces the approval gate
// uniformly, so no caller can reach a Tool's Execute without passing
// through it. Observe-mode restrictions are not checked here: they come
// from the tools themselves and from which tools are registered.
type Registry struct {
	tools map[string]Tool
	audit AuditSink
}

// NewRegistry creates an empty registry. audit may be nil to disable
// audit recording, as the agent CLI does.
func NewRegistry(audit AuditSink) *Registry {
	return &Registry{tools: make(map[string]Tool), audit: audit}
}

// Register adds a tool, panicking on a duplicate name since that is
// always a wiring bug caught at startup, never a runtime condition.
func (r *Registry) Register(t Tool) {
	name := t.Schema().Name
	if _, exists := r.tools[name]; exists {
		panic(fmt.Sprintf("tool: duplicate registration for %q", name))
	}
	r.tools[name] = t
}

// Lookup returns the tool registered under name, or false.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Schemas returns every registered tool's Schema, for advertising to the
// model.
func (r *Registry) Schemas() []Schema {
	out := make([]Schema, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Schema())
	}
	return out
}

// ErrUnknownTool is returned by Execute when name has no registered Tool.
var ErrUnknownTool = fmt.Errorf("tool: unknown tool")

// ErrApprovalRequired is returned by Execute when the tool's schema
// requires approval and approved is false.
var ErrApprovalRequired = fmt.Errorf("tool: approval required")

// Execute resolves name, checks the approval gate, runs the tool, and
// records the call to the audit sink before returning — the audit write
// happens unconditionally, even when the tool itself errors, so the trail
// never has a gap (spec.md §4.5 "audit discipline").
func (r *Registry) Execute(ctx context.Context, name string, params map[string]any, approved bool) (Result, error) {
	t, ok := r.tools[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	schema := t.Schema()
	if schema.RequiresApproval && !approved {
		return Result{}, fmt.Errorf("%w: %s", ErrApprovalRequired, name)
	}

	start := nowFunc()
	result, err := t.Execute(ctx, params)
	duration := nowFunc().Sub(start)

	if err != nil {
		result = Result{Content: err.Error(), IsError: true}
	}
	if r.audit != nil {
		if auditErr := r.audit.RecordToolCall(ctx, name, params, result, duration.Milliseconds()); auditErr != nil {
			return result, fmt.Errorf("tool: recording audit entry: %w", auditErr)
		}
	}
	return result, err
}
