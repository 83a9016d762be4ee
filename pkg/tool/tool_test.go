package tool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingAudit struct {
	calls []string
}

func (r *recordingAudit) RecordToolCall(_ context.Context, name string, _ map[string]any, _ Result, _ int64) error {
	r.calls = append(r.calls, name)
	return nil
}

type echoTool struct{}

func (echoTool) Schema() Schema { return Schema{Name: "echo"} }
func (echoTool) Execute(_ context.Context, params map[string]any) (Result, error) {
	msg, _ := params["msg"].(string)
	return Result{Content: msg}, nil
}

type approvalTool struct{}

func (approvalTool) Schema() Schema { return Schema{Name: "dangerous", RequiresApproval: true} }
func (approvalTool) Execute(context.Context, map[string]any) (Result, error) {
	return Result{Content: "ran"}, nil
}

func TestRegistry_ExecuteRecordsAudit(t *testing.T) {
	audit := &recordingAudit{}
	reg := NewRegistry(audit)
	reg.Register(echoTool{})

	result, err := reg.Execute(context.Background(), "echo", map[string]any{"msg": "hi"}, false)
	require.NoError(t, err)
	require.Equal(t, "hi", result.Content)
	require.Equal(t, []string{"echo"}, audit.calls)
}

func TestRegistry_UnknownTool(t *testing.T) {
	reg := NewRegistry(nil)
	_, err := reg.Execute(context.Background(), "nope", nil, false)
	require.ErrorIs(t, err, ErrUnknownTool)
}

func TestRegistry_RequiresApproval(t *testing.T) {
	reg := NewRegistry(nil)
	reg.Register(approvalTool{})

	_, err := reg.Execute(context.Background(), "dangerous", nil, false)
	require.ErrorIs(t, err, ErrApprovalRequired)

	result, err := reg.Execute(context.Background(), "dangerous", nil, true)
	require.NoError(t, err)
	require.Equal(t, "ran", result.Content)
}

func TestShellTool_RunsAndCapturesOutput(t *testing.T) {
	st := NewShellTool(5*time.Second, false, nil)
	result, err := st.Execute(context.Background(), map[string]any{"command": "echo hello"})
	require.NoError(t, err)
	require.Contains(t, result.Content, "hello")
	require.False(t, result.IsError)
}

func TestShellTool_ObserveModeRefusesNonWhitelisted(t *testing.T) {
	st := NewShellTool(5*time.Second, true, []string{"cat"})
	result, err := st.Execute(context.Background(), map[string]any{"command": "rm -rf /tmp/x"})
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Content, "refused")
}

func TestShellTool_ObserveModeAllowsWhitelisted(t *testing.T) {
	st := NewShellTool(5*time.Second, true, []string{"echo"})
	result, err := st.Execute(context.Background(), map[string]any{"command": "echo ok"})
	require.NoError(t, err)
	require.False(t, result.IsError)
}

func TestShellTool_TimesOut(t *testing.T) {
	st := NewShellTool(50*time.Millisecond, false, nil)
	result, err := st.Execute(context.Background(), map[string]any{"command": "sleep 2"})
	require.NoError(t, err)
	require.True(t, result.IsError)
	require.Contains(t, result.Content, "timed out")
}
