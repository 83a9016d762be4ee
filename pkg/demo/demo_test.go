package demo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCluster_ObserveAndHealth(t *testing.T) {
	c := NewCluster(5)
	obs, err := c.Observe(context.Background())
	require.NoError(t, err)
	require.Equal(t, 5, obs["total_nodes"])
	require.Equal(t, 5, obs["alive_nodes"])
	require.True(t, c.IsHealthy(obs))
}

func TestCluster_KillBreaksQuorum(t *testing.T) {
	c := NewCluster(3)
	require.NoError(t, c.KillNode("node-0"))
	require.NoError(t, c.KillNode("node-1"))

	obs, err := c.Observe(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, obs["alive_nodes"])
	require.False(t, c.IsHealthy(obs))
}

func TestCluster_UnknownNode(t *testing.T) {
	c := NewCluster(2)
	require.Error(t, c.KillNode("node-99"))
	require.Error(t, c.ReviveNode("node-99"))
	require.Error(t, c.SetLatency("node-99", 1))
}

func TestQuorumInvariant_FiresBelowMajority(t *testing.T) {
	c := NewCluster(3)
	require.NoError(t, c.KillNode("node-0"))
	require.NoError(t, c.KillNode("node-1"))
	obs, err := c.Observe(context.Background())
	require.NoError(t, err)

	inv := QuorumInvariant()
	violations, err := inv.Evaluate(obs)
	require.NoError(t, err)
	require.Len(t, violations, 1)
	require.Equal(t, "quorum", violations[0].InvariantName)
}

func TestQuorumInvariant_SilentWhenHealthy(t *testing.T) {
	c := NewCluster(3)
	obs, err := c.Observe(context.Background())
	require.NoError(t, err)

	violations, err := QuorumInvariant().Evaluate(obs)
	require.NoError(t, err)
	require.Empty(t, violations)
}

func TestLatencyInvariant_FiresAboveThreshold(t *testing.T) {
	c := NewCluster(3)
	require.NoError(t, c.SetLatency("node-0", quorumThresholdMS+1))
	obs, err := c.Observe(context.Background())
	require.NoError(t, err)

	violations, err := LatencyInvariant().Evaluate(obs)
	require.NoError(t, err)
	require.Len(t, violations, 1)
}

func TestCluster_ResetRevivesAndClearsLatency(t *testing.T) {
	c := NewCluster(3)
	require.NoError(t, c.KillNode("node-0"))
	require.NoError(t, c.SetLatency("node-1", 999))

	require.NoError(t, c.Reset())

	obs, err := c.Observe(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, obs["alive_nodes"])
	require.Equal(t, 10, obs["max_latency"])
}

func TestClusterInjector_NodeKillAndRecover(t *testing.T) {
	c := NewCluster(3)
	injector := NewClusterInjector(c)
	ctx := context.Background()

	meta, err := injector.Inject(ctx, ChaosNodeKill, map[string]any{"node": "node-0"})
	require.NoError(t, err)
	require.Equal(t, "node-0", meta["node"])

	obs, err := c.Observe(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, obs["alive_nodes"])

	require.NoError(t, injector.Recover(ctx, meta))
	obs, err = c.Observe(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, obs["alive_nodes"])
}

func TestClusterInjector_SlowNodeRoundTripsThroughJSONTypes(t *testing.T) {
	c := NewCluster(2)
	injector := NewClusterInjector(c)
	ctx := context.Background()

	meta, err := injector.Inject(ctx, ChaosSlowNode, map[string]any{"node": "node-0"})
	require.NoError(t, err)

	// simulate metadata having round-tripped through JSON storage, where
	// numbers decode as float64
	meta["previous_latency_ms"] = float64(10)

	require.NoError(t, injector.Recover(ctx, meta))
	obs, err := c.Observe(ctx)
	require.NoError(t, err)
	nodes := obs["nodes"].(map[string]NodeState)
	require.Equal(t, 10, nodes["node-0"].LatencyMS)
}

func TestClusterInjector_UnknownChaosType(t *testing.T) {
	c := NewCluster(2)
	injector := NewClusterInjector(c)
	_, err := injector.Inject(context.Background(), "not_a_real_fault", nil)
	require.Error(t, err)
}

func TestRestartNodeTool_RevivesKilledNode(t *testing.T) {
	c := NewCluster(2)
	require.NoError(t, c.KillNode("node-0"))

	rt := NewRestartNodeTool(c)
	result, err := rt.Execute(context.Background(), map[string]any{"node": "node-0"})
	require.NoError(t, err)
	require.False(t, result.IsError)

	obs, err := c.Observe(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, obs["alive_nodes"])
}

func TestRestartNodeTool_MissingParam(t *testing.T) {
	c := NewCluster(2)
	rt := NewRestartNodeTool(c)
	result, err := rt.Execute(context.Background(), map[string]any{})
	require.NoError(t, err)
	require.True(t, result.IsError)
}
