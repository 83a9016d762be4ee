package demo

import (
	"context"
	"fmt"

	"github.com/codeready-toolchain/operator/pkg/chaos"
)

// Chaos types this injector understands.
const (
	ChaosNodeKill   = "node_kill"
	ChaosSlowNode   = "slow_node"
	slowNodeFaultMS = 400
)

// ClusterInjector implements chaos.Injector against a Cluster, letting the
// evaluation harness break and repair the demo subject without knowing its
// internals.
type ClusterInjector struct {
	cluster *Cluster
}

// NewClusterInjector wraps cluster as a chaos.Injector.
func NewClusterInjector(cluster *Cluster) *ClusterInjector {
	return &ClusterInjector{cluster: cluster}
}

// Inject applies chaosType against the cluster. node_kill takes an
// explicit "node" param if given, otherwise a random alive node; slow_node
// raises a node's simulated latency past the invariant threshold.
func (i *ClusterInjector) Inject(ctx context.Context, chaosType string, params map[string]any) (chaos.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	nodeID, _ := params["node"].(string)
	if nodeID == "" {
		picked, ok := i.cluster.RandomAliveNode()
		if !ok {
			return nil, fmt.Errorf("demo: no alive node to target")
		}
		nodeID = picked
	}

	switch chaosType {
	case ChaosNodeKill:
		if err := i.cluster.KillNode(nodeID); err != nil {
			return nil, err
		}
		return chaos.Metadata{"chaos_type": ChaosNodeKill, "node": nodeID}, nil

	case ChaosSlowNode:
		previous := 0
		i.cluster.mu.Lock()
		if n, ok := i.cluster.nodes[nodeID]; ok {
			previous = n.LatencyMS
		}
		i.cluster.mu.Unlock()
		if err := i.cluster.SetLatency(nodeID, slowNodeFaultMS); err != nil {
			return nil, err
		}
		return chaos.Metadata{"chaos_type": ChaosSlowNode, "node": nodeID, "previous_latency_ms": previous}, nil

	default:
		return nil, fmt.Errorf("demo: unknown chaos type %q", chaosType)
	}
}

// intFromAny handles metadata that has round-tripped through JSON, where
// numbers decode as float64 rather than int.
func intFromAny(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	default:
		return 0
	}
}

// Recover reverses whichever fault metadata describes.
func (i *ClusterInjector) Recover(ctx context.Context, metadata chaos.Metadata) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	nodeID, _ := metadata["node"].(string)
	if nodeID == "" {
		return fmt.Errorf("demo: recover metadata missing node")
	}

	switch metadata["chaos_type"] {
	case ChaosNodeKill:
		return i.cluster.ReviveNode(nodeID)
	case ChaosSlowNode:
		return i.cluster.SetLatency(nodeID, intFromAny(metadata["previous_latency_ms"]))
	default:
		return fmt.Errorf("demo: recover metadata missing chaos_type")
	}
}
