// Package demo provides an in-memory simulated cluster Subject, two
// invariants over it, and a chaos Injector that kills and revives nodes —
// a runnable stand-in for the real infrastructure a production deployment
// of Operator would point at. Subject/InvariantChecker/ChaosInjector are
// pure external contracts in spec.md §1; this package is what makes the
// CLI and integration tests runnable without a real cluster.
package demo

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/codeready-toolchain/operator/pkg/subject"
)

// NodeState is one simulated cluster node's health.
type NodeState struct {
	Alive     bool
	LatencyMS int
}

// Cluster simulates an N-node cluster behind a mutex, in the style of the
// pack's in-memory mock providers: no external dependency, safe for
// concurrent Observe/Inject/Recover calls from the monitor loop and the
// evaluation harness at once.
type Cluster struct {
	mu    sync.Mutex
	nodes map[string]*NodeState
}

// NewCluster creates a healthy n-node cluster named node-0..node-{n-1}.
func NewCluster(n int) *Cluster {
	nodes := make(map[string]*NodeState, n)
	for i := 0; i < n; i++ {
		nodes[fmt.Sprintf("node-%d", i)] = &NodeState{Alive: true, LatencyMS: 10}
	}
	return &Cluster{nodes: nodes}
}

// Name identifies this subject for invariant/ticket bookkeeping.
func (c *Cluster) Name() string { return "demo-cluster" }

func (c *Cluster) Description() string {
	return "simulated in-memory cluster used to exercise the monitor, agent, and evaluation harness without a real backend"
}

// Observe reports each node's alive/latency state.
func (c *Cluster) Observe(ctx context.Context) (subject.Observation, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	aliveCount := 0
	maxLatency := 0
	nodeView := make(map[string]NodeState, len(c.nodes))
	for id, n := range c.nodes {
		nodeView[id] = *n
		if n.Alive {
			aliveCount++
			if n.LatencyMS > maxLatency {
				maxLatency = n.LatencyMS
			}
		}
	}
	return subject.Observation{
		"total_nodes":  len(c.nodes),
		"alive_nodes":  aliveCount,
		"max_latency":  maxLatency,
		"nodes":        nodeView,
	}, nil
}

// IsHealthy reports whether a quorum of nodes is alive.
func (c *Cluster) IsHealthy(obs subject.Observation) bool {
	total, _ := obs["total_nodes"].(int)
	alive, _ := obs["alive_nodes"].(int)
	return total > 0 && alive*2 > total
}

// GetActionDefinitions advertises the remediation actions available
// against this subject, beyond the generic shell/http_probe tools.
func (c *Cluster) GetActionDefinitions() []subject.ActionSpec {
	return []subject.ActionSpec{
		{Name: "restart_node", Description: "Revive a dead node", Params: map[string]string{"node": "node id, e.g. node-0"}},
	}
}

// KillNode marks a node dead, simulating a crash.
func (c *Cluster) KillNode(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[id]
	if !ok {
		return fmt.Errorf("demo: unknown node %q", id)
	}
	n.Alive = false
	return nil
}

// ReviveNode marks a node alive again.
func (c *Cluster) ReviveNode(id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[id]
	if !ok {
		return fmt.Errorf("demo: unknown node %q", id)
	}
	n.Alive = true
	return nil
}

// SetLatency sets a node's simulated latency in milliseconds.
func (c *Cluster) SetLatency(id string, ms int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	n, ok := c.nodes[id]
	if !ok {
		return fmt.Errorf("demo: unknown node %q", id)
	}
	n.LatencyMS = ms
	return nil
}

// Reset revives every node and clears simulated latency, restoring the
// cluster to its initial healthy state between evaluation trials.
func (c *Cluster) Reset() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, n := range c.nodes {
		n.Alive = true
		n.LatencyMS = 10
	}
	return nil
}

// RandomAliveNode picks an arbitrary currently-alive node id, for chaos
// injectors that don't care which node they take down.
func (c *Cluster) RandomAliveNode() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var alive []string
	for id, n := range c.nodes {
		if n.Alive {
			alive = append(alive, id)
		}
	}
	if len(alive) == 0 {
		return "", false
	}
	return alive[rand.IntN(len(alive))], true
}

// RestartNode is the handler the agent's "restart_node" tool
// (RestartNodeTool, see pkg/demo/tool.go) calls into.
func (c *Cluster) RestartNode(ctx context.Context, id string) error {
	select {
	case <-time.After(50 * time.Millisecond): // simulate restart latency
	case <-ctx.Done():
		return ctx.Err()
	}
	return c.ReviveNode(id)
}
