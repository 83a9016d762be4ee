package demo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/codeready-toolchain/operator/pkg/tool"
)

var restartNodeSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"node": {"type": "string", "description": "node id, e.g. node-0"}
	},
	"required": ["node"]
}`)

// RestartNodeTool adapts Cluster.RestartNode into the tool.Tool interface
// the agent loop calls through, alongside the generic shell/http_probe
// tools every subject gets for free.
type RestartNodeTool struct {
	cluster *Cluster
}

// NewRestartNodeTool builds the restart_node tool for cluster.
func NewRestartNodeTool(cluster *Cluster) *RestartNodeTool {
	return &RestartNodeTool{cluster: cluster}
}

func (t *RestartNodeTool) Schema() tool.Schema {
	return tool.Schema{
		Name:             "restart_node",
		Description:      "Restart a simulated cluster node, reviving it if it was killed.",
		Mutating:         true,
		RequiresApproval: true,
		ParametersSchema: restartNodeSchema,
	}
}

func (t *RestartNodeTool) Execute(ctx context.Context, params map[string]any) (tool.Result, error) {
	nodeID, _ := params["node"].(string)
	if nodeID == "" {
		return tool.Result{IsError: true, Content: "missing required parameter: node"}, nil
	}
	if err := t.cluster.RestartNode(ctx, nodeID); err != nil {
		return tool.Result{IsError: true, Content: fmt.Sprintf("restart_node failed: %v", err)}, nil
	}
	return tool.Result{Content: fmt.Sprintf("node %s restarted", nodeID)}, nil
}
