package demo

import (
	"github.com/codeready-toolchain/operator/pkg/invariant"
	"github.com/codeready-toolchain/operator/pkg/model"
	"github.com/codeready-toolchain/operator/pkg/subject"
)

// quorumThresholdMS is the max tolerable max_latency before LatencyInvariant
// fires; chosen well above the 10ms healthy baseline and well below the
// chaos injector's 400ms slow-node fault so the two don't overlap at the
// boundary.
const quorumThresholdMS = 200

// QuorumInvariant fires when fewer than a strict majority of nodes are
// alive — the same health predicate Cluster.IsHealthy uses, expressed as a
// standalone invariant so the monitor loop can evaluate it without calling
// back into the Subject.
func QuorumInvariant() invariant.Invariant {
	return invariant.Invariant{
		Name:           "quorum",
		SubjectName:    "demo-cluster",
		Severity:       model.SeverityCritical,
		GracePeriodSec: 10,
		Evaluate: func(obs subject.Observation) ([]subject.Violation, error) {
			total, _ := obs["total_nodes"].(int)
			alive, _ := obs["alive_nodes"].(int)
			if total == 0 || alive*2 > total {
				return nil, nil
			}
			return []subject.Violation{{
				InvariantName: "quorum",
				Key:           "cluster",
				Severity:      string(model.SeverityCritical),
				Details: invariant.WithViolationKey("cluster", map[string]any{
					"total_nodes": total,
					"alive_nodes": alive,
				}),
			}}, nil
		},
	}
}

// LatencyInvariant fires when the slowest alive node exceeds
// quorumThresholdMS, independent of whether quorum itself holds.
func LatencyInvariant() invariant.Invariant {
	return invariant.Invariant{
		Name:           "latency",
		SubjectName:    "demo-cluster",
		Severity:       model.SeverityWarning,
		GracePeriodSec: 5,
		Evaluate: func(obs subject.Observation) ([]subject.Violation, error) {
			maxLatency, _ := obs["max_latency"].(int)
			if maxLatency <= quorumThresholdMS {
				return nil, nil
			}
			return []subject.Violation{{
				InvariantName: "latency",
				Key:           "cluster",
				Severity:      string(model.SeverityWarning),
				Details: invariant.WithViolationKey("cluster", map[string]any{
					"max_latency_ms": maxLatency,
					"threshold_ms":   quorumThresholdMS,
				}),
			}}, nil
		},
	}
}
