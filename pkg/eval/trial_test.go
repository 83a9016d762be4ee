package eval

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/operator/pkg/chaos"
	"github.com/codeready-toolchain/operator/pkg/demo"
	"github.com/codeready-toolchain/operator/pkg/model"
	"github.com/codeready-toolchain/operator/pkg/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "operator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// selfHealer wraps a demo.ClusterInjector so a trial resolves without any
// agent process: a background goroutine recovers each injected fault
// shortly after the monitor would have opened a ticket, simulating baseline
// self-healing for TestRunner_BaselineResolvesWithoutAgent.
type selfHealer struct {
	cluster *demo.Cluster
	injector *demo.ClusterInjector
}

func (h selfHealer) Inject(ctx context.Context, chaosType string, params map[string]any) (chaos.Metadata, error) {
	meta, err := h.injector.Inject(ctx, chaosType, params)
	if err != nil {
		return nil, err
	}
	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = h.injector.Recover(context.Background(), meta)
	}()
	return meta, nil
}

func (h selfHealer) Recover(ctx context.Context, metadata chaos.Metadata) error {
	return h.injector.Recover(ctx, metadata)
}

// runMonitorTicks drives a handful of synchronous monitor-style ticks
// against cluster's quorum invariant, opening/resolving tickets the same
// way pkg/monitor.Loop would, without pulling in that package's own poll
// loop (which would make this test racy against wall-clock timing).
func runMonitorTicks(ctx context.Context, t *testing.T, st *store.Store, cluster *demo.Cluster, ticks int, each time.Duration) {
	t.Helper()
	inv := demo.QuorumInvariant()
	for i := 0; i < ticks; i++ {
		obs, err := cluster.Observe(ctx)
		require.NoError(t, err)
		violations, err := inv.Evaluate(obs)
		require.NoError(t, err)

		open, err := st.ListTickets(ctx, store.TicketFilter{Status: model.TicketOpen})
		require.NoError(t, err)

		if len(violations) == 0 {
			for _, tk := range open {
				if tk.InvariantName == inv.Name && tk.SubjectName == cluster.Name() {
					require.NoError(t, st.ResolveTicket(ctx, tk.ID, "quorum restored"))
				}
			}
		} else {
			for _, v := range violations {
				_, err := st.OpenTicket(ctx, v.InvariantName, cluster.Name(), v.Key, inv.Severity, v.Details)
				require.NoError(t, err)
			}
		}
		time.Sleep(each)
	}
}

func TestRunner_BaselineResolvesWithoutAgent(t *testing.T) {
	st := newTestStore(t)
	cluster := demo.NewCluster(2)
	healer := selfHealer{cluster: cluster, injector: demo.NewClusterInjector(cluster)}
	runner := NewRunner(st, cluster, healer)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		runMonitorTicks(ctx, t, st, cluster, 30, 20*time.Millisecond)
	}()

	id, err := runner.Run(ctx, Spec{
		CampaignID:     1,
		SubjectName:    cluster.Name(),
		ChaosType:      demo.ChaosNodeKill,
		ChaosParams:    map[string]any{"node": "node-0"},
		DetectTimeout:  500 * time.Millisecond,
		ResolveTimeout: 500 * time.Millisecond,
		Reset:          func(context.Context) error { return cluster.ReviveNode("node-0") },
	})
	require.NoError(t, err)
	<-done

	trial, err := st.GetTrial(ctx, id)
	require.NoError(t, err)
	require.Equal(t, model.TrialResolved, trial.Outcome)
	require.NotNil(t, trial.TicketCreatedAt)
	require.NotNil(t, trial.ResolvedAt)
}

func TestRunner_TimesOutWhenNoTicketAppears(t *testing.T) {
	st := newTestStore(t)
	cluster := demo.NewCluster(3)
	injector := demo.NewClusterInjector(cluster)
	runner := NewRunner(st, cluster, injector)

	// killing one of three nodes never breaks quorum (2/3 alive), so no
	// monitor tick would ever open a ticket — DETECT_WAIT must time out.
	id, err := runner.Run(context.Background(), Spec{
		CampaignID:     2,
		SubjectName:    cluster.Name(),
		ChaosType:      demo.ChaosNodeKill,
		ChaosParams:    map[string]any{"node": "node-0"},
		DetectTimeout:  50 * time.Millisecond,
		ResolveTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)

	trial, err := st.GetTrial(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, model.TrialTimeout, trial.Outcome)
	require.Nil(t, trial.TicketCreatedAt)
}

func TestRunPool_RunsAllTrialsWithCooldown(t *testing.T) {
	st := newTestStore(t)
	cluster := demo.NewCluster(3)
	injector := demo.NewClusterInjector(cluster)
	runner := NewRunner(st, cluster, injector)

	results := RunPool(context.Background(), runner, 3, 1, time.Millisecond, func(int) Spec {
		return Spec{
			CampaignID:     3,
			SubjectName:    cluster.Name(),
			ChaosType:      demo.ChaosNodeKill,
			ChaosParams:    map[string]any{"node": "node-0"},
			DetectTimeout:  20 * time.Millisecond,
			ResolveTimeout: 20 * time.Millisecond,
			Reset:          func(context.Context) error { return cluster.ReviveNode("node-0") },
		}
	})

	require.Len(t, results, 3)
	for _, r := range results {
		require.NoError(t, r.Err)
		require.NotZero(t, r.TrialID)
	}
}

func TestRunCampaign_PersistsCampaignRow(t *testing.T) {
	st := newTestStore(t)
	cluster := demo.NewCluster(3)
	injector := demo.NewClusterInjector(cluster)

	campaignID, results, err := RunCampaign(context.Background(), st, cluster, injector, CampaignSpec{
		Name:                  "node-kill-smoke",
		SubjectName:           cluster.Name(),
		ChaosType:             demo.ChaosNodeKill,
		ChaosParams:           map[string]any{"node": "node-0"},
		TrialCount:            2,
		Parallelism:           2,
		DetectTimeoutSeconds:  0,
		ResolveTimeoutSeconds: 0,
		Reset:                 func(context.Context) error { return cluster.ReviveNode("node-0") },
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	campaign, err := st.GetCampaign(context.Background(), campaignID)
	require.NoError(t, err)
	require.Equal(t, "node-kill-smoke", campaign.Name)

	trials, err := st.ListTrialsForCampaign(context.Background(), campaignID)
	require.NoError(t, err)
	require.Len(t, trials, 2)
}
