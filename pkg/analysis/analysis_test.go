package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/operator/pkg/model"
)

func TestRuleClassifier_Categories(t *testing.T) {
	c := NewRuleClassifier()
	ctx := context.Background()

	cat, err := c.Classify(ctx, "rm -rf /data")
	require.NoError(t, err)
	require.Equal(t, CategoryDestructive, cat)

	cat, err = c.Classify(ctx, "docker restart tikv0")
	require.NoError(t, err)
	require.Equal(t, CategoryModerate, cat)

	cat, err = c.Classify(ctx, "curl http://localhost:8080/health")
	require.NoError(t, err)
	require.Equal(t, CategorySafe, cat)

	cat, err = c.Classify(ctx, "frobnicate the widget")
	require.NoError(t, err)
	require.Equal(t, CategoryUnknown, cat)
}

func TestRuleClassifier_Deterministic(t *testing.T) {
	c := NewRuleClassifier()
	ctx := context.Background()
	first, err := c.Classify(ctx, "kill -9 1234")
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := c.Classify(ctx, "kill -9 1234")
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestDetectThrashing_TripleRepeatWithinWindow(t *testing.T) {
	base := time.Now()
	commands := []timedCommand{
		{At: base, Command: "c"},
		{At: base.Add(10 * time.Second), Command: "c"},
		{At: base.Add(20 * time.Second), Command: "c"},
	}
	require.True(t, DetectThrashing(commands))
}

func TestDetectThrashing_DistinctCommandsNoThrash(t *testing.T) {
	base := time.Now()
	commands := []timedCommand{
		{At: base, Command: "c1"},
		{At: base.Add(10 * time.Second), Command: "c2"},
		{At: base.Add(20 * time.Second), Command: "c3"},
	}
	require.False(t, DetectThrashing(commands))
}

func TestDetectThrashing_OutsideWindowNoThrash(t *testing.T) {
	base := time.Now()
	commands := []timedCommand{
		{At: base, Command: "c"},
		{At: base.Add(40 * time.Second), Command: "c"},
		{At: base.Add(90 * time.Second), Command: "c"},
	}
	require.False(t, DetectThrashing(commands))
}

func TestScoreTrial_ComputesMetrics(t *testing.T) {
	injectedAt := time.Now()
	ticketAt := injectedAt.Add(2 * time.Second)
	resolvedAt := injectedAt.Add(10 * time.Second)

	trial := model.Trial{
		ID:              1,
		Outcome:         model.TrialResolved,
		ChaosInjectedAt: injectedAt,
		TicketCreatedAt: &ticketAt,
		ResolvedAt:      &resolvedAt,
		CommandsJSON: []model.ToolCallRecord{
			{Timestamp: injectedAt.Add(time.Second), ToolName: "shell", Params: `{"command":"rm -rf /data"}`},
			{Timestamp: injectedAt.Add(2 * time.Second), ToolName: "shell", Params: `{"command":"docker restart tikv0"}`},
		},
	}

	score, err := ScoreTrial(context.Background(), NewRuleClassifier(), trial, true)
	require.NoError(t, err)
	require.True(t, score.Resolved)
	require.Equal(t, 2*time.Second, *score.TimeToDetect)
	require.Equal(t, 10*time.Second, *score.TimeToResolve)
	require.Equal(t, 2, score.CommandCount)
	require.Equal(t, 2, score.UniqueCommandCount)
	require.Equal(t, 1, score.DestructiveCount)
	require.False(t, score.ThrashingDetected)
}

func TestScoreTrial_NotResolvedWhenSubjectUnhealthy(t *testing.T) {
	trial := model.Trial{ID: 2, Outcome: model.TrialResolved, ChaosInjectedAt: time.Now()}
	score, err := ScoreTrial(context.Background(), NewRuleClassifier(), trial, false)
	require.NoError(t, err)
	require.False(t, score.Resolved)
}

func TestSummarize_WinRateAndMeans(t *testing.T) {
	detect1, resolve1 := time.Second, 5*time.Second
	detect2, resolve2 := 3*time.Second, 15*time.Second
	scores := []TrialScore{
		{Resolved: true, TimeToDetect: &detect1, TimeToResolve: &resolve1},
		{Resolved: true, TimeToDetect: &detect2, TimeToResolve: &resolve2},
		{Resolved: false},
	}
	summary := Summarize(42, scores)
	require.Equal(t, 3, summary.TrialCount)
	require.Equal(t, 2, summary.ResolvedCount)
	require.InDelta(t, 2.0/3.0, summary.WinRate, 0.0001)
	require.Equal(t, 2*time.Second, *summary.MeanTimeToDetect)
	require.Equal(t, 10*time.Second, *summary.MeanTimeToResolve)
}

func TestCompareCampaigns_RejectsMismatchedPairs(t *testing.T) {
	_, err := CompareCampaigns("cluster-a", "node_kill", CampaignSummary{}, "cluster-b", "node_kill", CampaignSummary{})
	require.Error(t, err)
}

func TestCompareCampaigns_WinnerByWinRate(t *testing.T) {
	a := CampaignSummary{WinRate: 0.8}
	b := CampaignSummary{WinRate: 0.5}
	cmp, err := CompareCampaigns("cluster", "node_kill", a, "cluster", "node_kill", b)
	require.NoError(t, err)
	require.Equal(t, "A", cmp.Winner)
	require.InDelta(t, 0.3, cmp.WinRateDelta, 0.0001)
}

func TestCompareBaseline_TieBreaksOnResolveTime(t *testing.T) {
	fast := 5 * time.Second
	slow := 20 * time.Second
	agent := CampaignSummary{WinRate: 0.6, MeanTimeToResolve: &fast}
	baseline := CampaignSummary{WinRate: 0.6, MeanTimeToResolve: &slow}

	cmp := CompareBaseline(agent, baseline)
	require.Equal(t, "A", cmp.Winner)
}

func TestCompareBaseline_TrueTie(t *testing.T) {
	cmp := CompareBaseline(CampaignSummary{WinRate: 0.5}, CampaignSummary{WinRate: 0.5})
	require.Equal(t, "tie", cmp.Winner)
}
