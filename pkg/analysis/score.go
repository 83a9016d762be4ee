package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/operator/pkg/model"
)

// TrialScore is the idempotent per-trial scoring output of spec.md §4.6.
type TrialScore struct {
	TrialID            int64
	Outcome            model.TrialOutcome
	Resolved           bool
	TimeToDetect       *time.Duration
	TimeToResolve      *time.Duration
	CommandCount       int
	UniqueCommandCount int
	DestructiveCount   int
	ThrashingDetected  bool
}

// ScoreTrial computes a TrialScore from a completed Trial. finalHealthy is
// the Subject-specific is_healthy(final_state) predicate result, resolved
// over per spec.md §9's open question: the predicate lives on Subject, not
// the analyser, so callers supply its result here rather than this package
// importing pkg/subject.
func ScoreTrial(ctx context.Context, classifier Classifier, t model.Trial, finalHealthy bool) (TrialScore, error) {
	score := TrialScore{
		TrialID:  t.ID,
		Outcome:  t.Outcome,
		Resolved: t.Outcome == model.TrialResolved && finalHealthy,
	}

	if t.TicketCreatedAt != nil {
		d := t.TicketCreatedAt.Sub(t.ChaosInjectedAt)
		score.TimeToDetect = &d
	}
	if t.ResolvedAt != nil {
		d := t.ResolvedAt.Sub(t.ChaosInjectedAt)
		score.TimeToResolve = &d
	}

	score.CommandCount = len(t.CommandsJSON)
	seen := make(map[string]bool, len(t.CommandsJSON))
	timed := make([]timedCommand, 0, len(t.CommandsJSON))
	for _, c := range t.CommandsJSON {
		if !seen[c.ToolName+c.Params] {
			seen[c.ToolName+c.Params] = true
			score.UniqueCommandCount++
		}
		timed = append(timed, timedCommand{At: c.Timestamp, Command: c.ToolName + c.Params})

		category, err := classifier.Classify(ctx, c.Params)
		if err != nil {
			return TrialScore{}, fmt.Errorf("analysis: classify trial %d command: %w", t.ID, err)
		}
		if category == CategoryDestructive {
			score.DestructiveCount++
		}
	}
	score.ThrashingDetected = DetectThrashing(timed)

	return score, nil
}

// CampaignSummary aggregates TrialScores for one campaign per spec.md §4.6.
type CampaignSummary struct {
	CampaignID        int64
	TrialCount        int
	ResolvedCount     int
	WinRate           float64
	MeanTimeToDetect  *time.Duration
	MeanTimeToResolve *time.Duration
}

// Summarize aggregates scores into a CampaignSummary. Detect/resolve
// averages are computed over resolved trials only, per spec.
func Summarize(campaignID int64, scores []TrialScore) CampaignSummary {
	summary := CampaignSummary{CampaignID: campaignID, TrialCount: len(scores)}

	var detectSum, resolveSum time.Duration
	var detectN, resolveN int
	for _, s := range scores {
		if s.Resolved {
			summary.ResolvedCount++
			if s.TimeToDetect != nil {
				detectSum += *s.TimeToDetect
				detectN++
			}
			if s.TimeToResolve != nil {
				resolveSum += *s.TimeToResolve
				resolveN++
			}
		}
	}
	if summary.TrialCount > 0 {
		summary.WinRate = float64(summary.ResolvedCount) / float64(summary.TrialCount)
	}
	if detectN > 0 {
		mean := detectSum / time.Duration(detectN)
		summary.MeanTimeToDetect = &mean
	}
	if resolveN > 0 {
		mean := resolveSum / time.Duration(resolveN)
		summary.MeanTimeToResolve = &mean
	}
	return summary
}
