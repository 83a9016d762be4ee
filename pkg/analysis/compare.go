package analysis

import (
	"fmt"
	"time"
)

// Comparison is the result of comparing two campaign summaries, surfacing
// both the raw deltas and a structured winner flag per spec.md §4.6.
type Comparison struct {
	A, B          CampaignSummary
	WinRateDelta  float64 // A - B
	DetectDelta   *time.Duration
	ResolveDelta  *time.Duration
	Winner        string // "A", "B", or "tie"
}

// CompareCampaigns compares two campaigns that ran the same subject/chaos
// pair; it is an error to compare mismatched pairs (spec.md §4.6). Winner
// is the higher win rate, tie-broken by lower mean resolve time over
// resolved trials only.
func CompareCampaigns(aSubject, aChaos string, a CampaignSummary, bSubject, bChaos string, b CampaignSummary) (Comparison, error) {
	if aSubject != bSubject || aChaos != bChaos {
		return Comparison{}, fmt.Errorf("analysis: cannot compare campaigns for different subject/chaos pairs (%s/%s vs %s/%s)", aSubject, aChaos, bSubject, bChaos)
	}
	return compare(a, b), nil
}

// CompareBaseline compares an agent-run campaign against its baseline
// counterpart, with the same winner semantics as CompareCampaigns.
func CompareBaseline(agent, baseline CampaignSummary) Comparison {
	return compare(agent, baseline)
}

func compare(a, b CampaignSummary) Comparison {
	c := Comparison{A: a, B: b, WinRateDelta: a.WinRate - b.WinRate}

	if a.MeanTimeToDetect != nil && b.MeanTimeToDetect != nil {
		d := *a.MeanTimeToDetect - *b.MeanTimeToDetect
		c.DetectDelta = &d
	}
	if a.MeanTimeToResolve != nil && b.MeanTimeToResolve != nil {
		d := *a.MeanTimeToResolve - *b.MeanTimeToResolve
		c.ResolveDelta = &d
	}

	switch {
	case a.WinRate > b.WinRate:
		c.Winner = "A"
	case b.WinRate > a.WinRate:
		c.Winner = "B"
	case a.MeanTimeToResolve != nil && b.MeanTimeToResolve != nil && *a.MeanTimeToResolve != *b.MeanTimeToResolve:
		if *a.MeanTimeToResolve < *b.MeanTimeToResolve {
			c.Winner = "A"
		} else {
			c.Winner = "B"
		}
	default:
		c.Winner = "tie"
	}
	return c
}
