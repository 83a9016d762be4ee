package eval

import (
	"context"
	"fmt"
	"time"

	"github.com/codeready-toolchain/operator/pkg/chaos"
	"github.com/codeready-toolchain/operator/pkg/model"
	"github.com/codeready-toolchain/operator/pkg/store"
	"github.com/codeready-toolchain/operator/pkg/subject"
)

// CampaignSpec describes a whole campaign: a labelled batch of identical
// trials against one subject/chaos-type pair.
type CampaignSpec struct {
	Name                  string
	SubjectName           string
	ChaosType             string
	ChaosParams           map[string]any
	Variant               string
	IsBaseline            bool
	TrialCount            int
	Parallelism           int
	CooldownSeconds       int
	BaselineWaitSeconds   int
	DetectTimeoutSeconds  int
	ResolveTimeoutSeconds int
	// Reset restores the subject to a known clean state before each trial.
	Reset func(ctx context.Context) error
}

// RunCampaign creates a Campaign row and runs its trials to completion,
// returning the campaign id and each trial's outcome. Callers are
// responsible for having started (or, for a baseline campaign,
// deliberately not started) the agent loop process before calling this —
// the harness only scripts the chaos and observes the shared store.
func RunCampaign(ctx context.Context, st *store.Store, subj subject.Subject, injector chaos.Injector, spec CampaignSpec) (int64, []TrialResult, error) {
	if spec.TrialCount < 1 {
		return 0, nil, fmt.Errorf("eval: campaign %q needs at least one trial", spec.Name)
	}

	campaignID, err := st.CreateCampaign(ctx, model.Campaign{
		Name:                  spec.Name,
		SubjectName:           spec.SubjectName,
		ChaosType:             spec.ChaosType,
		Variant:               spec.Variant,
		IsBaseline:            spec.IsBaseline,
		CooldownSeconds:       spec.CooldownSeconds,
		DetectTimeoutSeconds:  spec.DetectTimeoutSeconds,
		ResolveTimeoutSeconds: spec.ResolveTimeoutSeconds,
		Parallelism:           spec.Parallelism,
	})
	if err != nil {
		return 0, nil, fmt.Errorf("eval: create campaign: %w", err)
	}

	runner := NewRunner(st, subj, injector)
	trialSpec := Spec{
		CampaignID:     campaignID,
		SubjectName:    spec.SubjectName,
		ChaosType:      spec.ChaosType,
		ChaosParams:    spec.ChaosParams,
		BaselineWait:   time.Duration(spec.BaselineWaitSeconds) * time.Second,
		DetectTimeout:  time.Duration(spec.DetectTimeoutSeconds) * time.Second,
		ResolveTimeout: time.Duration(spec.ResolveTimeoutSeconds) * time.Second,
		Reset:          spec.Reset,
	}

	results := RunPool(ctx, runner, spec.TrialCount, spec.Parallelism, time.Duration(spec.CooldownSeconds)*time.Second,
		func(int) Spec { return trialSpec })

	return campaignID, results, nil
}
