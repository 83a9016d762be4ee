package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/codeready-toolchain/operator/pkg/analysis"
	"github.com/codeready-toolchain/operator/pkg/demo"
	"github.com/codeready-toolchain/operator/pkg/eval"
	"github.com/codeready-toolchain/operator/pkg/store"
)

// campaignConfig is the YAML shape `eval run` reads. Subject is currently
// always the demo cluster — the CLI's minimum-viable surface (spec.md
// §6.5) has no pluggable-subject registry, so this is the one runnable
// target end users exercise the harness against.
type campaignConfig struct {
	Name                  string `yaml:"name" validate:"required"`
	ChaosType             string `yaml:"chaos_type" validate:"required,oneof=node_kill slow_node"`
	Variant               string `yaml:"variant"`
	IsBaseline            bool   `yaml:"is_baseline"`
	TrialCount            int    `yaml:"trial_count" validate:"required,min=1"`
	Parallelism           int    `yaml:"parallelism" validate:"min=0"`
	CooldownSeconds       int    `yaml:"cooldown_seconds" validate:"min=0"`
	BaselineWaitSeconds   int    `yaml:"baseline_wait_seconds" validate:"min=0"`
	DetectTimeoutSeconds  int    `yaml:"detect_timeout_seconds" validate:"required,min=1"`
	ResolveTimeoutSeconds int    `yaml:"resolve_timeout_seconds" validate:"required,min=1"`
	NodeCount             int    `yaml:"node_count" validate:"min=0"`
}

func loadCampaignConfig(path string) (campaignConfig, error) {
	var cfg campaignConfig
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("eval: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("eval: parsing %s: %w", path, err)
	}
	if cfg.Parallelism == 0 {
		cfg.Parallelism = 1
	}
	if cfg.NodeCount == 0 {
		cfg.NodeCount = 5
	}
	if err := validator.New().Struct(cfg); err != nil {
		return cfg, fmt.Errorf("eval: invalid config %s: %w", path, err)
	}
	return cfg, nil
}

func newEvalCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "eval", Short: "Run and inspect evaluation campaigns"}

	cmd.AddCommand(
		newEvalRunCmd(flags),
		newEvalListCmd(flags),
		newEvalShowCmd(flags),
		newEvalAnalyzeCmd(flags),
		newEvalCompareCmd(flags),
		newEvalCompareBaselineCmd(flags),
		newEvalViewerCmd(flags),
	)
	return cmd
}

func newEvalRunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run <config.yaml>",
		Short: "Run a campaign from a YAML config",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCampaignConfig(args[0])
			if err != nil {
				return err
			}

			st, err := flags.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			cluster := demo.NewCluster(cfg.NodeCount)
			injector := demo.NewClusterInjector(cluster)

			campaignID, results, err := eval.RunCampaign(cmd.Context(), st, cluster, injector, eval.CampaignSpec{
				Name:                  cfg.Name,
				SubjectName:           cluster.Name(),
				ChaosType:             cfg.ChaosType,
				Variant:               cfg.Variant,
				IsBaseline:            cfg.IsBaseline,
				TrialCount:            cfg.TrialCount,
				Parallelism:           cfg.Parallelism,
				CooldownSeconds:       cfg.CooldownSeconds,
				BaselineWaitSeconds:   cfg.BaselineWaitSeconds,
				DetectTimeoutSeconds:  cfg.DetectTimeoutSeconds,
				ResolveTimeoutSeconds: cfg.ResolveTimeoutSeconds,
				Reset:                 func(context.Context) error { return cluster.Reset() },
			})
			if err != nil {
				return err
			}

			type trialOutcome struct {
				Index   int    `json:"index"`
				TrialID int64  `json:"trial_id"`
				Error   string `json:"error,omitempty"`
			}
			outcomes := make([]trialOutcome, 0, len(results))
			failed := 0
			for _, r := range results {
				o := trialOutcome{Index: r.Index, TrialID: r.TrialID}
				if r.Err != nil {
					o.Error = r.Err.Error()
					failed++
				}
				outcomes = append(outcomes, o)
			}
			return flags.printResult(struct {
				CampaignID int64          `json:"campaign_id"`
				Results    []trialOutcome `json:"results"`
			}{campaignID, outcomes}, func() string {
				return fmt.Sprintf("campaign %d: %d trials (%d failed to run)", campaignID, len(results), failed)
			})
		},
	}
}

func newEvalListCmd(flags *rootFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List campaigns",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := flags.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			campaigns, err := st.ListCampaigns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return flags.printResult(campaigns, func() string {
				out := ""
				for _, c := range campaigns {
					out += fmt.Sprintf("%d\t%s\t%s/%s\tbaseline=%v\n", c.ID, c.Name, c.SubjectName, c.ChaosType, c.IsBaseline)
				}
				return out
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "limit result count (0 = unbounded)")
	return cmd
}

func newEvalShowCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "show <campaign_id|trial_id>",
		Short: "Show a campaign (with its trials) or a single trial",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q: %w", args[0], err)
			}
			st, err := flags.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if campaign, err := st.GetCampaign(cmd.Context(), id); err == nil {
				trials, err := st.ListTrialsForCampaign(cmd.Context(), id)
				if err != nil {
					return err
				}
				return flags.printResult(struct {
					Campaign any `json:"campaign"`
					Trials   any `json:"trials"`
				}{campaign, trials}, func() string {
					out := fmt.Sprintf("campaign %d: %s (%s/%s)\n", campaign.ID, campaign.Name, campaign.SubjectName, campaign.ChaosType)
					for _, t := range trials {
						out += fmt.Sprintf("  trial %d: %s\n", t.ID, t.Outcome)
					}
					return out
				})
			}

			trial, err := st.GetTrial(cmd.Context(), id)
			if err != nil {
				return fmt.Errorf("eval: no campaign or trial with id %d: %w", id, err)
			}
			return flags.printResult(trial, func() string {
				return fmt.Sprintf("trial %d (campaign %d): %s", trial.ID, trial.CampaignID, trial.Outcome)
			})
		},
	}
}

func newEvalAnalyzeCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <campaign_id>",
		Short: "Score every trial in a campaign and summarize",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid campaign id %q: %w", args[0], err)
			}
			st, err := flags.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			summary, err := analyzeCampaign(cmd.Context(), st, id)
			if err != nil {
				return err
			}
			return flags.printResult(summary, func() string {
				return fmt.Sprintf("campaign %d: win rate %.0f%% over %d trials (%d resolved)",
					summary.CampaignID, summary.WinRate*100, summary.TrialCount, summary.ResolvedCount)
			})
		},
	}
}

func newEvalCompareCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <a> <b>",
		Short: "Compare two campaigns over the same subject/chaos pair",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := flags.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			a, err := mustCampaign(cmd, st, args[0])
			if err != nil {
				return err
			}
			b, err := mustCampaign(cmd, st, args[1])
			if err != nil {
				return err
			}
			sa, err := analyzeCampaign(cmd.Context(), st, a.ID)
			if err != nil {
				return err
			}
			sb, err := analyzeCampaign(cmd.Context(), st, b.ID)
			if err != nil {
				return err
			}
			cmp, err := analysis.CompareCampaigns(a.SubjectName, a.ChaosType, sa, b.SubjectName, b.ChaosType, sb)
			if err != nil {
				return err
			}
			return flags.printResult(cmp, func() string {
				return fmt.Sprintf("winner: %s (win rate delta %.2f)", cmp.Winner, cmp.WinRateDelta)
			})
		},
	}
}

func newEvalCompareBaselineCmd(flags *rootFlags) *cobra.Command {
	var baselineID int64
	cmd := &cobra.Command{
		Use:   "compare-baseline <id>",
		Short: "Compare a campaign against its baseline counterpart",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid campaign id %q: %w", args[0], err)
			}
			st, err := flags.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if baselineID == 0 {
				return fmt.Errorf("eval: --baseline is required")
			}
			agentSummary, err := analyzeCampaign(cmd.Context(), st, id)
			if err != nil {
				return err
			}
			baselineSummary, err := analyzeCampaign(cmd.Context(), st, baselineID)
			if err != nil {
				return err
			}
			cmp := analysis.CompareBaseline(agentSummary, baselineSummary)
			return flags.printResult(cmp, func() string {
				return fmt.Sprintf("winner: %s (win rate delta %.2f)", cmp.Winner, cmp.WinRateDelta)
			})
		},
	}
	cmd.Flags().Int64Var(&baselineID, "baseline", 0, "baseline campaign id to compare against")
	return cmd
}

func mustCampaign(cmd *cobra.Command, st *store.Store, id string) (campaignRef, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return campaignRef{}, fmt.Errorf("invalid campaign id %q: %w", id, err)
	}
	c, err := st.GetCampaign(cmd.Context(), n)
	if err != nil {
		return campaignRef{}, err
	}
	return campaignRef{ID: c.ID, SubjectName: c.SubjectName, ChaosType: c.ChaosType}, nil
}

type campaignRef struct {
	ID          int64
	SubjectName string
	ChaosType   string
}

// analyzeCampaign loads every trial in a campaign, scores each with the
// deterministic rule classifier, and summarizes the results. The rule
// classifier (not an LLM call) keeps `eval analyze` fast and
// network-free — grounded on spec.md §9's destructiveness-classifier
// open question, resolved in pkg/analysis.
func analyzeCampaign(ctx context.Context, st *store.Store, campaignID int64) (analysis.CampaignSummary, error) {
	trials, err := st.ListTrialsForCampaign(ctx, campaignID)
	if err != nil {
		return analysis.CampaignSummary{}, err
	}

	classifier := analysis.NewRuleClassifier()
	scores := make([]analysis.TrialScore, 0, len(trials))
	for _, t := range trials {
		finalHealthy := isFinalStateHealthy(t.FinalState)
		score, err := analysis.ScoreTrial(ctx, classifier, t, finalHealthy)
		if err != nil {
			return analysis.CampaignSummary{}, fmt.Errorf("eval: scoring trial %d: %w", t.ID, err)
		}
		scores = append(scores, score)
	}
	return analysis.Summarize(campaignID, scores), nil
}

// isFinalStateHealthy re-derives the demo cluster's IsHealthy predicate
// from a trial's stored final_state snapshot, since the harness persists
// Observation as plain JSON rather than a live Subject handle.
func isFinalStateHealthy(finalState map[string]any) bool {
	total, _ := finalState["total_nodes"].(float64)
	alive, _ := finalState["alive_nodes"].(float64)
	return total > 0 && alive*2 > total
}
