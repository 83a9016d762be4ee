package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/operator/internal/config"
	"github.com/codeready-toolchain/operator/pkg/agent"
	"github.com/codeready-toolchain/operator/pkg/demo"
	"github.com/codeready-toolchain/operator/pkg/errtypes"
	"github.com/codeready-toolchain/operator/pkg/llm"
	"github.com/codeready-toolchain/operator/pkg/tool"
)

// observeWhitelist is the read-only command set the shell tool accepts in
// observe safety mode.
var observeWhitelist = []string{"cat", "curl", "ls", "ps", "grep", "df", "uptime", "netstat"}

func newAgentCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "agent",
		Short: "Run the agent loop",
	}
	start := &cobra.Command{
		Use:   "start",
		Short: "Claim and resolve tickets until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Safety == agent.SafetyExecute && cfg.AnthropicKey == "" {
				return fmt.Errorf("%w: ANTHROPIC_API_KEY is required in execute mode", errtypes.ErrFatalConfig)
			}

			st, err := flags.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			var conv llm.Conversation
			if cfg.AnthropicKey != "" {
				client, err := llm.NewAnthropicClient(cfg.AnthropicKey)
				if err != nil {
					return fmt.Errorf("%w: %v", errtypes.ErrFatalConfig, err)
				}
				conv = client
			} else {
				conv = llm.NewStubConversation(llm.Reply{Text: "no LLM backend configured; escalating"})
			}

			cluster := demo.NewCluster(5)
			tools := tool.NewRegistry(nil)
			tools.Register(tool.NewHTTPProbeTool(10 * time.Second))
			tools.Register(tool.NewShellTool(10*time.Second, cfg.Safety == agent.SafetyObserve, observeWhitelist))
			if cfg.Safety == agent.SafetyExecute {
				tools.Register(demo.NewRestartNodeTool(cluster))
			}

			loop := agent.New(st, conv, tools, agent.Config{
				PollInterval:   cfg.PollInterval,
				PollJitter:     time.Second,
				Safety:         cfg.Safety,
				Approval:       cfg.Approval,
				SessionTimeout: cfg.SessionTimeout,
			}, slog.Default())

			ctx, stop := shutdownContext(cmd.Context())
			defer stop()
			fmt.Fprintf(os.Stdout, "agent running (safety=%s, approval=%s, ctrl-c to stop)\n", cfg.Safety, cfg.Approval)
			return loop.Run(ctx)
		},
	}
	cmd.AddCommand(start)
	return cmd
}

// shutdownContext behaves like signal.NotifyContext, except the context is
// cancelled with a cause identifying which signal fired, so a mid-session
// conversation can record "interrupted by SIGTERM" (spec.md §4.4) instead
// of a generic cancellation reason.
func shutdownContext(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			cancel(fmt.Errorf("interrupted by %s", signalName(sig)))
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel(nil)
	}
}

func signalName(sig os.Signal) string {
	switch sig {
	case syscall.SIGTERM:
		return "SIGTERM"
	case os.Interrupt:
		return "SIGINT"
	default:
		return sig.String()
	}
}
