package cli

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/operator/pkg/demo"
	"github.com/codeready-toolchain/operator/pkg/invariant"
	"github.com/codeready-toolchain/operator/pkg/monitor"
)

func newMonitorCmd(flags *rootFlags) *cobra.Command {
	var intervalSec int

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run the monitor loop",
	}
	start := &cobra.Command{
		Use:   "start",
		Short: "Observe the subject and reconcile tickets until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := flags.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			cluster := demo.NewCluster(5)
			invariants := []invariant.Invariant{demo.QuorumInvariant(), demo.LatencyInvariant()}
			loop := monitor.New(cluster, invariants, st, time.Duration(intervalSec)*time.Second, slog.Default())

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(os.Stdout, "monitor running against %s, polling every %ds (ctrl-c to stop)\n", cluster.Name(), intervalSec)
			return loop.Run(ctx)
		},
	}
	start.Flags().IntVar(&intervalSec, "interval", 5, "poll interval in seconds")
	cmd.AddCommand(start)
	return cmd
}
