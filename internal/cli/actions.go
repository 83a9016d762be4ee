package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newActionsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "actions", Short: "Approve or reject pending action proposals"}

	approve := &cobra.Command{
		Use:   "approve <proposal_id>",
		Short: "Approve a validated proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid proposal id %q: %w", args[0], err)
			}
			st, err := flags.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.ApproveProposal(cmd.Context(), id, "cli"); err != nil {
				return err
			}
			fmt.Printf("proposal %d approved\n", id)
			return nil
		},
	}

	var reason string
	reject := &cobra.Command{
		Use:   "reject <proposal_id>",
		Short: "Reject a validated proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid proposal id %q: %w", args[0], err)
			}
			st, err := flags.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.RejectProposal(cmd.Context(), id, "cli", reason); err != nil {
				return err
			}
			fmt.Printf("proposal %d rejected\n", id)
			return nil
		},
	}
	reject.Flags().StringVar(&reason, "reason", "", "rejection reason")

	cmd.AddCommand(approve, reject)
	return cmd
}
