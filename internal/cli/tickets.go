package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/operator/pkg/model"
	"github.com/codeready-toolchain/operator/pkg/store"
)

func newTicketsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "tickets", Short: "Inspect tickets"}

	var status string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List tickets",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := flags.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			tickets, err := st.ListTickets(cmd.Context(), store.TicketFilter{Status: model.TicketStatus(status), Limit: limit})
			if err != nil {
				return err
			}
			return flags.printResult(tickets, func() string {
				out := ""
				for _, t := range tickets {
					out += fmt.Sprintf("#%d\t%s\t%s\t%s\topened %s\n", t.ID, t.Status, t.Severity, t.SubjectName, t.OpenedAt.Format("2006-01-02T15:04:05Z"))
				}
				return out
			})
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by status (open|in_progress|resolved|escalated)")
	list.Flags().IntVar(&limit, "limit", 0, "limit result count (0 = unbounded)")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one ticket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid ticket id %q: %w", args[0], err)
			}
			st, err := flags.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			t, err := st.GetTicket(cmd.Context(), id)
			if err != nil {
				return err
			}
			return flags.printResult(t, func() string {
				return fmt.Sprintf("#%d %s\nsubject: %s\ninvariant: %s (%s)\nstatus: %s\nopened: %s\ndiagnosis: %s",
					t.ID, t.ViolationKey, t.SubjectName, t.InvariantName, t.Severity, t.Status, t.OpenedAt, t.Diagnosis)
			})
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}
