package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/operator/pkg/model"
)

func newAuditCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{Use: "audit", Short: "Inspect agent session audit trails"}

	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List agent sessions",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := flags.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			sessions, err := st.ListSessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return flags.printResult(sessions, func() string {
				out := ""
				for _, s := range sessions {
					out += fmt.Sprintf("%s\tticket #%d\t%s\t%s\n", s.SessionID, s.TicketID, s.Status, s.OutcomeSummary)
				}
				return out
			})
		},
	}
	list.Flags().IntVar(&limit, "limit", 0, "limit result count (0 = unbounded)")

	show := &cobra.Command{
		Use:   "show <session_id>",
		Short: "Replay one session's conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := flags.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			sessionID := args[0]
			sess, err := st.GetSession(cmd.Context(), sessionID)
			if err != nil {
				return err
			}
			entries, err := st.ListLogEntries(cmd.Context(), sessionID)
			if err != nil {
				return err
			}

			view := struct {
				Session *model.AgentSession  `json:"session"`
				Entries []model.AgentLogEntry `json:"entries"`
			}{sess, entries}
			return flags.printResult(view, func() string {
				out := fmt.Sprintf("session %s (ticket #%d, %s)\n", sess.SessionID, sess.TicketID, sess.Status)
				for _, e := range entries {
					switch e.EntryType {
					case model.EntryReasoning:
						out += fmt.Sprintf("[%d] reasoning: %s\n", e.Seq, e.Content)
					case model.EntryToolCall:
						out += fmt.Sprintf("[%d] call %s(%v)\n", e.Seq, e.ToolName, e.ToolParams)
					case model.EntryToolResult:
						out += fmt.Sprintf("[%d] result %s: %s\n", e.Seq, e.ToolName, e.Content)
					}
				}
				return out
			})
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}
