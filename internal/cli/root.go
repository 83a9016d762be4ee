// Package cli wires Operator's cobra command tree: one subcommand per
// surface named in spec.md §6.5 (monitor, agent, tickets, audit, actions,
// eval), sharing the --db/--json persistent flags every command accepts.
// Grounded on the pack's only cobra-based example (shiyuanpei-ntm's
// internal/cli) for the root-command/persistent-flag/JSON-mode shape; its
// lipgloss/term styling layer is not part of the teacher's own stack and
// is deliberately not adopted here — output stays plain text or --json.
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/operator/internal/config"
	"github.com/codeready-toolchain/operator/pkg/store"
)

// rootFlags holds the persistent flags every subcommand reads.
type rootFlags struct {
	dbPath string
	json   bool
}

// NewRoot builds the operator root command.
func NewRoot() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           "operator",
		Short:         "Operator: autonomous remediation for distributed infrastructure",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	defaultDB := config.DefaultDBPath()
	if v := os.Getenv("OPERATOR_DB_PATH"); v != "" {
		defaultDB = v
	}
	root.PersistentFlags().StringVar(&flags.dbPath, "db", defaultDB, "path to the operator SQLite database")
	root.PersistentFlags().BoolVar(&flags.json, "json", false, "machine-readable JSON output")

	root.AddCommand(
		newMonitorCmd(flags),
		newAgentCmd(flags),
		newTicketsCmd(flags),
		newAuditCmd(flags),
		newActionsCmd(flags),
		newEvalCmd(flags),
	)
	return root
}

// openStore opens the database named by --db, used by every subcommand
// that touches persistent state.
func (f *rootFlags) openStore() (*store.Store, error) {
	return store.Open(f.dbPath)
}

// printResult renders v as indented JSON when --json is set, otherwise
// calls text(v) to produce the human-readable rendering.
func (f *rootFlags) printResult(v any, text func() string) error {
	if f.json {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	fmt.Fprintln(os.Stdout, text())
	return nil
}
