// Operator is an autonomous remediation system: a monitor loop watches a
// subject for invariant violations, an agent loop investigates and
// resolves the tickets it raises, and an evaluation harness scores how
// well the two work together under injected chaos.
package main

import (
	"fmt"
	"os"

	"github.com/codeready-toolchain/operator/internal/cli"
)

func main() {
	if err := cli.NewRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "operator:", err)
		os.Exit(1)
	}
}
