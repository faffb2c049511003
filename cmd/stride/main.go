// Command stride is the STRIDE harness CLI: run solvers against a MAF
// instance corpus, check a solution file standalone, or profile a solver
// invocation in isolation.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "26.0.0"

func main() {
	root := &cobra.Command{
		Use:     "stride",
		Short:   "Harness for the PACE 2026 Maximum-Agreement Forest competition",
		Version: version,
	}

	root.AddCommand(newRunCommand())
	root.AddCommand(newCheckCommand())
	root.AddCommand(newProfileCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
