// Command termindex serves and maintains a clinical terminology search index.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	root := &cobra.Command{
		Use:           "termindex",
		Short:         "Clinical terminology search index",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default $TERMINDEX_CONFIG or config.yaml)")

	root.AddCommand(
		newServeCmd(&cfgPath),
		newImportCmd(&cfgPath),
		newCheckCmd(&cfgPath),
		newNormalizeCmd(),
		newMCPCmd(&cfgPath),
		newCallCmd(),
	)
	return root
}
