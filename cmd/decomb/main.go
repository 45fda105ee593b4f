package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ludo-technologies/decomb/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "decomb",
	Short: "Control-flow structuring for lifted binaries",
	Long: `decomb turns the control-flow graphs of lifted binary functions into
structured syntax trees made of sequences, conditionals, loops and switches,
without gotos.

Features:
  • Loop region collapsing with entry and exit dispatchers
  • Acyclic region structuring with node splitting (combing)
  • Per-function duplication and code growth metrics
  • Text, JSON, YAML, CSV and graphviz DOT reports`,
	Version:       version.Short(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(NewStructureCmd())
	rootCmd.AddCommand(NewInitCmd())
	rootCmd.AddCommand(NewVersionCmd())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		rootCmd.PrintErrln("Error:", err)
		stop()
		os.Exit(1)
	}
}
