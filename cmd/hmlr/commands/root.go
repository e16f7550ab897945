// ABOUTME: Root command wiring for the HMLR CLI
// ABOUTME: Holds global flags shared by all subcommands
package commands

import (
	"github.com/spf13/cobra"
)

var (
	outputFormat string
	quiet        bool
	debug        bool
	dbPathFlag   string
)

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hmlr",
		Short: "Hierarchical memory for conversational agents",
		Long: `HMLR is a long-term memory subsystem for conversational AI agents.

It routes each query to an ongoing topic block, extracts durable facts and
profile constraints, gardens aged blocks into tagged metadata and fact
dossiers, and assembles a governance-aware context window for generation.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&outputFormat, "format", "text", "Output format: text or json")
	cmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")
	cmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	cmd.PersistentFlags().StringVar(&dbPathFlag, "db", "", "Database path override")

	cmd.AddCommand(
		NewChatCmd(),
		NewGardenCmd(),
		NewListCmd(),
		NewSearchCmd(),
		NewProfileCmd(),
		NewMCPCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
