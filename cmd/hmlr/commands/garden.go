// ABOUTME: Garden command runs the offline gardening pipeline for a block
// ABOUTME: Converts a ledger block into sticky tags and dossier facts
package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// NewGardenCmd creates the garden command
func NewGardenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "garden <block-id>",
		Short: "Garden a bridge block into long-term memory",
		Long: `Garden a bridge block: classify its facts into sticky metadata tags,
promote its chunks into gardened memory, route narrative facts into
dossiers, and delete the block from the short-term ledger.

The block is left intact if any step fails.`,
		Args: cobra.ExactArgs(1),
		RunE: runGarden,
	}

	return cmd
}

func runGarden(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	report, err := rt.engine.Garden(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("gardening: %w", err)
	}

	if outputFormat == "json" {
		data, err := json.MarshalIndent(report, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Gardened %s (%s)\n", report.BlockID, report.TopicLabel)
	fmt.Fprintf(cmd.OutOrStdout(), "  facts: %d  tags: %d  rules: %d  chunks: %d  dossiers: %d\n",
		report.FactsProcessed, report.GlobalTags, report.SectionRules,
		report.ChunksPromoted, len(report.DossiersTouched))
	return nil
}
