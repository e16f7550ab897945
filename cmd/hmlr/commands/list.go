// ABOUTME: List command shows the short-term ledger and dossier inventory
// ABOUTME: Supports text table and JSON output
package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listDossiers bool

// NewListCmd creates the list command
func NewListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List ledger blocks or dossiers",
		Long: `List the bridge blocks currently in the short-term ledger, or the
long-term dossiers with --dossiers.`,
		Args: cobra.NoArgs,
		RunE: runList,
	}

	cmd.Flags().BoolVar(&listDossiers, "dossiers", false, "List dossiers instead of ledger blocks")

	return cmd
}

func runList(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	if listDossiers {
		dossiers, err := rt.store.ListDossiers()
		if err != nil {
			return fmt.Errorf("listing dossiers: %w", err)
		}

		if outputFormat == "json" {
			data, err := json.MarshalIndent(dossiers, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DOSSIER\tTITLE\tUPDATED")
		for _, d := range dossiers {
			fmt.Fprintf(w, "%s\t%s\t%s\n", d.DossierID, truncateText(d.Title, 40), formatTime(d.LastUpdated))
		}
		return w.Flush()
	}

	blocks, err := rt.store.ListBlocks()
	if err != nil {
		return fmt.Errorf("listing blocks: %w", err)
	}

	if outputFormat == "json" {
		data, err := json.MarshalIndent(blocks, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "BLOCK\tTOPIC\tSTATUS\tTURNS\tUPDATED")
	for _, b := range blocks {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n",
			b.BlockID, truncateText(b.TopicLabel, 40), b.Status, b.TurnCount, formatTime(b.UpdatedAt))
	}
	return w.Flush()
}
