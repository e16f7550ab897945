// ABOUTME: Search command runs the crawler and dossier retriever directly
// ABOUTME: Shows gardened chunk hits with their sticky tags plus matched dossiers
package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var searchLimit int

// NewSearchCmd creates the search command
func NewSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search long-term memory",
		Long: `Search gardened memory and fact dossiers by semantic similarity.

Examples:
  hmlr search "weather API credentials"
  hmlr search --limit 10 "deprecation policy"
  hmlr search --format json "dietary constraints"`,
		Args: cobra.ExactArgs(1),
		RunE: runSearch,
	}

	cmd.Flags().IntVar(&searchLimit, "limit", 5, "Maximum results to return")

	return cmd
}

func runSearch(cmd *cobra.Command, args []string) error {
	if err := validatePositiveInt(searchLimit, "limit"); err != nil {
		return err
	}

	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	crawl, err := rt.crawler.RetrieveCandidates(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("searching memory: %w", err)
	}

	chunks := crawl.Chunks
	if len(chunks) > searchLimit {
		chunks = chunks[:searchLimit]
	}

	dossiers, err := rt.retriever.Resolve(crawl.DossierHits)
	if err != nil {
		return fmt.Errorf("resolving dossiers: %w", err)
	}

	if outputFormat == "json" {
		payload := map[string]interface{}{"chunks": chunks, "dossiers": dossiers}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return nil
	}

	if len(chunks) == 0 && len(dossiers) == 0 {
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "No memories found for query: %s\n", args[0])
		}
		return nil
	}

	for _, c := range chunks {
		fmt.Fprintf(cmd.OutOrStdout(), "[%.2f] %s (%s)\n", c.SimilarityScore, truncateText(c.Content, 100), c.BlockID)
		for _, tag := range c.GlobalTags {
			fmt.Fprintf(cmd.OutOrStdout(), "       [%s] %s\n", tag.Type, tag.Value)
		}
	}
	for _, d := range dossiers {
		fmt.Fprintf(cmd.OutOrStdout(), "[%.2f] Dossier: %s — %s\n",
			d.SimilarityScore, d.Dossier.Title, truncateText(d.Dossier.Summary, 80))
	}

	return nil
}
