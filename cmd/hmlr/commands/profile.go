// ABOUTME: Profile command displays the user profile document
// ABOUTME: Shows constraints with their full semantic content
package commands

import (
	"encoding/json"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/harper/hmlr/internal/config"
	"github.com/harper/hmlr/internal/models"
)

// NewProfileCmd creates the profile command
func NewProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Show the user profile",
		Long:  `Display the user profile document: constraints, preferences, and identities.`,
		Args:  cobra.NoArgs,
		RunE:  runProfile,
	}

	return cmd
}

func runProfile(cmd *cobra.Command, args []string) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	profile, err := models.LoadUserProfile(cfg.UserProfilePath)
	if err != nil {
		return fmt.Errorf("loading profile: %w", err)
	}

	if outputFormat == "json" {
		data, err := json.MarshalIndent(profile, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", data)
		return nil
	}

	g := profile.Glossary
	if len(g.Constraints) == 0 && len(g.Preferences) == 0 && len(g.Identities) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No profile recorded yet.")
		return nil
	}

	if len(g.Constraints) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Constraints:")
		for _, c := range g.Constraints {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s (%s, %s): %s\n", c.Key, c.Type, c.Severity, c.Description)
		}
	}
	if len(g.Preferences) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Preferences:")
		for _, p := range g.Preferences {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", p)
		}
	}
	if len(g.Identities) > 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "Identities:")
		for _, id := range g.Identities {
			fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", id)
		}
	}

	return nil
}
