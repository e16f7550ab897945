// ABOUTME: MCP command starts a Model Context Protocol server over stdio
// ABOUTME: Enables LLM agents to use HMLR memory tools
package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/harper/hmlr/internal/mcp"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Run HMLR as an MCP (Model Context Protocol) server over stdio,
exposing process_message, search_memory, garden_block, and
get_user_profile tools.`,
		RunE: runMCP,
		Example: `  # Start MCP server (typically launched by the agent host)
  hmlr mcp`,
	}

	return cmd
}

func runMCP(cmd *cobra.Command, args []string) error {
	rt, err := buildRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	server := mcpserver.NewMCPServer("hmlr", versionInfo.Version)
	mcp.RegisterTools(server, rt.engine, rt.crawler, rt.retriever, rt.store, rt.cfg.UserProfilePath)

	if err := mcpserver.ServeStdio(server); err != nil {
		return fmt.Errorf("mcp server: %w", err)
	}

	// Drain in-flight profile updates before exit.
	rt.engine.Scribe().Wait()
	return nil
}
