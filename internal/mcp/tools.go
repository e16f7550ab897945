// ABOUTME: MCP tool definitions and registration for the HMLR server
// ABOUTME: Exposes the conversation engine and retrieval paths as 4 MCP tools
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/harper/hmlr/internal/core"
	"github.com/harper/hmlr/internal/storage/sqlite"
)

// RegisterTools registers all MCP tools with the server
func RegisterTools(server *mcpserver.MCPServer, engine *core.ConversationEngine, crawler *core.Crawler, retriever *core.DossierRetriever, store *sqlite.Storage, profilePath string) *Handlers {
	handlers := &Handlers{
		engine:      engine,
		crawler:     crawler,
		retriever:   retriever,
		store:       store,
		profilePath: profilePath,
	}

	// 1. process_message - run the full per-query pipeline
	server.AddTool(mcp.Tool{
		Name:        "process_message",
		Description: "Process a user message through the HMLR memory pipeline: route it to the right topic block, retrieve relevant long-term memory, and return the generated reply.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"message": map[string]interface{}{
					"type":        "string",
					"description": "User message to process",
				},
			},
			Required: []string{"message"},
		},
	}, handlers.ProcessMessage)

	// 2. search_memory - crawler + dossier retrieval without generation
	server.AddTool(mcp.Tool{
		Name:        "search_memory",
		Description: "Search long-term memory (gardened chunks and fact dossiers) by semantic similarity.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"query": map[string]interface{}{
					"type":        "string",
					"description": "Search query",
				},
			},
			Required: []string{"query"},
		},
	}, handlers.SearchMemory)

	// 3. garden_block - run the gardening pipeline for one block
	server.AddTool(mcp.Tool{
		Name:        "garden_block",
		Description: "Garden a bridge block: classify its facts into sticky tags, route narrative facts into dossiers, and retire the block from the short-term ledger.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"block_id": map[string]interface{}{
					"type":        "string",
					"description": "Bridge block ID to garden",
				},
			},
			Required: []string{"block_id"},
		},
	}, handlers.GardenBlock)

	// 4. get_user_profile - read the profile document
	server.AddTool(mcp.Tool{
		Name:        "get_user_profile",
		Description: "Read the user profile document (constraints, preferences, identities).",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, handlers.GetUserProfile)

	return handlers
}
