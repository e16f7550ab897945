// ABOUTME: MCP tool handler implementations for the HMLR server
// ABOUTME: Thin adapters from MCP requests onto the conversation engine
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/harper/hmlr/internal/core"
	"github.com/harper/hmlr/internal/models"
	"github.com/harper/hmlr/internal/storage/sqlite"
)

// Handlers contains the handler functions for all MCP tools
type Handlers struct {
	engine      *core.ConversationEngine
	crawler     *core.Crawler
	retriever   *core.DossierRetriever
	store       *sqlite.Storage
	profilePath string
}

// ProcessMessage handles the process_message tool
func (h *Handlers) ProcessMessage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	message, err := request.RequireString("message")
	if err != nil {
		return mcp.NewToolResultError("message argument is required and must be a string"), nil
	}

	reply, err := h.engine.ProcessUserMessage(ctx, message)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("processing failed: %v", err)), nil
	}

	return mcp.NewToolResultText(reply), nil
}

// SearchMemory handles the search_memory tool
func (h *Handlers) SearchMemory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query argument is required and must be a string"), nil
	}

	crawl, err := h.crawler.RetrieveCandidates(ctx, query)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	dossiers, err := h.retriever.Resolve(crawl.DossierHits)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("dossier resolution failed: %v", err)), nil
	}

	payload := map[string]interface{}{
		"chunks":   crawl.Chunks,
		"dossiers": dossiers,
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding failed: %v", err)), nil
	}

	return mcp.NewToolResultText(string(data)), nil
}

// GardenBlock handles the garden_block tool
func (h *Handlers) GardenBlock(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	blockID, err := request.RequireString("block_id")
	if err != nil {
		return mcp.NewToolResultError("block_id argument is required and must be a string"), nil
	}

	report, err := h.engine.Garden(ctx, blockID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("gardening failed: %v", err)), nil
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding failed: %v", err)), nil
	}

	return mcp.NewToolResultText(string(data)), nil
}

// GetUserProfile handles the get_user_profile tool
func (h *Handlers) GetUserProfile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	profile, err := models.LoadUserProfile(h.profilePath)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("profile load failed: %v", err)), nil
	}

	data, err := json.MarshalIndent(profile, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding failed: %v", err)), nil
	}

	return mcp.NewToolResultText(string(data)), nil
}
