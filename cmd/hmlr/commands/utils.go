// ABOUTME: Shared utility functions for CLI commands
// ABOUTME: Builds the wired conversation engine from configuration
package commands

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"

	"github.com/harper/hmlr/internal/config"
	"github.com/harper/hmlr/internal/core"
	"github.com/harper/hmlr/internal/llm"
	"github.com/harper/hmlr/internal/logging"
	"github.com/harper/hmlr/internal/storage/sqlite"
)

// runtime bundles everything a command needs to drive the memory system.
type runtime struct {
	cfg       *config.Config
	store     *sqlite.Storage
	client    *llm.Client
	engine    *core.ConversationEngine
	crawler   *core.Crawler
	retriever *core.DossierRetriever
}

// close releases the runtime's resources
func (r *runtime) close() {
	if r.store != nil {
		_ = r.store.Close()
	}
}

// buildRuntime loads config, opens storage, and wires the full engine.
func buildRuntime() (*runtime, error) {
	// Load .env for API keys
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if dbPathFlag != "" {
		cfg.DBPath = dbPathFlag
	}
	if cfg.OpenAIKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	logger := logging.New(debug)

	store, err := sqlite.NewStorageWithPath(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("initializing storage: %w", err)
	}

	client, err := llm.NewClientWithConfig(&llm.ClientConfig{
		APIKey:         cfg.OpenAIKey,
		ChatModel:      cfg.LLMModel,
		EmbeddingModel: cfg.EmbeddingModel,
		EmbeddingDim:   cfg.EmbeddingDim,
		Timeout:        cfg.Timeout,
		MaxRetries:     cfg.MaxRetries,
		RetryDelay:     cfg.RetryDelay,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("initializing LLM client: %w", err)
	}

	crawler := core.NewCrawler(client, store, cfg.SimilarityThreshold, cfg.RetrievalTopK, cfg.DossierTopK)
	retriever := core.NewDossierRetriever(store, cfg.DossierTopK)
	dossierGovernor := core.NewDossierGovernor(store, client, client, cfg.VotingTopK, cfg.SimilarityThreshold, logger)

	engine := core.NewConversationEngine(core.EngineDeps{
		Store:            store,
		ChunkEngine:      core.NewChunkEngine(),
		Scrubber:         core.NewFactScrubber(client, logger),
		Scribe:           core.NewScribe(client, cfg.UserProfilePath, logger),
		Crawler:          crawler,
		Governor:         core.NewGovernor(client, store, logger),
		Hydrator:         core.NewHydrator(cfg.TokenBudget),
		DossierRetriever: retriever,
		Gardener:         core.NewGardener(store, client, dossierGovernor, logger),
		Generator:        &core.LLMGenerator{Client: client},
		Embedder:         client,
		ProfilePath:      cfg.UserProfilePath,
		Logger:           logger,
	})

	return &runtime{
		cfg:       cfg,
		store:     store,
		client:    client,
		engine:    engine,
		crawler:   crawler,
		retriever: retriever,
	}, nil
}

// truncateText shortens a string to maxLen, adding "..." if truncated
func truncateText(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return string(runes[:maxLen-3]) + "..."
}

// formatTime formats a time for display
func formatTime(t time.Time) string {
	now := time.Now()
	diff := now.Sub(t)

	if diff < time.Minute {
		return "just now"
	} else if diff < time.Hour {
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	} else if diff < 24*time.Hour {
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	} else if diff < 7*24*time.Hour {
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	}
	return t.Format("2006-01-02")
}

// validatePositiveInt returns error if n is not positive
func validatePositiveInt(n int, name string) error {
	if n <= 0 {
		return fmt.Errorf("%s must be positive, got %d", name, n)
	}
	return nil
}
