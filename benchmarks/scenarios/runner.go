// ABOUTME: Scenario runner: wires a fresh engine per scenario and checks expectations
// ABOUTME: Requires a live API key; used by cmd/benchmark
package scenarios

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/harper/hmlr/internal/config"
	"github.com/harper/hmlr/internal/core"
	"github.com/harper/hmlr/internal/llm"
	"github.com/harper/hmlr/internal/logging"
	"github.com/harper/hmlr/internal/models"
	"github.com/harper/hmlr/internal/storage/sqlite"
)

// Result is the outcome of one scenario run.
type Result struct {
	ScenarioID string        `json:"scenario_id"`
	Name       string        `json:"name"`
	Passed     bool          `json:"passed"`
	Failures   []string      `json:"failures,omitempty"`
	Reply      string        `json:"final_reply,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
}

// Runner executes scenarios against a live LLM and embedder.
type Runner struct {
	apiKey  string
	cfg     *config.Config
	verbose bool
}

// NewRunner creates a scenario runner.
func NewRunner(apiKey string, verbose bool) (*Runner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return &Runner{apiKey: apiKey, cfg: cfg, verbose: verbose}, nil
}

// Run executes one scenario in an isolated temp directory.
func (r *Runner) Run(ctx context.Context, scenario Scenario) Result {
	start := time.Now()
	result := Result{ScenarioID: scenario.ID, Name: scenario.Name}

	tmpDir, err := os.MkdirTemp("", "hmlr_bench_"+scenario.ID+"_")
	if err != nil {
		return r.fail(result, start, fmt.Sprintf("tempdir: %v", err))
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()

	store, err := sqlite.NewStorageWithPath(filepath.Join(tmpDir, "hmlr.db"))
	if err != nil {
		return r.fail(result, start, fmt.Sprintf("storage: %v", err))
	}
	defer func() { _ = store.Close() }()

	profilePath := filepath.Join(tmpDir, "user_profile.json")

	client, err := llm.NewClientWithConfig(&llm.ClientConfig{
		APIKey:         r.apiKey,
		ChatModel:      r.cfg.LLMModel,
		EmbeddingModel: r.cfg.EmbeddingModel,
		EmbeddingDim:   r.cfg.EmbeddingDim,
		Timeout:        r.cfg.Timeout,
		MaxRetries:     r.cfg.MaxRetries,
		RetryDelay:     r.cfg.RetryDelay,
	})
	if err != nil {
		return r.fail(result, start, fmt.Sprintf("llm client: %v", err))
	}

	logger := logging.NewWithWriter(os.Stderr, r.verbose)
	dossierGovernor := core.NewDossierGovernor(store, client, client, r.cfg.VotingTopK, r.cfg.SimilarityThreshold, logger)
	engine := core.NewConversationEngine(core.EngineDeps{
		Store:            store,
		ChunkEngine:      core.NewChunkEngine(),
		Scrubber:         core.NewFactScrubber(client, logger),
		Scribe:           core.NewScribe(client, profilePath, logger),
		Crawler:          core.NewCrawler(client, store, r.cfg.SimilarityThreshold, r.cfg.RetrievalTopK, r.cfg.DossierTopK),
		Governor:         core.NewGovernor(client, store, logger),
		Hydrator:         core.NewHydrator(r.cfg.TokenBudget),
		DossierRetriever: core.NewDossierRetriever(store, r.cfg.DossierTopK),
		Gardener:         core.NewGardener(store, client, dossierGovernor, logger),
		Generator:        &core.LLMGenerator{Client: client},
		Embedder:         client,
		ProfilePath:      profilePath,
		Logger:           logger,
	})

	if err := r.applySetup(ctx, scenario, store, client, profilePath); err != nil {
		return r.fail(result, start, fmt.Sprintf("setup: %v", err))
	}

	gardenAfter := make(map[int]bool, len(scenario.GardenAfter))
	for _, n := range scenario.GardenAfter {
		gardenAfter[n] = true
	}

	var reply string
	for i, turn := range scenario.Turns {
		reply, err = engine.ProcessUserMessage(ctx, turn)
		if err != nil {
			return r.fail(result, start, fmt.Sprintf("turn %d: %v", i+1, err))
		}
		if r.verbose {
			fmt.Printf("  [%s] turn %d → %s\n", scenario.ID, i+1, firstLine(reply))
		}

		if gardenAfter[i+1] {
			active, err := store.GetBlocksByStatus(models.StatusActive)
			if err != nil || len(active) == 0 {
				return r.fail(result, start, fmt.Sprintf("turn %d: no active block to garden", i+1))
			}
			if _, err := engine.Garden(ctx, active[0].BlockID); err != nil {
				return r.fail(result, start, fmt.Sprintf("gardening after turn %d: %v", i+1, err))
			}
		}
	}
	result.Reply = reply

	result.Failures = r.check(scenario, store, reply)
	result.Passed = len(result.Failures) == 0
	result.Duration = time.Since(start)
	return result
}

// applySetup seeds the profile and any pre-gardened blocks.
func (r *Runner) applySetup(ctx context.Context, scenario Scenario, store *sqlite.Storage, embedder core.Embedder, profilePath string) error {
	if scenario.ProfileSeed != nil {
		if err := scenario.ProfileSeed.Save(profilePath); err != nil {
			return err
		}
	}

	for _, seed := range scenario.SeedBlocks {
		for i, text := range seed.Chunks {
			turnID := fmt.Sprintf("%s_t%02d", seed.BlockID, i+1)
			chunk := &models.Chunk{
				ChunkID:     turnID + "_p01",
				ChunkType:   models.ChunkTypeParagraph,
				Content:     text,
				TurnID:      turnID,
				TurnOrdinal: i + 1,
				TokenCount:  core.EstimateTokens(text),
			}
			vector, err := embedder.GenerateEmbedding(ctx, text)
			if err != nil {
				return err
			}
			if err := store.SaveChunkEmbedding(chunk, vector); err != nil {
				return err
			}
			if err := store.LinkChunksToTurn(turnID, seed.BlockID, i+1); err != nil {
				return err
			}
		}
		if _, err := store.PromoteBlockChunks(seed.BlockID); err != nil {
			return err
		}
		if err := store.SaveBlockMetadata(&models.BlockMetadata{
			BlockID:      seed.BlockID,
			GlobalTags:   seed.GlobalTags,
			SectionRules: seed.SectionRules,
		}); err != nil {
			return err
		}
	}

	return nil
}

// check evaluates the scenario's expectations against the reply and store.
func (r *Runner) check(scenario Scenario, store *sqlite.Storage, reply string) []string {
	var failures []string

	lowerReply := strings.ToLower(reply)
	for _, want := range scenario.ExpectInResponse {
		if !strings.Contains(lowerReply, strings.ToLower(want)) {
			failures = append(failures, fmt.Sprintf("response missing %q", want))
		}
	}
	for _, forbidden := range scenario.ForbiddenInResponse {
		if strings.Contains(lowerReply, strings.ToLower(forbidden)) {
			failures = append(failures, fmt.Sprintf("response contains forbidden %q", forbidden))
		}
	}

	if scenario.ExpectBlockCount > 0 {
		blocks, err := store.ListBlocks()
		if err != nil {
			failures = append(failures, fmt.Sprintf("listing blocks: %v", err))
		} else if len(blocks) != scenario.ExpectBlockCount {
			failures = append(failures, fmt.Sprintf("expected %d blocks, got %d", scenario.ExpectBlockCount, len(blocks)))
		}
	}

	if scenario.ExpectDossierCount > 0 {
		dossiers, err := store.ListDossiers()
		if err != nil {
			failures = append(failures, fmt.Sprintf("listing dossiers: %v", err))
		} else if len(dossiers) != scenario.ExpectDossierCount {
			failures = append(failures, fmt.Sprintf("expected %d dossiers, got %d", scenario.ExpectDossierCount, len(dossiers)))
		}
	}

	return failures
}

func (r *Runner) fail(result Result, start time.Time, msg string) Result {
	result.Failures = append(result.Failures, msg)
	result.Duration = time.Since(start)
	return result
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 100 {
		s = s[:100] + "..."
	}
	return s
}
