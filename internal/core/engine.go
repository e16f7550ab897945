// ABOUTME: ConversationEngine orchestrates the five-stage per-query pipeline
// ABOUTME: Scribe, fact scrubber, and crawler fan out; facts link before hydration
package core

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/harper/hmlr/internal/models"
)

// EngineStore is the storage surface the conversation engine drives.
type EngineStore interface {
	GovernorStore
	CrawlerStore
	FactSink
	ChunkStore
	AppendTurn(blockID string, turn *models.Turn) (int, error)
	LinkFactsToTurn(turnID, blockID string) (int64, error)
	LinkChunksToTurn(turnID, blockID string, turnOrdinal int) error
	GetFactsForBlock(blockID string) ([]models.Fact, error)
}

// ConversationEngine is the public entry point of the memory system.
type ConversationEngine struct {
	store            EngineStore
	chunkEngine      *ChunkEngine
	scrubber         *FactScrubber
	scribe           *Scribe
	crawler          *Crawler
	governor         *Governor
	hydrator         *Hydrator
	dossierRetriever *DossierRetriever
	gardener         *Gardener
	generator        Generator
	embedder         Embedder
	profilePath      string
	logger           *log.Logger
}

// EngineDeps bundles the collaborators of the conversation engine.
type EngineDeps struct {
	Store            EngineStore
	ChunkEngine      *ChunkEngine
	Scrubber         *FactScrubber
	Scribe           *Scribe
	Crawler          *Crawler
	Governor         *Governor
	Hydrator         *Hydrator
	DossierRetriever *DossierRetriever
	Gardener         *Gardener
	Generator        Generator
	Embedder         Embedder
	ProfilePath      string
	Logger           *log.Logger
}

// NewConversationEngine wires the engine from its dependencies.
func NewConversationEngine(deps EngineDeps) *ConversationEngine {
	return &ConversationEngine{
		store:            deps.Store,
		chunkEngine:      deps.ChunkEngine,
		scrubber:         deps.Scrubber,
		scribe:           deps.Scribe,
		crawler:          deps.Crawler,
		governor:         deps.Governor,
		hydrator:         deps.Hydrator,
		dossierRetriever: deps.DossierRetriever,
		gardener:         deps.Gardener,
		generator:        deps.Generator,
		embedder:         deps.Embedder,
		profilePath:      deps.ProfilePath,
		logger:           deps.Logger,
	}
}

// ProcessUserMessage runs the full per-query pipeline and returns the
// generated reply. Storage failures are fatal to the query: the turn is not
// appended and the caller reports a generic failure.
func (e *ConversationEngine) ProcessUserMessage(ctx context.Context, text string) (string, error) {
	turn, err := models.NewTurn(text, "")
	if err != nil {
		return "", err
	}

	// Chunk and embed the query. An embedding failure degrades to an
	// unembedded turn: routing proceeds, retrieval comes back empty.
	chunks, err := e.chunkEngine.ChunkTurn(turn.TurnID, text, "")
	if err != nil {
		return "", fmt.Errorf("chunking failed: %w", err)
	}
	if err := e.chunkEngine.EmbedAndStore(ctx, chunks, e.embedder, e.store); err != nil {
		e.logger.Warn("chunk embedding failed, continuing without vectors", "err", err)
	}

	// Fire-and-forget profile learning.
	e.scribe.UpdateProfileAsync(text)

	// Fan out: fact extraction, retrieval, and routing run concurrently.
	var (
		crawl    *CrawlResult
		decision models.RoutingDecision
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := e.scrubber.ExtractAndSave(gctx, chunks, e.store)
		return err
	})
	g.Go(func() error {
		result, err := e.crawler.RetrieveCandidates(gctx, text)
		if err != nil {
			// Retrieval failures produce no candidates; routing continues.
			e.logger.Warn("retrieval failed, proceeding with empty candidates", "err", err)
			result = &CrawlResult{}
		}
		crawl = result
		return nil
	})
	g.Go(func() error {
		d, err := e.governor.Route(gctx, text)
		if err != nil {
			return err
		}
		decision = d
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", err
	}

	// Governor filtering runs on the crawler's shortlist.
	filtered := e.governor.FilterCandidates(ctx, text, crawl.Chunks)

	block, err := e.governor.CommitDecision(decision, text)
	if err != nil {
		return "", err
	}

	e.logger.Debug("routed query",
		"scenario", string(decision.Scenario),
		"block", block.BlockID,
		"candidates", len(filtered))

	// Link this turn's facts and chunks before hydration so the Hydrator
	// observes them.
	ordinal := block.TurnCount + 1
	if _, err := e.store.LinkFactsToTurn(turn.TurnID, block.BlockID); err != nil {
		return "", fmt.Errorf("fact linking failed: %w", err)
	}
	if err := e.store.LinkChunksToTurn(turn.TurnID, block.BlockID, ordinal); err != nil {
		return "", fmt.Errorf("chunk linking failed: %w", err)
	}

	// Assemble the prompt.
	profile, err := models.LoadUserProfile(e.profilePath)
	if err != nil {
		e.logger.Warn("profile load failed, hydrating without it", "err", err)
		profile = nil
	}
	facts, err := e.store.GetFactsForBlock(block.BlockID)
	if err != nil {
		return "", fmt.Errorf("fact load failed: %w", err)
	}
	dossiers, err := e.dossierRetriever.Resolve(crawl.DossierHits)
	if err != nil {
		return "", fmt.Errorf("dossier resolution failed: %w", err)
	}

	prompt := e.hydrator.BuildPrompt(HydrationInput{
		Profile:   profile,
		Facts:     facts,
		Dossiers:  dossiers,
		Memories:  filtered,
		Block:     block,
		UserQuery: text,
	})

	reply, err := e.generator.Generate(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}

	// Commit the turn. Only now does the conversation own it.
	turn.AIResponse = reply
	if _, err := e.store.AppendTurn(block.BlockID, turn); err != nil {
		return "", fmt.Errorf("turn append failed: %w", err)
	}
	block.Turns = append(block.Turns, *turn)
	block.TurnCount = len(block.Turns)

	// Chunk the AI response into the same turn tree. Deterministic IDs make
	// the re-chunked user paragraphs upsert onto their existing rows.
	if fullChunks, err := e.chunkEngine.ChunkTurn(turn.TurnID, text, reply); err == nil {
		if err := e.chunkEngine.EmbedAndStore(ctx, fullChunks, e.embedder, e.store); err != nil {
			e.logger.Warn("response chunk embedding failed", "err", err)
		} else if err := e.store.LinkChunksToTurn(turn.TurnID, block.BlockID, turn.Ordinal); err != nil {
			e.logger.Warn("response chunk linking failed", "err", err)
		}
	}

	// Refresh the block's accumulating fields.
	if err := e.governor.UpdateBlockAfterTurn(ctx, block, decision); err != nil {
		return "", fmt.Errorf("block update failed: %w", err)
	}

	return reply, nil
}

// ResetSession pauses every ACTIVE block so the next query starts fresh.
func (e *ConversationEngine) ResetSession() error {
	active, err := e.store.GetBlocksByStatus(models.StatusActive)
	if err != nil {
		return err
	}
	for _, block := range active {
		if err := e.store.UpdateBlockStatus(block.BlockID, models.StatusPaused); err != nil {
			return err
		}
	}
	return nil
}

// Garden runs the gardening pipeline for one block.
func (e *ConversationEngine) Garden(ctx context.Context, blockID string) (*GardenReport, error) {
	return e.gardener.Process(ctx, blockID)
}

// Scribe exposes the scribe for shutdown draining.
func (e *ConversationEngine) Scribe() *Scribe {
	return e.scribe
}
