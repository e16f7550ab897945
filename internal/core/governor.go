// ABOUTME: Governor implements smart routing logic for the HMLR memory system
// ABOUTME: One structured LLM call picks a scenario; a second prunes crawler candidates
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harper/hmlr/internal/models"
)

// GovernorStore is the storage surface the governor routes against.
type GovernorStore interface {
	LedgerSnapshot() ([]models.LedgerEntry, error)
	GetBlocksByStatus(status models.BridgeBlockStatus) ([]models.BridgeBlock, error)
	GetBlock(blockID string) (*models.BridgeBlock, error)
	SaveBlock(block *models.BridgeBlock) error
	UpdateBlockStatus(blockID string, status models.BridgeBlockStatus) error
	IsGardening(blockID string) bool
}

// Governor is the smart router that decides routing scenarios and filters
// retrieval candidates.
type Governor struct {
	client LLMClient
	store  GovernorStore
	logger *log.Logger
}

// NewGovernor creates a new Governor instance
func NewGovernor(client LLMClient, store GovernorStore, logger *log.Logger) *Governor {
	return &Governor{
		client: client,
		store:  store,
		logger: logger,
	}
}

const routingPrompt = `You are the topic router for a conversational memory system. Decide which ongoing topic block the new query belongs to.

CURRENT LEDGER (block_id, topic_label, keywords, summary, status):
%s

NEW QUERY:
%s

SCENARIOS:
1. "topic_continuation" — the query belongs to the ACTIVE block's topic. Gradual drift within a domain stays in the same block.
2. "topic_resumption" — the query returns to a PAUSED block's topic, possibly after an interruption.
3. "new_topic_first" — no block matches and nothing is active.
4. "topic_shift" — the query starts a clearly different topic while a block is ACTIVE. Only abrupt cross-domain jumps count.

TIE-BREAK: favor semantic continuity over recency. A vague follow-up like "Why?" belongs to the semantically nearest block even if it is not the most recent.

Return ONLY a JSON object:
{"scenario": "topic_continuation|topic_resumption|new_topic_first|topic_shift",
 "matched_block_id": "block id for continuation/resumption, else empty",
 "topic_label": "specific label for the query's topic (2-5 words)",
 "keywords": ["key", "terms", "from", "the", "query"]}`

// Route classifies the query into one of the four routing scenarios.
// LLM or parse failures fall back to continuation when an ACTIVE block
// exists, otherwise to a new topic.
func (g *Governor) Route(ctx context.Context, query string) (models.RoutingDecision, error) {
	if err := g.repairActiveInvariant(); err != nil {
		return models.RoutingDecision{}, err
	}

	ledger, err := g.store.LedgerSnapshot()
	if err != nil {
		return models.RoutingDecision{}, fmt.Errorf("failed to load ledger: %w", err)
	}

	activeID := ""
	for _, entry := range ledger {
		if entry.Status == models.StatusActive {
			activeID = entry.BlockID
		}
	}

	if len(ledger) == 0 {
		return models.RoutingDecision{Scenario: models.NewTopicFirst}, nil
	}

	ledgerJSON, err := json.MarshalIndent(ledger, "", "  ")
	if err != nil {
		return models.RoutingDecision{}, err
	}

	response, err := g.client.QueryJSON(ctx, fmt.Sprintf(routingPrompt, string(ledgerJSON), query))
	if err != nil {
		g.logger.Warn("routing call failed, using fallback", "err", err)
		return g.fallbackDecision(activeID), nil
	}

	decision, err := g.parseDecision(response, ledger, activeID)
	if err != nil {
		g.logger.Warn("routing response unparseable, using fallback", "err", err)
		return g.fallbackDecision(activeID), nil
	}
	decision.ActiveBlockID = activeID

	return decision, nil
}

func (g *Governor) fallbackDecision(activeID string) models.RoutingDecision {
	if activeID != "" {
		return models.RoutingDecision{
			Scenario:       models.TopicContinuation,
			MatchedBlockID: activeID,
			ActiveBlockID:  activeID,
		}
	}
	return models.RoutingDecision{Scenario: models.NewTopicFirst}
}

func (g *Governor) parseDecision(response string, ledger []models.LedgerEntry, activeID string) (models.RoutingDecision, error) {
	var parsed struct {
		Scenario       string   `json:"scenario"`
		MatchedBlockID string   `json:"matched_block_id"`
		TopicLabel     string   `json:"topic_label"`
		Keywords       []string `json:"keywords"`
	}
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		obj := extractJSONObject(response)
		if obj == "" {
			return models.RoutingDecision{}, fmt.Errorf("no JSON in routing response")
		}
		if err := json.Unmarshal([]byte(obj), &parsed); err != nil {
			return models.RoutingDecision{}, err
		}
	}

	scenario := models.RoutingScenario(parsed.Scenario)
	switch scenario {
	case models.TopicContinuation, models.TopicResumption:
		if !ledgerContains(ledger, parsed.MatchedBlockID) {
			return models.RoutingDecision{}, fmt.Errorf("routing matched unknown block %q", parsed.MatchedBlockID)
		}
	case models.NewTopicFirst, models.TopicShift:
		parsed.MatchedBlockID = ""
		// A shift with nothing active is just a new topic.
		if scenario == models.TopicShift && activeID == "" {
			scenario = models.NewTopicFirst
		}
	default:
		return models.RoutingDecision{}, fmt.Errorf("unknown routing scenario %q", parsed.Scenario)
	}

	return models.RoutingDecision{
		Scenario:       scenario,
		MatchedBlockID: parsed.MatchedBlockID,
		TopicLabel:     parsed.TopicLabel,
		Keywords:       parsed.Keywords,
	}, nil
}

func ledgerContains(ledger []models.LedgerEntry, blockID string) bool {
	for _, entry := range ledger {
		if entry.BlockID == blockID {
			return true
		}
	}
	return false
}

// repairActiveInvariant force-pauses all but the newest ACTIVE block.
func (g *Governor) repairActiveInvariant() error {
	active, err := g.store.GetBlocksByStatus(models.StatusActive)
	if err != nil {
		return err
	}
	if len(active) <= 1 {
		return nil
	}

	g.logger.Warn("invariant violation: multiple active blocks, force-pausing older ones",
		"count", len(active))

	newest := active[0]
	for _, block := range active[1:] {
		if block.UpdatedAt.After(newest.UpdatedAt) {
			newest = block
		}
	}
	for _, block := range active {
		if block.BlockID == newest.BlockID {
			continue
		}
		if err := g.store.UpdateBlockStatus(block.BlockID, models.StatusPaused); err != nil {
			return fmt.Errorf("failed to force-pause block %s: %w", block.BlockID, err)
		}
	}
	return nil
}

// CommitDecision applies the routing decision's state transitions and returns
// the target block. Exactly one block is ACTIVE afterwards. Resuming a block
// that is currently being gardened is treated as a topic shift onto a fresh
// block.
func (g *Governor) CommitDecision(decision models.RoutingDecision, query string) (*models.BridgeBlock, error) {
	scenario := decision.Scenario

	if scenario == models.TopicResumption && g.store.IsGardening(decision.MatchedBlockID) {
		g.logger.Info("resumption target is being gardened, creating fresh block",
			"block", decision.MatchedBlockID)
		scenario = models.TopicShift
		decision.MatchedBlockID = ""
	}

	switch scenario {
	case models.TopicContinuation:
		return g.requireBlock(decision.MatchedBlockID)

	case models.TopicResumption:
		if decision.ActiveBlockID != "" && decision.ActiveBlockID != decision.MatchedBlockID {
			if err := g.store.UpdateBlockStatus(decision.ActiveBlockID, models.StatusPaused); err != nil {
				return nil, fmt.Errorf("failed to pause active block: %w", err)
			}
		}
		if err := g.store.UpdateBlockStatus(decision.MatchedBlockID, models.StatusActive); err != nil {
			return nil, fmt.Errorf("failed to reactivate block: %w", err)
		}
		return g.requireBlock(decision.MatchedBlockID)

	case models.TopicShift:
		if decision.ActiveBlockID != "" {
			if err := g.store.UpdateBlockStatus(decision.ActiveBlockID, models.StatusPaused); err != nil {
				return nil, fmt.Errorf("failed to pause active block: %w", err)
			}
		}
		return g.createBlock(decision, query)

	case models.NewTopicFirst:
		return g.createBlock(decision, query)

	default:
		return nil, fmt.Errorf("cannot commit unknown scenario %q", scenario)
	}
}

func (g *Governor) requireBlock(blockID string) (*models.BridgeBlock, error) {
	block, err := g.store.GetBlock(blockID)
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, fmt.Errorf("routed block %s not found", blockID)
	}
	return block, nil
}

func (g *Governor) createBlock(decision models.RoutingDecision, query string) (*models.BridgeBlock, error) {
	now := time.Now().UTC()

	label := decision.TopicLabel
	if label == "" {
		label = truncate(query, 60)
	}

	block := &models.BridgeBlock{
		BlockID:    models.NewBlockID(now),
		TopicLabel: label,
		Keywords:   decision.Keywords,
		Status:     models.StatusActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := g.store.SaveBlock(block); err != nil {
		return nil, fmt.Errorf("failed to create block: %w", err)
	}
	return block, nil
}

const filterPrompt = `You are a relevance filter for a memory retrieval system. Keep only the candidates that are truly relevant to the query; vector search over-recalls.

QUERY:
%s

CANDIDATES:
%s

Return ONLY a JSON object listing the chunk IDs to keep:
{"keep": ["chunk_id_1", "chunk_id_2"]}
If nothing is relevant, return {"keep": []}.`

// FilterCandidates prunes the crawler's raw candidates with one LLM call.
// On failure the unfiltered shortlist is returned; recall beats precision.
func (g *Governor) FilterCandidates(ctx context.Context, query string, candidates []models.RetrievedChunk) []models.RetrievedChunk {
	if len(candidates) == 0 {
		return candidates
	}

	type candidateView struct {
		ChunkID string  `json:"chunk_id"`
		BlockID string  `json:"block_id"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	}
	views := make([]candidateView, len(candidates))
	for i, c := range candidates {
		views[i] = candidateView{
			ChunkID: c.ChunkID,
			BlockID: c.BlockID,
			Content: c.Content,
			Score:   c.SimilarityScore,
		}
	}
	viewsJSON, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return candidates
	}

	response, err := g.client.QueryJSON(ctx, fmt.Sprintf(filterPrompt, query, string(viewsJSON)))
	if err != nil {
		g.logger.Warn("candidate filter failed, keeping raw shortlist", "err", err)
		return candidates
	}

	var parsed struct {
		Keep []string `json:"keep"`
	}
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		obj := extractJSONObject(response)
		if obj == "" || json.Unmarshal([]byte(obj), &parsed) != nil {
			g.logger.Warn("candidate filter returned unparseable JSON")
			return candidates
		}
	}

	keep := make(map[string]bool, len(parsed.Keep))
	for _, id := range parsed.Keep {
		keep[id] = true
	}

	var filtered []models.RetrievedChunk
	for _, c := range candidates {
		if keep[c.ChunkID] {
			filtered = append(filtered, c)
		}
	}
	return filtered
}

const blockUpdatePrompt = `You maintain the rolling metadata of a conversation topic block.

TOPIC LABEL: %s

TURNS SO FAR:
%s

Return ONLY a JSON object:
{"summary": "2-4 sentence rolling summary of the conversation so far",
 "topic_label": "a MORE SPECIFIC label than the current one, or the current label unchanged",
 "open_loops": ["unresolved questions or tasks"],
 "decisions": ["decisions that were made"]}
Never return a more generic label than the current one.`

// UpdateBlockAfterTurn refreshes the block's accumulating fields from its
// updated turn list: keyword union, rolling summary, open loops, decisions.
// The prompt requests a more specific topic label; any non-empty label the
// model returns replaces the current one, and no specificity check is made.
func (g *Governor) UpdateBlockAfterTurn(ctx context.Context, block *models.BridgeBlock, decision models.RoutingDecision) error {
	block.UnionKeywords(decision.Keywords)

	var turnsText string
	for _, turn := range block.Turns {
		turnsText += fmt.Sprintf("Turn %d:\nUser: %s\nAI: %s\n\n", turn.Ordinal, turn.UserMessage, turn.AIResponse)
	}

	response, err := g.client.QueryJSON(ctx, fmt.Sprintf(blockUpdatePrompt, block.TopicLabel, turnsText))
	if err != nil {
		g.logger.Warn("block summary update failed, keeping previous summary", "err", err)
		return g.store.SaveBlock(block)
	}

	var parsed struct {
		Summary    string   `json:"summary"`
		TopicLabel string   `json:"topic_label"`
		OpenLoops  []string `json:"open_loops"`
		Decisions  []string `json:"decisions"`
	}
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		obj := extractJSONObject(response)
		if obj == "" || json.Unmarshal([]byte(obj), &parsed) != nil {
			g.logger.Warn("block summary response unparseable, keeping previous summary")
			return g.store.SaveBlock(block)
		}
	}

	if parsed.Summary != "" {
		block.Summary = parsed.Summary
	}
	if parsed.TopicLabel != "" {
		block.TopicLabel = parsed.TopicLabel
	}
	if len(parsed.OpenLoops) > 0 {
		block.OpenLoops = parsed.OpenLoops
	}
	if len(parsed.Decisions) > 0 {
		block.Decisions = parsed.Decisions
	}
	block.UpdatedAt = time.Now().UTC()

	return g.store.SaveBlock(block)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
