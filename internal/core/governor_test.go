// ABOUTME: Tests for Governor routing scenarios, fallbacks, and state transitions
// ABOUTME: Uses in-memory SQLite storage and a scripted fake LLM
package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/harper/hmlr/internal/logging"
	"github.com/harper/hmlr/internal/models"
	"github.com/harper/hmlr/internal/storage/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Storage {
	t.Helper()
	store, err := sqlite.NewStorageInMemory()
	if err != nil {
		t.Fatalf("failed to open in-memory storage: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seedBlock(t *testing.T, store *sqlite.Storage, id, label string, status models.BridgeBlockStatus) {
	t.Helper()
	block := &models.BridgeBlock{
		BlockID:    id,
		TopicLabel: label,
		Status:     status,
	}
	if err := store.SaveBlock(block); err != nil {
		t.Fatalf("failed to seed block: %v", err)
	}
}

func TestRouteEmptyLedgerIsNewTopic(t *testing.T) {
	store := newTestStore(t)
	gov := NewGovernor(newFakeLLM(), store, logging.Nop())

	decision, err := gov.Route(context.Background(), "Hello there")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if decision.Scenario != models.NewTopicFirst {
		t.Errorf("expected new_topic_first, got %s", decision.Scenario)
	}
}

func TestRouteContinuation(t *testing.T) {
	store := newTestStore(t)
	seedBlock(t, store, "bb_1", "Hiking trips", models.StatusActive)

	llm := newFakeLLM(stubReply{
		marker: "topic router",
		reply:  `{"scenario": "topic_continuation", "matched_block_id": "bb_1", "topic_label": "Hiking trips", "keywords": ["hiking"]}`,
	})
	gov := NewGovernor(llm, store, logging.Nop())

	decision, err := gov.Route(context.Background(), "What should I pack for the next hike?")
	if err != nil {
		t.Fatalf("Route failed: %v", err)
	}
	if decision.Scenario != models.TopicContinuation {
		t.Errorf("expected continuation, got %s", decision.Scenario)
	}
	if decision.MatchedBlockID != "bb_1" {
		t.Errorf("expected match bb_1, got %s", decision.MatchedBlockID)
	}
}

func TestRouteFallbackOnLLMFailure(t *testing.T) {
	tests := []struct {
		name         string
		activeBlock  bool
		wantScenario models.RoutingScenario
	}{
		{"active block falls back to continuation", true, models.TopicContinuation},
		{"no active block falls back to new topic", false, models.NewTopicFirst},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t)
			if tt.activeBlock {
				seedBlock(t, store, "bb_active", "Some topic", models.StatusActive)
			} else {
				seedBlock(t, store, "bb_paused", "Some topic", models.StatusPaused)
			}

			llm := newFakeLLM()
			llm.err = fmt.Errorf("model timeout")
			gov := NewGovernor(llm, store, logging.Nop())

			decision, err := gov.Route(context.Background(), "anything")
			if err != nil {
				t.Fatalf("Route should fall back, not fail: %v", err)
			}
			if decision.Scenario != tt.wantScenario {
				t.Errorf("expected %s, got %s", tt.wantScenario, decision.Scenario)
			}
		})
	}
}

func TestRouteFallbackOnUnparseableJSON(t *testing.T) {
	store := newTestStore(t)
	seedBlock(t, store, "bb_active", "Some topic", models.StatusActive)

	llm := newFakeLLM(stubReply{marker: "topic router", reply: "sorry, I can't help with that"})
	gov := NewGovernor(llm, store, logging.Nop())

	decision, err := gov.Route(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Route should fall back, not fail: %v", err)
	}
	if decision.Scenario != models.TopicContinuation {
		t.Errorf("expected continuation fallback, got %s", decision.Scenario)
	}
}

func TestRouteRepairsActiveInvariant(t *testing.T) {
	store := newTestStore(t)
	seedBlock(t, store, "bb_old", "Old topic", models.StatusActive)
	seedBlock(t, store, "bb_new", "New topic", models.StatusActive)

	gov := NewGovernor(newFakeLLM(), store, logging.Nop())
	if _, err := gov.Route(context.Background(), "anything"); err != nil {
		t.Fatalf("Route failed: %v", err)
	}

	active, err := store.GetBlocksByStatus(models.StatusActive)
	if err != nil {
		t.Fatalf("GetBlocksByStatus failed: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected exactly 1 active block after repair, got %d", len(active))
	}
}

func TestCommitDecisionTopicShift(t *testing.T) {
	store := newTestStore(t)
	seedBlock(t, store, "bb_active", "Hiking", models.StatusActive)

	gov := NewGovernor(newFakeLLM(), store, logging.Nop())
	block, err := gov.CommitDecision(models.RoutingDecision{
		Scenario:      models.TopicShift,
		ActiveBlockID: "bb_active",
		TopicLabel:    "Python debugging",
		Keywords:      []string{"python", "debugging"},
	}, "help me debug this Python error")
	if err != nil {
		t.Fatalf("CommitDecision failed: %v", err)
	}

	if block.Status != models.StatusActive {
		t.Errorf("new block should be active, got %s", block.Status)
	}
	old, _ := store.GetBlock("bb_active")
	if old.Status != models.StatusPaused {
		t.Errorf("old block should be paused, got %s", old.Status)
	}

	active, _ := store.GetBlocksByStatus(models.StatusActive)
	if len(active) != 1 {
		t.Errorf("expected exactly 1 active block, got %d", len(active))
	}
}

func TestCommitDecisionResumption(t *testing.T) {
	store := newTestStore(t)
	seedBlock(t, store, "bb_active", "Photography", models.StatusActive)
	seedBlock(t, store, "bb_paused", "Hiking", models.StatusPaused)

	gov := NewGovernor(newFakeLLM(), store, logging.Nop())
	block, err := gov.CommitDecision(models.RoutingDecision{
		Scenario:       models.TopicResumption,
		MatchedBlockID: "bb_paused",
		ActiveBlockID:  "bb_active",
	}, "back to the hike plan")
	if err != nil {
		t.Fatalf("CommitDecision failed: %v", err)
	}

	if block.BlockID != "bb_paused" {
		t.Errorf("expected resumed block bb_paused, got %s", block.BlockID)
	}
	resumed, _ := store.GetBlock("bb_paused")
	if resumed.Status != models.StatusActive {
		t.Errorf("resumed block should be active, got %s", resumed.Status)
	}
	former, _ := store.GetBlock("bb_active")
	if former.Status != models.StatusPaused {
		t.Errorf("former active block should be paused, got %s", former.Status)
	}
}

func TestCommitDecisionResumptionOfGardeningBlock(t *testing.T) {
	store := newTestStore(t)
	seedBlock(t, store, "bb_gardening", "Old topic", models.StatusPaused)
	if !store.TryBeginGardening("bb_gardening") {
		t.Fatal("failed to take gardening lock")
	}
	defer store.EndGardening("bb_gardening")

	gov := NewGovernor(newFakeLLM(), store, logging.Nop())
	block, err := gov.CommitDecision(models.RoutingDecision{
		Scenario:       models.TopicResumption,
		MatchedBlockID: "bb_gardening",
		TopicLabel:     "Old topic revisited",
	}, "about that old thing")
	if err != nil {
		t.Fatalf("CommitDecision failed: %v", err)
	}

	// The locked block must not be resumed; a fresh block takes over.
	if block.BlockID == "bb_gardening" {
		t.Error("gardening block must not be resumed")
	}
	if block.Status != models.StatusActive {
		t.Errorf("replacement block should be active, got %s", block.Status)
	}
}

func TestFilterCandidatesKeepsSelected(t *testing.T) {
	store := newTestStore(t)
	llm := newFakeLLM(stubReply{
		marker: "relevance filter",
		reply:  `{"keep": ["chunk_a"]}`,
	})
	gov := NewGovernor(llm, store, logging.Nop())

	candidates := []models.RetrievedChunk{
		{ChunkID: "chunk_a", Content: "relevant"},
		{ChunkID: "chunk_b", Content: "noise"},
	}
	filtered := gov.FilterCandidates(context.Background(), "query", candidates)

	if len(filtered) != 1 || filtered[0].ChunkID != "chunk_a" {
		t.Errorf("expected only chunk_a to survive, got %+v", filtered)
	}
}

func TestFilterCandidatesFailureKeepsShortlist(t *testing.T) {
	store := newTestStore(t)
	llm := newFakeLLM()
	llm.err = fmt.Errorf("model down")
	gov := NewGovernor(llm, store, logging.Nop())

	candidates := []models.RetrievedChunk{{ChunkID: "chunk_a"}, {ChunkID: "chunk_b"}}
	filtered := gov.FilterCandidates(context.Background(), "query", candidates)

	if len(filtered) != 2 {
		t.Errorf("filter failure should keep the raw shortlist, got %d", len(filtered))
	}
}

func TestUpdateBlockAfterTurnAccumulates(t *testing.T) {
	store := newTestStore(t)
	seedBlock(t, store, "bb_1", "Hiking", models.StatusActive)

	llm := newFakeLLM(stubReply{
		marker: "rolling metadata",
		reply:  `{"summary": "Planning a hike.", "topic_label": "Cascade hike planning", "open_loops": ["pick a date"], "decisions": []}`,
	})
	gov := NewGovernor(llm, store, logging.Nop())

	block, _ := store.GetBlock("bb_1")
	block.Keywords = []string{"hiking"}
	err := gov.UpdateBlockAfterTurn(context.Background(), block, models.RoutingDecision{
		Keywords: []string{"Hiking", "cascades"},
	})
	if err != nil {
		t.Fatalf("UpdateBlockAfterTurn failed: %v", err)
	}

	updated, _ := store.GetBlock("bb_1")
	if updated.Summary != "Planning a hike." {
		t.Errorf("summary not updated: %q", updated.Summary)
	}
	if updated.TopicLabel != "Cascade hike planning" {
		t.Errorf("label should become more specific: %q", updated.TopicLabel)
	}
	// Case-insensitive union: "Hiking" dedupes, "cascades" joins.
	if len(updated.Keywords) != 2 {
		t.Errorf("expected 2 keywords after union, got %v", updated.Keywords)
	}
	if len(updated.OpenLoops) != 1 {
		t.Errorf("expected 1 open loop, got %v", updated.OpenLoops)
	}
}
