// ABOUTME: Tests for Multi-Vector Voting and dossier append/create routing
// ABOUTME: Verifies deterministic candidate ranking and provenance completeness
package core

import (
	"context"
	"testing"
	"time"

	"github.com/harper/hmlr/internal/logging"
	"github.com/harper/hmlr/internal/models"
	"github.com/harper/hmlr/internal/storage/sqlite"
)

// seedDossier creates a dossier with embedded facts using the given vectors.
func seedDossier(t *testing.T, store *sqlite.Storage, id, title string, facts map[string][]float64) {
	t.Helper()
	if err := store.CreateDossier(&models.Dossier{
		DossierID: id,
		Title:     title,
		Summary:   title + " summary",
		Status:    models.DossierActive,
	}); err != nil {
		t.Fatalf("failed to create dossier: %v", err)
	}
	i := 0
	for text, vector := range facts {
		prefix := text
		if len(prefix) > 3 {
			prefix = prefix[:3]
		}
		factID := id + "_fact_" + prefix + string(rune('a'+i))
		i++
		if err := store.AddDossierFact(&models.DossierFact{
			FactID:    factID,
			DossierID: id,
			FactText:  text,
		}); err != nil {
			t.Fatalf("failed to add fact: %v", err)
		}
		if err := store.SaveDossierFactEmbedding(factID, id, vector); err != nil {
			t.Fatalf("failed to embed fact: %v", err)
		}
	}
}

func TestProcessFactPacketCreatesWhenNoCandidates(t *testing.T) {
	store := newTestStore(t)
	llm := newFakeLLM(stubReply{marker: "new fact dossier", reply: `{"summary": "A fresh dossier."}`})
	embedder := newFakeEmbedder()
	dg := NewDossierGovernor(store, llm, embedder, 10, 0.4, logging.Nop())

	dossierID, err := dg.ProcessFactPacket(context.Background(), models.FactPacket{
		ClusterLabel:  "Vegetarian Diet",
		Facts:         []string{"User is strictly vegetarian", "User avoids meat"},
		SourceBlockID: "bb_1",
		Timestamp:     time.Now(),
	})
	if err != nil {
		t.Fatalf("ProcessFactPacket failed: %v", err)
	}

	dossier, err := store.GetDossier(dossierID)
	if err != nil || dossier == nil {
		t.Fatalf("created dossier not found: %v", err)
	}
	if dossier.Title != "Vegetarian Diet" {
		t.Errorf("title should come from cluster label, got %q", dossier.Title)
	}
	if dossier.Summary != "A fresh dossier." {
		t.Errorf("unexpected summary %q", dossier.Summary)
	}

	facts, _ := store.GetDossierFacts(dossierID)
	if len(facts) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(facts))
	}

	// Provenance: first entry is "created", every fact has a fact_added row.
	prov, _ := store.GetDossierProvenance(dossierID)
	if len(prov) == 0 || prov[0].Operation != models.ProvenanceCreated {
		t.Fatalf("provenance[0] must be created, got %+v", prov)
	}
	var added int
	for _, p := range prov {
		if p.Operation == models.ProvenanceFactAdded {
			added++
		}
	}
	if added != 2 {
		t.Errorf("expected 2 fact_added rows, got %d", added)
	}

	// Every dossier fact has exactly one embedding row, so the facts can vote
	// in future packets.
	hits, _ := store.SearchDossierFacts([]float64{1, 0, 0, 0}, 10, 0.0)
	if len(hits) != 2 {
		t.Errorf("expected 2 embedded facts, got %d hits", len(hits))
	}
}

func TestProcessFactPacketAppendsToWinner(t *testing.T) {
	store := newTestStore(t)

	// dos_diet holds two specific facts near the incoming packet's vectors.
	seedDossier(t, store, "dos_diet", "Dietary Preferences", map[string][]float64{
		"User is vegetarian": {1, 0, 0, 0},
		"User cooks tofu":    {0.9, 0.1, 0, 0},
	})
	// dos_other is orthogonal and should lose the vote.
	seedDossier(t, store, "dos_other", "Work Projects", map[string][]float64{
		"User ships Go services": {0, 0, 1, 0},
	})

	llm := newFakeLLM(
		stubReply{marker: "fact routing system", reply: `{"action": "append", "target_dossier_id": "dos_diet"}`},
		stubReply{marker: "Update this dossier summary", reply: `{"summary": "User is vegetarian and now avoids eggs."}`},
	)
	embedder := newFakeEmbedder()
	embedder.set("User avoids eggs", []float64{0.95, 0.05, 0, 0})
	embedder.set("User avoids dairy", []float64{0.92, 0.08, 0, 0})

	dg := NewDossierGovernor(store, llm, embedder, 10, 0.4, logging.Nop())

	dossierID, err := dg.ProcessFactPacket(context.Background(), models.FactPacket{
		ClusterLabel:  "Diet Update",
		Facts:         []string{"User avoids eggs", "User avoids dairy"},
		SourceBlockID: "bb_2",
		Timestamp:     time.Now(),
	})
	if err != nil {
		t.Fatalf("ProcessFactPacket failed: %v", err)
	}
	if dossierID != "dos_diet" {
		t.Fatalf("expected append to dos_diet, got %s", dossierID)
	}

	facts, _ := store.GetDossierFacts("dos_diet")
	if len(facts) != 4 {
		t.Errorf("expected 4 facts after append, got %d", len(facts))
	}

	dossier, _ := store.GetDossier("dos_diet")
	if dossier.Summary != "User is vegetarian and now avoids eggs." {
		t.Errorf("summary should be rewritten, got %q", dossier.Summary)
	}

	prov, _ := store.GetDossierProvenance("dos_diet")
	var added, summaries int
	for _, p := range prov {
		switch p.Operation {
		case models.ProvenanceFactAdded:
			added++
		case models.ProvenanceSummaryUpdated:
			summaries++
		}
	}
	if added != 2 || summaries != 1 {
		t.Errorf("expected 2 fact_added + 1 summary_updated, got %d/%d", added, summaries)
	}
}

func TestVotingRankingIsDeterministic(t *testing.T) {
	store := newTestStore(t)

	seedDossier(t, store, "dos_a", "Alpha", map[string][]float64{
		"alpha fact one": {1, 0, 0, 0},
		"alpha fact two": {0.99, 0.01, 0, 0},
	})
	seedDossier(t, store, "dos_b", "Beta", map[string][]float64{
		"beta fact": {0.98, 0.02, 0, 0},
	})

	embedder := newFakeEmbedder()
	embedder.set("packet fact one", []float64{1, 0, 0, 0})
	embedder.set("packet fact two", []float64{0.99, 0.01, 0, 0})

	dg := NewDossierGovernor(store, newFakeLLM(), embedder, 10, 0.4, logging.Nop())

	var lastTop string
	for i := 0; i < 5; i++ {
		candidates, err := dg.findCandidateDossiers(context.Background(),
			[]string{"packet fact one", "packet fact two"})
		if err != nil {
			t.Fatalf("findCandidateDossiers failed: %v", err)
		}
		if len(candidates) == 0 {
			t.Fatal("expected candidates")
		}
		// dos_a has two embedded facts, so it collects more hits than dos_b.
		if candidates[0].DossierID != "dos_a" {
			t.Fatalf("expected dos_a to win the vote, got %s", candidates[0].DossierID)
		}
		if lastTop != "" && candidates[0].DossierID != lastTop {
			t.Fatalf("ranking not deterministic: %s vs %s", candidates[0].DossierID, lastTop)
		}
		lastTop = candidates[0].DossierID
	}
}

func TestRoutingFailureDefaultsToCreate(t *testing.T) {
	store := newTestStore(t)
	seedDossier(t, store, "dos_a", "Alpha", map[string][]float64{
		"alpha fact": {1, 0, 0, 0},
	})

	llm := newFakeLLM(stubReply{marker: "fact routing system", reply: "no json here"})
	embedder := newFakeEmbedder() // base vector matches dos_a
	dg := NewDossierGovernor(store, llm, embedder, 10, 0.4, logging.Nop())

	dossierID, err := dg.ProcessFactPacket(context.Background(), models.FactPacket{
		ClusterLabel:  "New Theme",
		Facts:         []string{"some narrative fact"},
		SourceBlockID: "bb_3",
	})
	if err != nil {
		t.Fatalf("ProcessFactPacket failed: %v", err)
	}
	if dossierID == "dos_a" {
		t.Error("unparseable routing must default to create, not append")
	}
}

func TestRoutingToUnknownDossierDefaultsToCreate(t *testing.T) {
	store := newTestStore(t)
	seedDossier(t, store, "dos_a", "Alpha", map[string][]float64{
		"alpha fact": {1, 0, 0, 0},
	})

	llm := newFakeLLM(stubReply{
		marker: "fact routing system",
		reply:  `{"action": "append", "target_dossier_id": "dos_hallucinated"}`,
	})
	dg := NewDossierGovernor(store, llm, newFakeEmbedder(), 10, 0.4, logging.Nop())

	dossierID, err := dg.ProcessFactPacket(context.Background(), models.FactPacket{
		ClusterLabel: "Theme",
		Facts:        []string{"a fact"},
	})
	if err != nil {
		t.Fatalf("ProcessFactPacket failed: %v", err)
	}
	if dossierID == "dos_hallucinated" {
		t.Error("append target outside the candidate list must not be honored")
	}
	if dossier, _ := store.GetDossier(dossierID); dossier == nil {
		t.Error("fallback create should have produced a dossier")
	}
}
