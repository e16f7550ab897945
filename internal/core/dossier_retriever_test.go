// ABOUTME: Tests for read-side dossier resolution
// ABOUTME: Hits dedupe by dossier and load full rows with facts
package core

import (
	"testing"

	"github.com/harper/hmlr/internal/models"
)

func TestResolveDedupesByDossier(t *testing.T) {
	store := newTestStore(t)
	seedDossier(t, store, "dos_1", "Theme One", map[string][]float64{
		"fact a": {1, 0, 0, 0},
		"fact b": {0.9, 0.1, 0, 0},
	})

	retriever := NewDossierRetriever(store, 3)
	hits := []models.DossierFactHit{
		{FactID: "f1", DossierID: "dos_1", SimilarityScore: 0.8},
		{FactID: "f2", DossierID: "dos_1", SimilarityScore: 0.9},
	}

	dossiers, err := retriever.Resolve(hits)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(dossiers) != 1 {
		t.Fatalf("expected 1 deduped dossier, got %d", len(dossiers))
	}
	if dossiers[0].SimilarityScore != 0.9 {
		t.Errorf("should keep the best score, got %f", dossiers[0].SimilarityScore)
	}
	if len(dossiers[0].Facts) != 2 {
		t.Errorf("expected the dossier's 2 facts, got %d", len(dossiers[0].Facts))
	}
}

func TestResolveRespectsTopK(t *testing.T) {
	store := newTestStore(t)
	seedDossier(t, store, "dos_1", "One", map[string][]float64{"f1": {1, 0, 0, 0}})
	seedDossier(t, store, "dos_2", "Two", map[string][]float64{"f2": {0, 1, 0, 0}})
	seedDossier(t, store, "dos_3", "Three", map[string][]float64{"f3": {0, 0, 1, 0}})

	retriever := NewDossierRetriever(store, 2)
	hits := []models.DossierFactHit{
		{DossierID: "dos_1", SimilarityScore: 0.9},
		{DossierID: "dos_2", SimilarityScore: 0.8},
		{DossierID: "dos_3", SimilarityScore: 0.7},
	}

	dossiers, err := retriever.Resolve(hits)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(dossiers) != 2 {
		t.Errorf("expected top 2 dossiers, got %d", len(dossiers))
	}
}

func TestResolveSkipsMissingDossiers(t *testing.T) {
	store := newTestStore(t)
	retriever := NewDossierRetriever(store, 3)

	dossiers, err := retriever.Resolve([]models.DossierFactHit{
		{DossierID: "dos_gone", SimilarityScore: 0.9},
	})
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if len(dossiers) != 0 {
		t.Errorf("missing dossiers should be skipped, got %d", len(dossiers))
	}
}
