// ABOUTME: DossierRetriever is the read-side companion of the dossier system
// ABOUTME: Dedupes fact hits by dossier and loads full dossier rows with facts
package core

import (
	"fmt"

	"github.com/harper/hmlr/internal/models"
)

// DossierReadStore is the storage surface the retriever loads dossiers from.
type DossierReadStore interface {
	GetDossier(dossierID string) (*models.Dossier, error)
	GetDossierFacts(dossierID string) ([]models.DossierFact, error)
}

// DossierRetriever resolves raw fact hits into full dossiers for hydration.
type DossierRetriever struct {
	store DossierReadStore
	topK  int
}

// NewDossierRetriever creates a new DossierRetriever
func NewDossierRetriever(store DossierReadStore, topK int) *DossierRetriever {
	if topK <= 0 {
		topK = 3
	}
	return &DossierRetriever{store: store, topK: topK}
}

// Resolve dedupes hits by dossier (keeping each dossier's best score) and
// loads the top dossiers with their facts.
func (dr *DossierRetriever) Resolve(hits []models.DossierFactHit) ([]models.RetrievedDossier, error) {
	bestScore := make(map[string]float64)
	var order []string
	for _, hit := range hits {
		if _, seen := bestScore[hit.DossierID]; !seen {
			order = append(order, hit.DossierID)
			bestScore[hit.DossierID] = hit.SimilarityScore
		} else if hit.SimilarityScore > bestScore[hit.DossierID] {
			bestScore[hit.DossierID] = hit.SimilarityScore
		}
	}

	if len(order) > dr.topK {
		order = order[:dr.topK]
	}

	var dossiers []models.RetrievedDossier
	for _, dossierID := range order {
		dossier, err := dr.store.GetDossier(dossierID)
		if err != nil {
			return nil, fmt.Errorf("failed to load dossier %s: %w", dossierID, err)
		}
		if dossier == nil {
			continue
		}
		facts, err := dr.store.GetDossierFacts(dossierID)
		if err != nil {
			return nil, fmt.Errorf("failed to load dossier facts %s: %w", dossierID, err)
		}

		dossiers = append(dossiers, models.RetrievedDossier{
			Dossier:         *dossier,
			Facts:           facts,
			SimilarityScore: bestScore[dossierID],
		})
	}

	return dossiers, nil
}
