// ABOUTME: Crawler performs vector-based semantic search over long-term memory
// ABOUTME: Searches gardened chunks and dossier facts in parallel with a similarity floor
package core

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/harper/hmlr/internal/models"
)

// CrawlerStore is the storage surface the crawler searches.
type CrawlerStore interface {
	SearchGardenedMemory(queryVector []float64, maxResults int, threshold float64) ([]models.RetrievedChunk, error)
	SearchDossierFacts(queryVector []float64, maxResults int, threshold float64) ([]models.DossierFactHit, error)
}

// Crawler retrieves candidate memories using vector similarity search.
// The short-term ledger is never crawled; active blocks load directly in the
// Hydrator path.
type Crawler struct {
	embedder  Embedder
	store     CrawlerStore
	threshold float64
	topK      int
	dossierK  int
}

// CrawlResult bundles the two ranked candidate lists for one query.
type CrawlResult struct {
	Chunks      []models.RetrievedChunk
	DossierHits []models.DossierFactHit
}

// NewCrawler creates a new Crawler
func NewCrawler(embedder Embedder, store CrawlerStore, threshold float64, topK, dossierK int) *Crawler {
	if threshold <= 0 {
		threshold = 0.4
	}
	if topK <= 0 {
		topK = 5
	}
	if dossierK <= 0 {
		dossierK = 3
	}
	return &Crawler{
		embedder:  embedder,
		store:     store,
		threshold: threshold,
		topK:      topK,
		dossierK:  dossierK,
	}
}

// RetrieveCandidates embeds the query once and searches gardened memory and
// dossier facts in parallel. An embedding failure yields an empty result so
// routing can proceed with no retrieval.
func (c *Crawler) RetrieveCandidates(ctx context.Context, query string) (*CrawlResult, error) {
	queryVector, err := c.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return &CrawlResult{}, fmt.Errorf("query embedding failed: %w", err)
	}

	result := &CrawlResult{}

	var g errgroup.Group
	g.Go(func() error {
		chunks, err := c.store.SearchGardenedMemory(queryVector, c.topK, c.threshold)
		if err != nil {
			return fmt.Errorf("gardened memory search failed: %w", err)
		}
		result.Chunks = chunks
		return nil
	})
	g.Go(func() error {
		hits, err := c.store.SearchDossierFacts(queryVector, c.dossierK*4, c.threshold)
		if err != nil {
			return fmt.Errorf("dossier fact search failed: %w", err)
		}
		result.DossierHits = hits
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}
