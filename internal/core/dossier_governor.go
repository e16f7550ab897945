// ABOUTME: DossierGovernor routes fact packets to dossiers via Multi-Vector Voting
// ABOUTME: Every fact in a packet votes; specific facts outvote vague ones
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harper/hmlr/internal/models"
)

// DossierStore is the storage surface the write-side dossier router uses.
type DossierStore interface {
	CreateDossier(dossier *models.Dossier) error
	GetDossier(dossierID string) (*models.Dossier, error)
	GetDossierFacts(dossierID string) ([]models.DossierFact, error)
	AddDossierFact(fact *models.DossierFact) error
	SaveDossierFactEmbedding(factID, dossierID string, vector []float64) error
	UpdateDossierSummary(dossierID, summary string) error
	TouchDossier(dossierID string) error
	SearchDossierFacts(queryVector []float64, maxResults int, threshold float64) ([]models.DossierFactHit, error)
	AddDossierProvenance(entry *models.ProvenanceEntry) error
}

// DossierGovernor is the write-side router that appends fact packets to
// existing dossiers or creates new ones.
type DossierGovernor struct {
	store     DossierStore
	client    LLMClient
	embedder  Embedder
	logger    *log.Logger
	votingK   int
	threshold float64
}

// NewDossierGovernor creates a new DossierGovernor
func NewDossierGovernor(store DossierStore, client LLMClient, embedder Embedder, votingK int, threshold float64, logger *log.Logger) *DossierGovernor {
	if votingK <= 0 {
		votingK = 10
	}
	if threshold <= 0 {
		threshold = 0.4
	}
	return &DossierGovernor{
		store:     store,
		client:    client,
		embedder:  embedder,
		logger:    logger,
		votingK:   votingK,
		threshold: threshold,
	}
}

// maxCandidates is how many voted dossiers the routing LLM sees.
const maxCandidates = 5

// dossierCandidate is one voted candidate with its vote metadata.
type dossierCandidate struct {
	DossierID     string   `json:"dossier_id"`
	Title         string   `json:"title"`
	Summary       string   `json:"summary"`
	ExistingFacts []string `json:"existing_facts"`
	VoteHits      int      `json:"vote_hits"`
	VoteScore     float64  `json:"vote_score"`
}

// ProcessFactPacket routes one fact packet and returns the dossier ID the
// facts landed in.
func (dg *DossierGovernor) ProcessFactPacket(ctx context.Context, packet models.FactPacket) (string, error) {
	if len(packet.Facts) == 0 {
		return "", fmt.Errorf("empty fact packet %q", packet.ClusterLabel)
	}

	dg.logger.Info("routing fact packet", "cluster", packet.ClusterLabel, "facts", len(packet.Facts))

	candidates, err := dg.findCandidateDossiers(ctx, packet.Facts)
	if err != nil {
		return "", err
	}

	if len(candidates) > 0 {
		decision := dg.decideRouting(ctx, packet.Facts, candidates)
		if decision.Action == "append" && decision.TargetDossierID != "" {
			dg.logger.Info("appending to dossier", "dossier", decision.TargetDossierID)
			if err := dg.appendToDossier(ctx, decision.TargetDossierID, packet); err != nil {
				return "", err
			}
			return decision.TargetDossierID, nil
		}
	}

	return dg.createDossier(ctx, packet)
}

// findCandidateDossiers runs Multi-Vector Voting: every fact in the packet
// searches independently, dossiers are ranked by hit count with summed
// similarity as tiebreaker (then dossier ID, for determinism).
func (dg *DossierGovernor) findCandidateDossiers(ctx context.Context, facts []string) ([]dossierCandidate, error) {
	type tally struct {
		hits     int
		scoreSum float64
	}
	votes := make(map[string]*tally)

	for _, fact := range facts {
		vector, err := dg.embedder.GenerateEmbedding(ctx, fact)
		if err != nil {
			// One fact failing to embed just loses its vote.
			dg.logger.Warn("fact embedding failed during voting", "err", err)
			continue
		}

		hits, err := dg.store.SearchDossierFacts(vector, dg.votingK, dg.threshold)
		if err != nil {
			return nil, fmt.Errorf("dossier vote search failed: %w", err)
		}

		for _, hit := range hits {
			t, ok := votes[hit.DossierID]
			if !ok {
				t = &tally{}
				votes[hit.DossierID] = t
			}
			t.hits++
			t.scoreSum += hit.SimilarityScore
		}
	}

	if len(votes) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(votes))
	for id := range votes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := votes[ids[i]], votes[ids[j]]
		if a.hits != b.hits {
			return a.hits > b.hits
		}
		if a.scoreSum != b.scoreSum {
			return a.scoreSum > b.scoreSum
		}
		return ids[i] < ids[j]
	})

	if len(ids) > maxCandidates {
		ids = ids[:maxCandidates]
	}

	var candidates []dossierCandidate
	for _, id := range ids {
		dossier, err := dg.store.GetDossier(id)
		if err != nil || dossier == nil {
			continue
		}
		dossierFacts, err := dg.store.GetDossierFacts(id)
		if err != nil {
			return nil, err
		}
		texts := make([]string, 0, len(dossierFacts))
		for _, f := range dossierFacts {
			texts = append(texts, f.FactText)
		}

		candidates = append(candidates, dossierCandidate{
			DossierID:     id,
			Title:         dossier.Title,
			Summary:       dossier.Summary,
			ExistingFacts: texts,
			VoteHits:      votes[id].hits,
			VoteScore:     votes[id].scoreSum,
		})
	}

	return candidates, nil
}

const routingDecisionPrompt = `You are a fact routing system. Decide whether new facts should be appended to an existing dossier or create a new dossier.

NEW FACTS TO ROUTE:
%s

CANDIDATE DOSSIERS (ranked by Multi-Vector Voting):
%s

DECISION RULES:
1. If new facts semantically belong to an existing dossier (same topic, related concepts), APPEND
2. If new facts form a distinct topic that doesn't fit existing dossiers, CREATE
3. Consider vote_hits: higher hits mean stronger semantic relationship
4. Facts don't need to be identical - look for conceptual relationships

Return ONLY a JSON object:
- To append: {"action": "append", "target_dossier_id": "dos_xxx"}
- To create new: {"action": "create"}`

type routingResult struct {
	Action          string `json:"action"`
	TargetDossierID string `json:"target_dossier_id"`
}

// decideRouting asks the LLM to pick append or create. Failures default to
// create, which never loses facts.
func (dg *DossierGovernor) decideRouting(ctx context.Context, facts []string, candidates []dossierCandidate) routingResult {
	// Trim each candidate's fact list so the prompt stays bounded.
	views := make([]dossierCandidate, len(candidates))
	copy(views, candidates)
	for i := range views {
		if len(views[i].ExistingFacts) > 5 {
			views[i].ExistingFacts = views[i].ExistingFacts[:5]
		}
	}

	factsJSON, _ := json.MarshalIndent(facts, "", "  ")
	candidatesJSON, _ := json.MarshalIndent(views, "", "  ")

	response, err := dg.client.QueryJSON(ctx, fmt.Sprintf(routingDecisionPrompt, string(factsJSON), string(candidatesJSON)))
	if err != nil {
		dg.logger.Warn("dossier routing call failed, defaulting to create", "err", err)
		return routingResult{Action: "create"}
	}

	var decision routingResult
	if err := json.Unmarshal([]byte(response), &decision); err != nil {
		obj := extractJSONObject(response)
		if obj == "" || json.Unmarshal([]byte(obj), &decision) != nil {
			dg.logger.Warn("dossier routing response unparseable, defaulting to create")
			return routingResult{Action: "create"}
		}
	}

	if decision.Action == "append" && !candidateListed(candidates, decision.TargetDossierID) {
		dg.logger.Warn("routing chose a dossier outside the candidate list, defaulting to create",
			"dossier", decision.TargetDossierID)
		return routingResult{Action: "create"}
	}

	return decision
}

func candidateListed(candidates []dossierCandidate, dossierID string) bool {
	for _, c := range candidates {
		if c.DossierID == dossierID {
			return true
		}
	}
	return false
}

// appendToDossier inserts the packet's facts, embeds them, logs provenance,
// and rewrites the summary incrementally.
func (dg *DossierGovernor) appendToDossier(ctx context.Context, dossierID string, packet models.FactPacket) error {
	for _, factText := range packet.Facts {
		if err := dg.insertFact(ctx, dossierID, factText, packet); err != nil {
			return err
		}
	}

	if err := dg.updateSummary(ctx, dossierID, packet); err != nil {
		return err
	}

	return dg.store.TouchDossier(dossierID)
}

// createDossier mints a new dossier for the packet.
func (dg *DossierGovernor) createDossier(ctx context.Context, packet models.FactPacket) (string, error) {
	now := time.Now().UTC()
	dossier := &models.Dossier{
		DossierID:   models.NewDossierID(now),
		Title:       packet.ClusterLabel,
		Summary:     dg.generateSummary(ctx, packet),
		Status:      models.DossierActive,
		CreatedAt:   now,
		LastUpdated: now,
	}

	dg.logger.Info("creating dossier", "dossier", dossier.DossierID, "title", dossier.Title)

	if err := dg.store.CreateDossier(dossier); err != nil {
		return "", fmt.Errorf("failed to create dossier: %w", err)
	}

	details, _ := json.Marshal(map[string]any{"num_facts": len(packet.Facts), "title": packet.ClusterLabel})
	if err := dg.store.AddDossierProvenance(&models.ProvenanceEntry{
		ProvenanceID:  models.NewProvenanceID(),
		DossierID:     dossier.DossierID,
		Operation:     models.ProvenanceCreated,
		SourceBlockID: packet.SourceBlockID,
		Details:       string(details),
	}); err != nil {
		return "", err
	}

	for _, factText := range packet.Facts {
		if err := dg.insertFact(ctx, dossier.DossierID, factText, packet); err != nil {
			return "", err
		}
	}

	return dossier.DossierID, nil
}

// insertFact writes one fact row, its embedding, and its provenance entry.
func (dg *DossierGovernor) insertFact(ctx context.Context, dossierID, factText string, packet models.FactPacket) error {
	fact := &models.DossierFact{
		FactID:        models.NewFactID(),
		DossierID:     dossierID,
		FactText:      factText,
		SourceBlockID: packet.SourceBlockID,
		Confidence:    1.0,
		AddedAt:       time.Now().UTC(),
	}
	if err := dg.store.AddDossierFact(fact); err != nil {
		return fmt.Errorf("failed to add dossier fact: %w", err)
	}

	vector, err := dg.embedder.GenerateEmbedding(ctx, factText)
	if err != nil {
		vector, err = dg.embedder.GenerateEmbedding(ctx, factText)
		if err != nil {
			return fmt.Errorf("failed to embed dossier fact: %w", err)
		}
	}
	if err := dg.store.SaveDossierFactEmbedding(fact.FactID, dossierID, vector); err != nil {
		return fmt.Errorf("failed to save dossier fact embedding: %w", err)
	}

	details, _ := json.Marshal(map[string]any{"fact_id": fact.FactID, "fact_text": truncate(factText, 100)})
	return dg.store.AddDossierProvenance(&models.ProvenanceEntry{
		ProvenanceID:  models.NewProvenanceID(),
		DossierID:     dossierID,
		Operation:     models.ProvenanceFactAdded,
		SourceBlockID: packet.SourceBlockID,
		Details:       string(details),
	})
}

const summaryUpdatePrompt = `Update this dossier summary with new facts. Build causal chains where possible.

OLD SUMMARY:
%s

NEW FACTS BEING ADDED:
%s

INSTRUCTIONS:
1. Integrate new facts into the existing narrative
2. Build causal chains where facts relate
3. Do NOT create duplicates of existing information
4. Keep the summary concise but comprehensive (2-4 sentences)

Return ONLY a JSON object: {"summary": "..."}`

// updateSummary rewrites the dossier summary from (old summary, new facts).
// Failures keep the old summary.
func (dg *DossierGovernor) updateSummary(ctx context.Context, dossierID string, packet models.FactPacket) error {
	dossier, err := dg.store.GetDossier(dossierID)
	if err != nil {
		return err
	}
	if dossier == nil {
		return fmt.Errorf("dossier %s disappeared during append", dossierID)
	}

	factsJSON, _ := json.MarshalIndent(packet.Facts, "", "  ")
	response, err := dg.client.QueryJSON(ctx, fmt.Sprintf(summaryUpdatePrompt, dossier.Summary, string(factsJSON)))
	if err != nil {
		dg.logger.Warn("summary update failed, keeping old summary", "dossier", dossierID, "err", err)
		return nil
	}

	var parsed struct {
		Summary string `json:"summary"`
	}
	if err := json.Unmarshal([]byte(response), &parsed); err != nil || parsed.Summary == "" {
		obj := extractJSONObject(response)
		if obj == "" || json.Unmarshal([]byte(obj), &parsed) != nil || parsed.Summary == "" {
			dg.logger.Warn("summary response unparseable, keeping old summary", "dossier", dossierID)
			return nil
		}
	}

	if err := dg.store.UpdateDossierSummary(dossierID, parsed.Summary); err != nil {
		return err
	}

	details, _ := json.Marshal(map[string]any{"num_new_facts": len(packet.Facts)})
	return dg.store.AddDossierProvenance(&models.ProvenanceEntry{
		ProvenanceID:  models.NewProvenanceID(),
		DossierID:     dossierID,
		Operation:     models.ProvenanceSummaryUpdated,
		SourceBlockID: packet.SourceBlockID,
		Details:       string(details),
	})
}

const initialSummaryPrompt = `Generate a concise summary for a new fact dossier.

TITLE: %s

FACTS:
%s

Generate a 2-3 sentence summary that captures the essence of these facts,
identifies causal relationships, and sets context for future facts.

Return ONLY a JSON object: {"summary": "..."}`

// generateSummary produces the initial summary for a new dossier, falling
// back to the cluster label plus the first three facts on failure.
func (dg *DossierGovernor) generateSummary(ctx context.Context, packet models.FactPacket) string {
	factsJSON, _ := json.MarshalIndent(packet.Facts, "", "  ")

	response, err := dg.client.QueryJSON(ctx, fmt.Sprintf(initialSummaryPrompt, packet.ClusterLabel, string(factsJSON)))
	if err == nil {
		var parsed struct {
			Summary string `json:"summary"`
		}
		if json.Unmarshal([]byte(response), &parsed) == nil && parsed.Summary != "" {
			return parsed.Summary
		}
		if obj := extractJSONObject(response); obj != "" {
			if json.Unmarshal([]byte(obj), &parsed) == nil && parsed.Summary != "" {
				return parsed.Summary
			}
		}
	}

	fallback := packet.ClusterLabel + ": "
	limit := len(packet.Facts)
	if limit > 3 {
		limit = 3
	}
	for i := 0; i < limit; i++ {
		if i > 0 {
			fallback += "; "
		}
		fallback += packet.Facts[i]
	}
	return fallback
}
