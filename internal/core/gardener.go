// ABOUTME: Gardener converts aged bridge blocks into block metadata and dossiers
// ABOUTME: Deleting the ledger block comes last so a failed run leaves it intact for retry
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harper/hmlr/internal/models"
)

// GardenerStore is the storage surface the gardener consumes blocks through.
type GardenerStore interface {
	GetBlock(blockID string) (*models.BridgeBlock, error)
	GetFactsForBlock(blockID string) ([]models.Fact, error)
	SaveBlockMetadata(meta *models.BlockMetadata) error
	PromoteBlockChunks(blockID string) (int64, error)
	DeleteBlock(blockID string) error
	TryBeginGardening(blockID string) bool
	EndGardening(blockID string)
}

// Gardener is the offline pipeline that transforms a bridge block into
// long-term artifacts: sticky metadata tags and dossier facts.
type Gardener struct {
	store           GardenerStore
	client          LLMClient
	dossierGovernor *DossierGovernor
	logger          *log.Logger
}

// NewGardener creates a new Gardener
func NewGardener(store GardenerStore, client LLMClient, dossierGovernor *DossierGovernor, logger *log.Logger) *Gardener {
	return &Gardener{
		store:           store,
		client:          client,
		dossierGovernor: dossierGovernor,
		logger:          logger,
	}
}

// GardenReport summarizes one gardening run.
type GardenReport struct {
	BlockID         string   `json:"block_id"`
	TopicLabel      string   `json:"topic_label"`
	FactsProcessed  int      `json:"facts_processed"`
	GlobalTags      int      `json:"global_tags"`
	SectionRules    int      `json:"section_rules"`
	ChunksPromoted  int64    `json:"chunks_promoted"`
	DossiersTouched []string `json:"dossiers_touched"`
}

const classificationPrompt = `Analyze these facts extracted from a conversation and classify them using THREE heuristics:

Facts:
%s

HEURISTICS:

1. ENVIRONMENT TEST: Global settings, versions, languages, OS?
   Examples: "Using Python 3.9" → {"type": "env", "value": "python-3.9"}
   → goes in global_tags (applies to the entire conversation)

2. CONSTRAINT TEST: Rules that FORBID or MANDATE something?
   Examples: "Never use eval()" → {"type": "constraint", "value": "no-eval"}
             "Titan is deprecated" → {"type": "deprecation", "value": "Titan deprecated"}
   → global_tags when conversation-wide, section_rules when scoped to turns

3. DEFINITION TEST: Temporary aliases, renamings, status markers?
   Examples: "Call the server Box A" → {"start_turn": 5, "end_turn": 8, "rule": "server=Box A"}
   → goes in section_rules with the turn-ordinal range where it applied

Tag types: global_rule, deprecation, constraint, decision, fact, alias, status, env.

IMPORTANT: Facts matching none of these are narrative facts (preferences,
history, context) and go in dossier_facts verbatim.

Return ONLY a JSON object:
{"global_tags": [{"type": "env", "value": "python-3.9"}],
 "section_rules": [{"start_turn": 10, "end_turn": 15, "rule": "no-eval"}],
 "dossier_facts": ["User prefers dark mode"]}`

const groupingPrompt = `Given these facts extracted from a conversation, group related facts by semantic theme.

Facts:
%s

For each group provide a concise label (2-5 words) and the facts that belong
to it.

Return ONLY a JSON object:
{"groups": [{"label": "Theme Name", "facts": ["fact text 1", "fact text 2"]}]}`

// classification is the parsed result of the tagging pass.
type classification struct {
	GlobalTags   []models.GlobalTag   `json:"global_tags"`
	SectionRules []models.SectionRule `json:"section_rules"`
	DossierFacts []string             `json:"dossier_facts"`
}

// Process gardens one bridge block. Any failure before the final delete
// leaves the block intact; the delete is the atomic commit boundary.
func (gd *Gardener) Process(ctx context.Context, blockID string) (*GardenReport, error) {
	if !gd.store.TryBeginGardening(blockID) {
		return nil, fmt.Errorf("block %s is already being gardened", blockID)
	}
	defer gd.store.EndGardening(blockID)

	block, err := gd.store.GetBlock(blockID)
	if err != nil {
		return nil, fmt.Errorf("failed to load block: %w", err)
	}
	if block == nil {
		return nil, fmt.Errorf("block %s not found", blockID)
	}

	facts, err := gd.store.GetFactsForBlock(blockID)
	if err != nil {
		return nil, fmt.Errorf("failed to load facts: %w", err)
	}

	report := &GardenReport{
		BlockID:        blockID,
		TopicLabel:     block.TopicLabel,
		FactsProcessed: len(facts),
	}

	gd.logger.Info("gardening block", "block", blockID, "topic", block.TopicLabel, "facts", len(facts))

	// Tagging pass: three heuristics over the block's facts.
	class, err := gd.classifyFacts(ctx, facts)
	if err != nil {
		return nil, fmt.Errorf("fact classification failed: %w", err)
	}

	meta := &models.BlockMetadata{
		BlockID:      blockID,
		GlobalTags:   class.GlobalTags,
		SectionRules: class.SectionRules,
	}
	// Every gardened block carries at least one tag so retrieval headers
	// always have content.
	if len(meta.GlobalTags) == 0 {
		meta.GlobalTags = []models.GlobalTag{{Type: models.TagFact, Value: "topic: " + block.TopicLabel}}
	}
	if err := gd.store.SaveBlockMetadata(meta); err != nil {
		return nil, fmt.Errorf("failed to save block metadata: %w", err)
	}
	report.GlobalTags = len(meta.GlobalTags)
	report.SectionRules = len(meta.SectionRules)

	promoted, err := gd.store.PromoteBlockChunks(blockID)
	if err != nil {
		return nil, fmt.Errorf("failed to promote chunks: %w", err)
	}
	report.ChunksPromoted = promoted

	// Dossier pass: group narrative facts and route each packet.
	if len(class.DossierFacts) > 0 && gd.dossierGovernor != nil {
		groups, err := gd.groupFacts(ctx, class.DossierFacts)
		if err != nil {
			return nil, fmt.Errorf("semantic grouping failed: %w", err)
		}

		for _, group := range groups {
			packet := models.FactPacket{
				ClusterLabel:  group.Label,
				Facts:         group.Facts,
				SourceBlockID: blockID,
				Timestamp:     time.Now().UTC(),
			}
			dossierID, err := gd.dossierGovernor.ProcessFactPacket(ctx, packet)
			if err != nil {
				return nil, fmt.Errorf("dossier routing failed for %q: %w", group.Label, err)
			}
			report.DossiersTouched = append(report.DossiersTouched, dossierID)
		}
	}

	// Commit boundary: only after every long-term artifact is written does
	// the short-term block go away.
	if err := gd.store.DeleteBlock(blockID); err != nil {
		return nil, fmt.Errorf("failed to delete gardened block: %w", err)
	}

	gd.logger.Info("gardened block",
		"block", blockID,
		"tags", report.GlobalTags,
		"rules", report.SectionRules,
		"chunks", report.ChunksPromoted,
		"dossiers", len(report.DossiersTouched))

	return report, nil
}

// classifyFacts runs the three-heuristic tagging pass. A parse failure
// degrades to routing every fact into dossiers.
func (gd *Gardener) classifyFacts(ctx context.Context, facts []models.Fact) (*classification, error) {
	if len(facts) == 0 {
		return &classification{}, nil
	}

	type factView struct {
		Text    string `json:"text"`
		ChunkID string `json:"chunk_id,omitempty"`
	}
	views := make([]factView, len(facts))
	for i, f := range facts {
		views[i] = factView{
			Text:    fmt.Sprintf("%s: %s", f.Key, f.Value),
			ChunkID: f.SourceChunkID,
		}
	}
	viewsJSON, err := json.MarshalIndent(views, "", "  ")
	if err != nil {
		return nil, err
	}

	response, err := gd.client.QueryJSON(ctx, fmt.Sprintf(classificationPrompt, string(viewsJSON)))
	if err != nil {
		return nil, err
	}

	var class classification
	if err := json.Unmarshal([]byte(response), &class); err != nil {
		obj := extractJSONObject(response)
		if obj == "" || json.Unmarshal([]byte(obj), &class) != nil {
			gd.logger.Warn("classification unparseable, routing all facts to dossiers")
			fallback := &classification{}
			for _, f := range facts {
				fallback.DossierFacts = append(fallback.DossierFacts, fmt.Sprintf("%s: %s", f.Key, f.Value))
			}
			return fallback, nil
		}
	}

	return &class, nil
}

type factGroup struct {
	Label string   `json:"label"`
	Facts []string `json:"facts"`
}

// groupFacts clusters narrative facts by theme. A parse failure degrades to a
// single catch-all group.
func (gd *Gardener) groupFacts(ctx context.Context, facts []string) ([]factGroup, error) {
	factsJSON, err := json.MarshalIndent(facts, "", "  ")
	if err != nil {
		return nil, err
	}

	response, err := gd.client.QueryJSON(ctx, fmt.Sprintf(groupingPrompt, string(factsJSON)))
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Groups []factGroup `json:"groups"`
	}
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		obj := extractJSONObject(response)
		if obj == "" || json.Unmarshal([]byte(obj), &parsed) != nil {
			gd.logger.Warn("grouping unparseable, using single cluster")
			return []factGroup{{Label: "General Facts", Facts: facts}}, nil
		}
	}
	if len(parsed.Groups) == 0 {
		return []factGroup{{Label: "General Facts", Facts: facts}}, nil
	}

	var groups []factGroup
	for _, g := range parsed.Groups {
		if len(g.Facts) == 0 {
			continue
		}
		if g.Label == "" {
			g.Label = "General Facts"
		}
		groups = append(groups, g)
	}
	return groups, nil
}
