// ABOUTME: FactScrubber extracts key-value facts from sentence chunks using LLM
// ABOUTME: Facts land with a NULL block reference and are linked after routing
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harper/hmlr/internal/models"
)

// FactSink is the storage surface the scrubber writes extracted facts to.
type FactSink interface {
	InsertFact(fact *models.Fact) error
}

// FactScrubber extracts and saves facts from conversation turns
type FactScrubber struct {
	client LLMClient
	logger *log.Logger
}

// NewFactScrubber creates a new FactScrubber with the given LLM client
func NewFactScrubber(client LLMClient, logger *log.Logger) *FactScrubber {
	return &FactScrubber{
		client: client,
		logger: logger,
	}
}

const factExtractionPrompt = `You are a fact extraction assistant. Given sentences from a conversation, extract ALL durable factual key-value pairs.

Extract facts like:
- name, company, project, role, location
- api_key, weather_api_key, stripe_api_key: API keys and credentials (include the service name in the key)
- email, phone: contact information
- dietary_preference: food preferences
- definitions and identifiers explicitly stated

For each fact provide:
- key: descriptive fact name (lowercase, underscores)
- value: the actual value
- confidence: 0.0 to 1.0

Return ONLY a JSON object: {"facts": [{"key": "...", "value": "...", "confidence": 1.0}]}
Extract EVERY fact explicitly stated. Do not infer or assume. If there are no facts, return {"facts": []}.

Sentences:
%s`

// ExtractAndSave runs one extraction over the turn's sentence chunks and
// inserts the resulting facts with source_block_id unset. Transient LLM or
// parse failures degrade to zero facts.
func (fs *FactScrubber) ExtractAndSave(ctx context.Context, chunks []models.Chunk, sink FactSink) (int, error) {
	var lines []string
	var firstChunkID string
	for _, c := range chunks {
		if c.ChunkType != models.ChunkTypeSentence {
			continue
		}
		if firstChunkID == "" {
			firstChunkID = c.ChunkID
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", c.ChunkID, c.Content))
	}
	if len(lines) == 0 {
		return 0, nil
	}

	response, err := fs.client.QueryJSON(ctx, fmt.Sprintf(factExtractionPrompt, strings.Join(lines, "\n")))
	if err != nil {
		fs.logger.Warn("fact extraction failed, emitting zero facts", "err", err)
		return 0, nil
	}

	var parsed struct {
		Facts []struct {
			Key        string  `json:"key"`
			Value      string  `json:"value"`
			Confidence float64 `json:"confidence"`
			ChunkID    string  `json:"chunk_id"`
		} `json:"facts"`
	}
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		if obj := extractJSONObject(response); obj == "" || json.Unmarshal([]byte(obj), &parsed) != nil {
			fs.logger.Warn("fact extraction returned unparseable JSON", "err", err)
			return 0, nil
		}
	}

	saved := 0
	for _, f := range parsed.Facts {
		if f.Key == "" || f.Value == "" {
			continue
		}
		chunkID := f.ChunkID
		if chunkID == "" {
			chunkID = firstChunkID
		}
		fact := &models.Fact{
			FactID:        models.NewFactID(),
			SourceChunkID: chunkID,
			Key:           f.Key,
			Value:         f.Value,
			Confidence:    f.Confidence,
			CreatedAt:     time.Now().UTC(),
		}
		if err := sink.InsertFact(fact); err != nil {
			return saved, fmt.Errorf("failed to save fact %s: %w", fact.Key, err)
		}
		saved++
	}

	return saved, nil
}
