// ABOUTME: ChunkEngine splits incoming messages into hierarchical chunks for embedding
// ABOUTME: Deterministic IDs: turn ID, then _p<NN> paragraphs, then _s<NN> sentences
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/harper/hmlr/internal/models"
)

// ChunkEngine handles hierarchical text chunking. The engine itself is pure;
// EmbedAndStore drives the embedder and storage for a chunked turn.
type ChunkEngine struct{}

// NewChunkEngine creates a new ChunkEngine instance
func NewChunkEngine() *ChunkEngine {
	return &ChunkEngine{}
}

// ChunkTurn splits a turn hierarchically into turn → paragraph → sentence
// chunks. User text paragraphs come first, AI text paragraphs after, so IDs
// stay stable when the AI response is chunked later in the same turn.
func (ce *ChunkEngine) ChunkTurn(turnID, userText, aiText string) ([]models.Chunk, error) {
	combined := strings.TrimSpace(userText)
	if aiText != "" {
		combined = combined + "\n\n" + strings.TrimSpace(aiText)
	}
	if strings.TrimSpace(combined) == "" {
		return nil, errors.New("cannot chunk empty text")
	}

	turnChunk := models.Chunk{
		ChunkID:    turnID,
		ChunkType:  models.ChunkTypeTurn,
		Content:    combined,
		TurnID:     turnID,
		TokenCount: EstimateTokens(combined),
	}
	chunks := []models.Chunk{turnChunk}

	paraOrdinal := 0
	for _, paraText := range splitParagraphs(combined) {
		paraText = strings.TrimSpace(paraText)
		if paraText == "" {
			continue
		}
		paraOrdinal++

		paraChunk := models.Chunk{
			ChunkID:       fmt.Sprintf("%s_p%02d", turnID, paraOrdinal),
			ChunkType:     models.ChunkTypeParagraph,
			Content:       paraText,
			ParentChunkID: turnChunk.ChunkID,
			TurnID:        turnID,
			TokenCount:    EstimateTokens(paraText),
		}
		chunks = append(chunks, paraChunk)

		sentOrdinal := 0
		for _, sentText := range splitSentences(paraText) {
			sentText = strings.TrimSpace(sentText)
			if sentText == "" {
				continue
			}
			sentOrdinal++

			chunks = append(chunks, models.Chunk{
				ChunkID:       fmt.Sprintf("%s_s%02d", paraChunk.ChunkID, sentOrdinal),
				ChunkType:     models.ChunkTypeSentence,
				Content:       sentText,
				ParentChunkID: paraChunk.ChunkID,
				TurnID:        turnID,
				TokenCount:    EstimateTokens(sentText),
			})
		}
	}

	return chunks, nil
}

// SentenceChunks filters a chunk list down to the sentence level
func (ce *ChunkEngine) SentenceChunks(chunks []models.Chunk) []models.Chunk {
	var sentences []models.Chunk
	for _, c := range chunks {
		if c.ChunkType == models.ChunkTypeSentence {
			sentences = append(sentences, c)
		}
	}
	return sentences
}

// ChunkStore is the storage surface the engine writes embedded chunks to.
type ChunkStore interface {
	SaveChunkEmbedding(chunk *models.Chunk, vector []float64) error
}

// EmbedAndStore computes an embedding for every chunk and persists it.
// Embedding failures are retried once, then surfaced.
func (ce *ChunkEngine) EmbedAndStore(ctx context.Context, chunks []models.Chunk, embedder Embedder, store ChunkStore) error {
	for i := range chunks {
		vector, err := embedder.GenerateEmbedding(ctx, chunks[i].Content)
		if err != nil {
			vector, err = embedder.GenerateEmbedding(ctx, chunks[i].Content)
			if err != nil {
				return fmt.Errorf("embedding chunk %s: %w", chunks[i].ChunkID, err)
			}
		}
		if err := store.SaveChunkEmbedding(&chunks[i], vector); err != nil {
			return fmt.Errorf("storing chunk %s: %w", chunks[i].ChunkID, err)
		}
	}
	return nil
}

// EstimateTokens approximates token count (4 chars ≈ 1 token)
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// splitParagraphs splits text by blank lines
func splitParagraphs(text string) []string {
	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(normalized, "\n\n")
}

// splitSentences splits text by sentence-ending punctuation followed by a space
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		current.WriteRune(runes[i])
		if runes[i] == '.' || runes[i] == '!' || runes[i] == '?' {
			// Sentence boundary when followed by whitespace or end of text
			if i == len(runes)-1 || runes[i+1] == ' ' || runes[i+1] == '\n' {
				sentences = append(sentences, strings.TrimSpace(current.String()))
				current.Reset()
			}
		}
	}
	if rest := strings.TrimSpace(current.String()); rest != "" {
		sentences = append(sentences, rest)
	}

	return sentences
}
