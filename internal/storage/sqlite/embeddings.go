// ABOUTME: Chunk embedding storage: vectors as BLOB plus chunk text for promotion
// ABOUTME: Implements brute-force cosine similarity search over stored vectors
package sqlite

import (
	"database/sql"
	"encoding/binary"
	"math"
	"sort"
	"time"

	"github.com/harper/hmlr/internal/models"
)

// EmbeddingStore handles chunk embedding persistence
type EmbeddingStore struct {
	db *DB
}

// NewEmbeddingStore creates a new EmbeddingStore
func NewEmbeddingStore(db *DB) *EmbeddingStore {
	return &EmbeddingStore{db: db}
}

// SaveChunk persists a chunk with its vector. The block is unknown until the
// Governor routes the turn, so block_id starts NULL.
func (s *EmbeddingStore) SaveChunk(chunk *models.Chunk, vector []float64) error {
	blob := vectorToBlob(vector)

	_, err := s.db.Exec(`
		INSERT INTO embeddings (chunk_id, turn_id, block_id, chunk_type, parent_chunk_id, content, token_count, turn_ordinal, vector, created_at)
		VALUES (?, ?, NULL, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(chunk_id) DO UPDATE SET
			vector = excluded.vector,
			content = excluded.content,
			token_count = excluded.token_count
	`, chunk.ChunkID, chunk.TurnID, string(chunk.ChunkType),
		nullString(chunk.ParentChunkID), chunk.Content, chunk.TokenCount,
		chunk.TurnOrdinal, blob, time.Now().UTC())

	return err
}

// LinkToTurn sets block_id and turn ordinal on every chunk of the given turn.
func (s *EmbeddingStore) LinkToTurn(turnID, blockID string, turnOrdinal int) error {
	_, err := s.db.Exec(`
		UPDATE embeddings
		SET block_id = ?, turn_ordinal = ?
		WHERE turn_id = ?
	`, blockID, turnOrdinal, turnID)
	return err
}

// GetByChunkID retrieves an embedding by chunk ID
func (s *EmbeddingStore) GetByChunkID(chunkID string) (*models.Embedding, error) {
	var (
		emb     models.Embedding
		turnID  sql.NullString
		blockID sql.NullString
		blob    []byte
	)

	err := s.db.QueryRow(`
		SELECT chunk_id, turn_id, block_id, vector, created_at
		FROM embeddings
		WHERE chunk_id = ?
	`, chunkID).Scan(&emb.ChunkID, &turnID, &blockID, &blob, &emb.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if turnID.Valid {
		emb.TurnID = turnID.String
	}
	if blockID.Valid {
		emb.BlockID = blockID.String
	}
	emb.Vector = blobToVector(blob)

	return &emb, nil
}

// GetChunksByBlock retrieves the stored chunks of a block (text, no vectors)
func (s *EmbeddingStore) GetChunksByBlock(blockID string) ([]models.Chunk, error) {
	rows, err := s.db.Query(`
		SELECT chunk_id, turn_id, chunk_type, parent_chunk_id, content, token_count, turn_ordinal
		FROM embeddings
		WHERE block_id = ?
		ORDER BY created_at ASC, chunk_id ASC
	`, blockID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var chunks []models.Chunk
	for rows.Next() {
		var (
			chunk     models.Chunk
			chunkType string
			parentID  sql.NullString
		)
		if err := rows.Scan(&chunk.ChunkID, &chunk.TurnID, &chunkType, &parentID,
			&chunk.Content, &chunk.TokenCount, &chunk.TurnOrdinal); err != nil {
			return nil, err
		}
		chunk.ChunkType = models.ChunkType(chunkType)
		if parentID.Valid {
			chunk.ParentChunkID = parentID.String
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}

// SearchGardened performs cosine similarity search restricted to chunks that
// have been promoted into gardened_memory. Results below threshold are dropped.
func (s *EmbeddingStore) SearchGardened(queryVector []float64, maxResults int, threshold float64) ([]models.RetrievedChunk, error) {
	rows, err := s.db.Query(`
		SELECT g.chunk_id, g.block_id, g.content, g.turn_ordinal, g.created_at, e.vector
		FROM gardened_memory g
		INNER JOIN embeddings e ON e.chunk_id = g.chunk_id
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var results []models.RetrievedChunk
	for rows.Next() {
		var (
			chunk models.RetrievedChunk
			blob  []byte
		)
		if err := rows.Scan(&chunk.ChunkID, &chunk.BlockID, &chunk.Content,
			&chunk.TurnOrdinal, &chunk.SourceDate, &blob); err != nil {
			return nil, err
		}

		score := CosineSimilarity(queryVector, blobToVector(blob))
		if score < threshold {
			continue
		}
		chunk.SimilarityScore = score
		results = append(results, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].SimilarityScore != results[j].SimilarityScore {
			return results[i].SimilarityScore > results[j].SimilarityScore
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// Delete removes an embedding by chunk ID
func (s *EmbeddingStore) Delete(chunkID string) error {
	_, err := s.db.Exec("DELETE FROM embeddings WHERE chunk_id = ?", chunkID)
	return err
}

// vectorToBlob converts a float64 slice to binary blob
func vectorToBlob(vector []float64) []byte {
	blob := make([]byte, len(vector)*8)
	for i, v := range vector {
		binary.LittleEndian.PutUint64(blob[i*8:], math.Float64bits(v))
	}
	return blob
}

// blobToVector converts a binary blob to float64 slice
func blobToVector(blob []byte) []float64 {
	count := len(blob) / 8
	vector := make([]float64, count)
	for i := 0; i < count; i++ {
		bits := binary.LittleEndian.Uint64(blob[i*8:])
		vector[i] = math.Float64frombits(bits)
	}
	return vector
}

// CosineSimilarity calculates cosine similarity between two vectors
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
