// ABOUTME: Gardened memory promotion and block metadata storage
// ABOUTME: Promoted chunks are immutable; tags are stored once per block
package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/harper/hmlr/internal/models"
)

// GardenedStore handles long-term chunk promotion and sticky metadata
type GardenedStore struct {
	db *DB
}

// NewGardenedStore creates a new GardenedStore
func NewGardenedStore(db *DB) *GardenedStore {
	return &GardenedStore{db: db}
}

// PromoteBlockChunks copies every stored chunk of the block into
// gardened_memory. Vectors stay in the embeddings table; the join at search
// time keeps the invariant that every gardened chunk has an embedding row.
func (s *GardenedStore) PromoteBlockChunks(blockID string) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO gardened_memory (chunk_id, block_id, chunk_type, parent_chunk_id, content, token_count, turn_ordinal, created_at)
		SELECT chunk_id, block_id, chunk_type, parent_chunk_id, content, token_count, turn_ordinal, created_at
		FROM embeddings
		WHERE block_id = ?
		ON CONFLICT(chunk_id) DO NOTHING
	`, blockID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// SaveMetadata writes the sticky tags for one gardened block
func (s *GardenedStore) SaveMetadata(meta *models.BlockMetadata) error {
	tagsJSON, err := json.Marshal(meta.GlobalTags)
	if err != nil {
		return err
	}
	rulesJSON, err := json.Marshal(meta.SectionRules)
	if err != nil {
		return err
	}

	createdAt := meta.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.Exec(`
		INSERT INTO block_metadata (block_id, global_tags, section_rules, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(block_id) DO UPDATE SET
			global_tags = excluded.global_tags,
			section_rules = excluded.section_rules
	`, meta.BlockID, string(tagsJSON), string(rulesJSON), createdAt)

	return err
}

// GetMetadata retrieves the sticky tags for a block, nil if not gardened
func (s *GardenedStore) GetMetadata(blockID string) (*models.BlockMetadata, error) {
	var (
		meta      models.BlockMetadata
		tagsJSON  string
		rulesJSON string
	)

	err := s.db.QueryRow(`
		SELECT block_id, global_tags, section_rules, created_at
		FROM block_metadata
		WHERE block_id = ?
	`, blockID).Scan(&meta.BlockID, &tagsJSON, &rulesJSON, &meta.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(tagsJSON), &meta.GlobalTags); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(rulesJSON), &meta.SectionRules); err != nil {
		return nil, err
	}

	return &meta, nil
}

// CountChunks returns the number of gardened chunks for a block
func (s *GardenedStore) CountChunks(blockID string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM gardened_memory WHERE block_id = ?", blockID).Scan(&count)
	return count, err
}
