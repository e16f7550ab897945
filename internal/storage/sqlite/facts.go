// ABOUTME: Fact storage operations for the append-only fact_store table
// ABOUTME: Facts are never updated; conflicts resolve by created_at ordering
package sqlite

import (
	"database/sql"
	"time"

	"github.com/harper/hmlr/internal/models"
)

// FactStore handles fact persistence
type FactStore struct {
	db *DB
}

// NewFactStore creates a new FactStore
func NewFactStore(db *DB) *FactStore {
	return &FactStore{db: db}
}

// Insert appends a fact row. Rotated values get fresh rows; prior rows are
// left untouched so the audit trail survives.
func (s *FactStore) Insert(fact *models.Fact) error {
	createdAt := fact.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.Exec(`
		INSERT INTO fact_store (fact_id, source_block_id, source_chunk_id, key, value, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, fact.FactID, nullString(fact.SourceBlockID), nullString(fact.SourceChunkID),
		fact.Key, fact.Value, fact.Confidence, createdAt)

	return err
}

// LinkToTurn sets source_block_id on every unlinked fact whose chunk ID
// carries the turn's timestamp prefix. Returns the number of linked rows.
func (s *FactStore) LinkToTurn(turnID, blockID string) (int64, error) {
	result, err := s.db.Exec(`
		UPDATE fact_store
		SET source_block_id = ?
		WHERE source_block_id IS NULL AND source_chunk_id LIKE ? || '%'
	`, blockID, turnID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// GetByBlock retrieves all facts for a block, newest first (ties broken by
// insertion order).
func (s *FactStore) GetByBlock(blockID string) ([]models.Fact, error) {
	rows, err := s.db.Query(`
		SELECT fact_id, source_block_id, source_chunk_id, key, value, confidence, created_at
		FROM fact_store
		WHERE source_block_id = ?
		ORDER BY created_at DESC, rowid DESC
	`, blockID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return s.scanFacts(rows)
}

// GetByKey retrieves the most recent fact with the given key
func (s *FactStore) GetByKey(key string) (*models.Fact, error) {
	rows, err := s.db.Query(`
		SELECT fact_id, source_block_id, source_chunk_id, key, value, confidence, created_at
		FROM fact_store
		WHERE key = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1
	`, key)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	facts, err := s.scanFacts(rows)
	if err != nil {
		return nil, err
	}
	if len(facts) == 0 {
		return nil, nil
	}
	return &facts[0], nil
}

// Search searches facts by key or value containing the query string
func (s *FactStore) Search(query string, maxResults int) ([]models.Fact, error) {
	likePattern := "%" + query + "%"
	rows, err := s.db.Query(`
		SELECT fact_id, source_block_id, source_chunk_id, key, value, confidence, created_at
		FROM fact_store
		WHERE key LIKE ? OR value LIKE ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`, likePattern, likePattern, maxResults)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return s.scanFacts(rows)
}

// scanFacts scans rows into a slice of Fact
func (s *FactStore) scanFacts(rows *sql.Rows) ([]models.Fact, error) {
	var facts []models.Fact

	for rows.Next() {
		var (
			fact    models.Fact
			blockID sql.NullString
			chunkID sql.NullString
		)

		err := rows.Scan(&fact.FactID, &blockID, &chunkID, &fact.Key, &fact.Value,
			&fact.Confidence, &fact.CreatedAt)
		if err != nil {
			return nil, err
		}

		if blockID.Valid {
			fact.SourceBlockID = blockID.String
		}
		if chunkID.Valid {
			fact.SourceChunkID = chunkID.String
		}

		facts = append(facts, fact)
	}

	return facts, rows.Err()
}

// nullString converts an empty string to sql.NullString
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
