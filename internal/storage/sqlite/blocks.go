// ABOUTME: Bridge block storage operations for the daily_ledger table
// ABOUTME: Implements CRUD and status transitions for short-term blocks
package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/harper/hmlr/internal/models"
)

// BlockStore handles bridge block persistence
type BlockStore struct {
	db *DB
}

// NewBlockStore creates a new BlockStore
func NewBlockStore(db *DB) *BlockStore {
	return &BlockStore{db: db}
}

// Save inserts or updates a bridge block row. Turns are persisted separately.
func (s *BlockStore) Save(block *models.BridgeBlock) error {
	keywordsJSON, err := json.Marshal(block.Keywords)
	if err != nil {
		return err
	}
	loopsJSON, err := json.Marshal(block.OpenLoops)
	if err != nil {
		return err
	}
	decisionsJSON, err := json.Marshal(block.Decisions)
	if err != nil {
		return err
	}

	createdAt := block.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := block.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err = s.db.Exec(`
		INSERT INTO daily_ledger (block_id, topic_label, keywords, status, summary, open_loops, decisions, turn_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(block_id) DO UPDATE SET
			topic_label = excluded.topic_label,
			keywords = excluded.keywords,
			status = excluded.status,
			summary = excluded.summary,
			open_loops = excluded.open_loops,
			decisions = excluded.decisions,
			turn_count = excluded.turn_count,
			updated_at = excluded.updated_at
	`, block.BlockID, block.TopicLabel, string(keywordsJSON), string(block.Status),
		block.Summary, string(loopsJSON), string(decisionsJSON), block.TurnCount,
		createdAt, updatedAt)

	return err
}

// Get retrieves a bridge block without its turns, returning nil if not found
func (s *BlockStore) Get(blockID string) (*models.BridgeBlock, error) {
	row := s.db.QueryRow(`
		SELECT block_id, topic_label, keywords, status, summary, open_loops, decisions, turn_count, created_at, updated_at
		FROM daily_ledger
		WHERE block_id = ?
	`, blockID)

	block, err := scanBlock(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return block, nil
}

// GetByStatus retrieves all blocks with the given status, oldest first
func (s *BlockStore) GetByStatus(status models.BridgeBlockStatus) ([]models.BridgeBlock, error) {
	rows, err := s.db.Query(`
		SELECT block_id, topic_label, keywords, status, summary, open_loops, decisions, turn_count, created_at, updated_at
		FROM daily_ledger
		WHERE status = ?
		ORDER BY created_at ASC
	`, string(status))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var blocks []models.BridgeBlock
	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, *block)
	}
	return blocks, rows.Err()
}

// List retrieves all blocks in the ledger, newest first
func (s *BlockStore) List() ([]models.BridgeBlock, error) {
	rows, err := s.db.Query(`
		SELECT block_id, topic_label, keywords, status, summary, open_loops, decisions, turn_count, created_at, updated_at
		FROM daily_ledger
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var blocks []models.BridgeBlock
	for rows.Next() {
		block, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, *block)
	}
	return blocks, rows.Err()
}

// UpdateStatus changes a block's status
func (s *BlockStore) UpdateStatus(blockID string, status models.BridgeBlockStatus) error {
	_, err := s.db.Exec(`
		UPDATE daily_ledger SET status = ?, updated_at = ? WHERE block_id = ?
	`, string(status), time.Now().UTC(), blockID)
	return err
}

// Delete removes a block from the ledger. Turns cascade; facts keep their
// soft source_block_id reference.
func (s *BlockStore) Delete(blockID string) error {
	_, err := s.db.Exec("DELETE FROM daily_ledger WHERE block_id = ?", blockID)
	return err
}

// rowScanner lets scanBlock work with both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanBlock(row rowScanner) (*models.BridgeBlock, error) {
	var (
		block         models.BridgeBlock
		status        string
		keywordsJSON  sql.NullString
		summary       sql.NullString
		loopsJSON     sql.NullString
		decisionsJSON sql.NullString
	)

	err := row.Scan(&block.BlockID, &block.TopicLabel, &keywordsJSON, &status,
		&summary, &loopsJSON, &decisionsJSON, &block.TurnCount,
		&block.CreatedAt, &block.UpdatedAt)
	if err != nil {
		return nil, err
	}

	block.Status = models.BridgeBlockStatus(status)
	if summary.Valid {
		block.Summary = summary.String
	}
	if keywordsJSON.Valid && keywordsJSON.String != "" {
		if err := json.Unmarshal([]byte(keywordsJSON.String), &block.Keywords); err != nil {
			return nil, err
		}
	}
	if loopsJSON.Valid && loopsJSON.String != "" {
		if err := json.Unmarshal([]byte(loopsJSON.String), &block.OpenLoops); err != nil {
			return nil, err
		}
	}
	if decisionsJSON.Valid && decisionsJSON.String != "" {
		if err := json.Unmarshal([]byte(decisionsJSON.String), &block.Decisions); err != nil {
			return nil, err
		}
	}

	return &block, nil
}
