// ABOUTME: Turn storage operations for SQLite
// ABOUTME: Turns carry a strict per-block ordinal assigned at append time
package sqlite

import (
	"github.com/harper/hmlr/internal/models"
)

// TurnStore handles turn persistence
type TurnStore struct {
	db *DB
}

// NewTurnStore creates a new TurnStore
func NewTurnStore(db *DB) *TurnStore {
	return &TurnStore{db: db}
}

// Append saves a turn for a block with the next ordinal and returns it.
func (s *TurnStore) Append(blockID string, turn *models.Turn) (int, error) {
	var maxOrdinal int
	err := s.db.QueryRow(`
		SELECT COALESCE(MAX(ordinal), 0) FROM turns WHERE block_id = ?
	`, blockID).Scan(&maxOrdinal)
	if err != nil {
		return 0, err
	}

	ordinal := maxOrdinal + 1
	_, err = s.db.Exec(`
		INSERT INTO turns (turn_id, block_id, ordinal, user_message, ai_response, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, turn.TurnID, blockID, ordinal, turn.UserMessage, turn.AIResponse, turn.Timestamp)
	if err != nil {
		return 0, err
	}

	turn.Ordinal = ordinal
	return ordinal, nil
}

// GetByBlock retrieves all turns for a block in ordinal order
func (s *TurnStore) GetByBlock(blockID string) ([]models.Turn, error) {
	rows, err := s.db.Query(`
		SELECT turn_id, ordinal, user_message, ai_response, created_at
		FROM turns
		WHERE block_id = ?
		ORDER BY ordinal ASC
	`, blockID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var turns []models.Turn
	for rows.Next() {
		var turn models.Turn
		if err := rows.Scan(&turn.TurnID, &turn.Ordinal, &turn.UserMessage,
			&turn.AIResponse, &turn.Timestamp); err != nil {
			return nil, err
		}
		turns = append(turns, turn)
	}
	return turns, rows.Err()
}

// Count returns the number of turns in a block
func (s *TurnStore) Count(blockID string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM turns WHERE block_id = ?", blockID).Scan(&count)
	return count, err
}
