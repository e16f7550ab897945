// ABOUTME: BridgeBlock represents a topic-based conversation thread in the short-term ledger
// ABOUTME: Organizes turns by topic with accumulating routing metadata
package models

import (
	"errors"
	"strings"
	"time"
)

// BridgeBlockStatus represents the current state of a Bridge Block
type BridgeBlockStatus string

const (
	StatusActive BridgeBlockStatus = "ACTIVE"
	StatusPaused BridgeBlockStatus = "PAUSED"
	StatusClosed BridgeBlockStatus = "CLOSED"
)

// BridgeBlock represents a topic-based conversation thread.
// Keywords, Summary, OpenLoops, and Decisions accumulate as the Governor
// routes turns into the block; the Gardener consumes and deletes it.
type BridgeBlock struct {
	BlockID    string            `json:"block_id"`
	TopicLabel string            `json:"topic_label"`
	Keywords   []string          `json:"keywords"`
	Status     BridgeBlockStatus `json:"status"`
	Summary    string            `json:"summary,omitempty"`
	OpenLoops  []string          `json:"open_loops,omitempty"`
	Decisions  []string          `json:"decisions,omitempty"`
	Turns      []Turn            `json:"turns"`
	TurnCount  int               `json:"turn_count"`
	CreatedAt  time.Time         `json:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Validate checks if the BridgeBlock has valid data
func (b *BridgeBlock) Validate() error {
	if b.BlockID == "" {
		return errors.New("block ID cannot be empty")
	}
	if b.TopicLabel == "" {
		return errors.New("topic label cannot be empty")
	}
	if b.Status != StatusActive && b.Status != StatusPaused && b.Status != StatusClosed {
		return errors.New("invalid status")
	}
	return nil
}

// AddTurn appends a turn to the bridge block and updates metadata
func (b *BridgeBlock) AddTurn(turn Turn) {
	b.Turns = append(b.Turns, turn)
	b.TurnCount = len(b.Turns)
	b.UpdatedAt = time.Now().UTC()
}

// UnionKeywords merges new keywords into the accumulating set, preserving
// insertion order and skipping case-insensitive duplicates.
func (b *BridgeBlock) UnionKeywords(keywords []string) {
	seen := make(map[string]bool, len(b.Keywords))
	for _, k := range b.Keywords {
		seen[strings.ToLower(strings.TrimSpace(k))] = true
	}
	for _, k := range keywords {
		n := strings.ToLower(strings.TrimSpace(k))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		b.Keywords = append(b.Keywords, k)
	}
}

// LedgerEntry is the compact view of a block shown to the routing LLM.
type LedgerEntry struct {
	BlockID    string            `json:"block_id"`
	TopicLabel string            `json:"topic_label"`
	Keywords   []string          `json:"keywords"`
	Summary    string            `json:"summary,omitempty"`
	Status     BridgeBlockStatus `json:"status"`
}

// LedgerView returns the compact routing view of the block.
func (b *BridgeBlock) LedgerView() LedgerEntry {
	return LedgerEntry{
		BlockID:    b.BlockID,
		TopicLabel: b.TopicLabel,
		Keywords:   b.Keywords,
		Summary:    b.Summary,
		Status:     b.Status,
	}
}
