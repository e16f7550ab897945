// ABOUTME: Turn represents a single conversation exchange between user and AI
// ABOUTME: Turns are immutable once appended to a block
package models

import (
	"errors"
	"strings"
	"time"
)

// Turn represents a single conversation turn
type Turn struct {
	TurnID      string    `json:"turn_id"`
	Timestamp   time.Time `json:"timestamp"`
	UserMessage string    `json:"user_message"`
	AIResponse  string    `json:"ai_response"`
	Ordinal     int       `json:"ordinal"`
}

// NewTurn creates a new Turn with validation
func NewTurn(userMessage, aiResponse string) (*Turn, error) {
	if strings.TrimSpace(userMessage) == "" {
		return nil, errors.New("user message cannot be empty")
	}
	now := time.Now().UTC()
	return &Turn{
		TurnID:      NewTurnID(now),
		Timestamp:   now,
		UserMessage: userMessage,
		AIResponse:  aiResponse,
	}, nil
}
