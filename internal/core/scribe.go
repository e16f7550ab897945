// ABOUTME: Scribe agent for async user profile learning
// ABOUTME: Extracts constraints, preferences, and identities; never blocks the conversation
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/harper/hmlr/internal/models"
)

// Scribe is a fire-and-forget background agent that learns about the user
// from incoming messages. It is the only writer of the profile document.
type Scribe struct {
	client      LLMClient
	profilePath string
	logger      *log.Logger

	mu sync.Mutex // Serializes read-modify-write of the profile document
	wg sync.WaitGroup
}

// NewScribe creates a new Scribe agent
func NewScribe(client LLMClient, profilePath string, logger *log.Logger) *Scribe {
	return &Scribe{
		client:      client,
		profilePath: profilePath,
		logger:      logger,
	}
}

const scribePrompt = `You are a user profile learning assistant. Analyze the user's message and classify any statements about the user into profile updates.

Categories:
- constraints: durable rules about the user (diet, allergies, policies). Each has:
  - key: short identifier (lowercase, underscores, e.g. "diet_vegetarian")
  - type: category (e.g. "diet", "allergy", "policy")
  - description: one sentence stating the rule
  - severity: "hard" (must never be violated) or "soft" (strong preference)
- preferences: habits or ways they like to work (array of strings)
- identities: who they are — name, role, affiliations (array of strings)

Return ONLY a JSON object:
{"constraints": [{"key": "...", "type": "...", "description": "...", "severity": "hard"}], "preferences": [], "identities": []}

Only include what is actually stated. If nothing is found, return {"constraints": [], "preferences": [], "identities": []}.

Message:
%s`

// UpdateProfileAsync launches a background profile update for the message.
// Failures are logged and dropped; the conversation never waits on this.
func (s *Scribe) UpdateProfileAsync(userMessage string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.updateProfile(ctx, userMessage); err != nil {
			s.logger.Warn("scribe profile update dropped", "err", err)
		}
	}()
}

// Wait blocks until all in-flight profile updates finish. Used by tests and
// graceful shutdown.
func (s *Scribe) Wait() {
	s.wg.Wait()
}

// updateProfile is the internal sync implementation
func (s *Scribe) updateProfile(ctx context.Context, userMessage string) error {
	if strings.TrimSpace(userMessage) == "" {
		return nil
	}

	update, err := s.extractUpdate(ctx, userMessage)
	if err != nil {
		return fmt.Errorf("failed to extract profile update: %w", err)
	}
	if update.IsEmpty() {
		return nil
	}

	// Read-modify-write under the mutex; last writer wins, which is
	// tolerable because a single user owns the profile.
	s.mu.Lock()
	defer s.mu.Unlock()

	profile, err := models.LoadUserProfile(s.profilePath)
	if err != nil {
		return fmt.Errorf("failed to load profile: %w", err)
	}

	profile.Merge(update)

	if err := profile.Save(s.profilePath); err != nil {
		return fmt.Errorf("failed to save profile: %w", err)
	}

	s.logger.Debug("profile updated",
		"constraints", len(update.Constraints),
		"preferences", len(update.Preferences),
		"identities", len(update.Identities))
	return nil
}

// extractUpdate asks the LLM to classify the message into profile updates
func (s *Scribe) extractUpdate(ctx context.Context, userMessage string) (*models.ProfileUpdate, error) {
	response, err := s.client.QueryJSON(ctx, fmt.Sprintf(scribePrompt, userMessage))
	if err != nil {
		return nil, err
	}

	var update models.ProfileUpdate
	if err := json.Unmarshal([]byte(response), &update); err != nil {
		obj := extractJSONObject(response)
		if obj == "" {
			return nil, fmt.Errorf("no JSON in scribe response")
		}
		if err := json.Unmarshal([]byte(obj), &update); err != nil {
			return nil, fmt.Errorf("failed to parse scribe response: %w", err)
		}
	}

	return &update, nil
}
