// ABOUTME: Hydrator assembles the final prompt from all memory sources in a fixed order
// ABOUTME: Retrieved chunks are grouped by source block so sticky tags render once
package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/harper/hmlr/internal/models"
)

// Hydrator builds context-aware prompts for the downstream generator.
// Section order is fixed: profile → facts → dossiers → retrieved memories →
// block history → current query.
type Hydrator struct {
	tokenBudget int
}

// NewHydrator creates a new Hydrator. tokenBudget caps the dossier section.
func NewHydrator(tokenBudget int) *Hydrator {
	if tokenBudget <= 0 {
		tokenBudget = 3000
	}
	return &Hydrator{tokenBudget: tokenBudget}
}

// HydrationInput carries everything the Hydrator layers into the prompt.
type HydrationInput struct {
	Profile   *models.UserProfile
	Facts     []models.Fact
	Dossiers  []models.RetrievedDossier
	Memories  []models.RetrievedChunk
	Block     *models.BridgeBlock
	UserQuery string
}

// BuildPrompt assembles the full prompt for the generator.
func (h *Hydrator) BuildPrompt(input HydrationInput) string {
	var sections []string

	sections = append(sections, "SYSTEM:\nYou are a helpful AI assistant with access to conversation history and long-term memory. Honor every profile constraint.\n")

	if section := h.formatProfile(input.Profile); section != "" {
		sections = append(sections, section)
	}
	if section := h.formatFacts(input.Facts); section != "" {
		sections = append(sections, section)
	}
	if section := h.formatDossiers(input.Dossiers); section != "" {
		sections = append(sections, section)
	}
	if section := h.formatMemories(input.Memories); section != "" {
		sections = append(sections, section)
	}
	if section := h.formatBlockHistory(input.Block); section != "" {
		sections = append(sections, section)
	}

	sections = append(sections, "CURRENT USER MESSAGE:\n"+input.UserQuery+"\n")

	return strings.Join(sections, "\n")
}

// formatProfile renders constraints with key, description, type, and severity
// so the generator sees the full semantic content.
func (h *Hydrator) formatProfile(profile *models.UserProfile) string {
	if profile == nil {
		return ""
	}
	g := profile.Glossary
	if len(g.Constraints) == 0 && len(g.Preferences) == 0 && len(g.Identities) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("USER PROFILE:\n")

	if len(g.Constraints) > 0 {
		sb.WriteString("Constraints:\n")
		for _, c := range g.Constraints {
			sb.WriteString(fmt.Sprintf("- %s (%s, severity: %s): %s\n", c.Key, c.Type, c.Severity, c.Description))
		}
	}
	if len(g.Preferences) > 0 {
		sb.WriteString("Preferences: " + strings.Join(g.Preferences, ", ") + "\n")
	}
	if len(g.Identities) > 0 {
		sb.WriteString("Identities: " + strings.Join(g.Identities, ", ") + "\n")
	}

	return sb.String()
}

// formatFacts renders block-scoped facts, newest first.
func (h *Hydrator) formatFacts(facts []models.Fact) string {
	if len(facts) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("KNOWN FACTS (newest first):\n")
	for _, fact := range facts {
		sb.WriteString(fmt.Sprintf("- %s: %s (recorded %s)\n",
			fact.Key, fact.Value, fact.CreatedAt.UTC().Format("2006-01-02T15:04:05Z")))
	}
	return sb.String()
}

// formatDossiers renders retrieved dossiers under the fact-dossier banner,
// trimmed to the token budget.
func (h *Hydrator) formatDossiers(dossiers []models.RetrievedDossier) string {
	if len(dossiers) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("=== FACT DOSSIERS ===\n")

	for _, d := range dossiers {
		entry := fmt.Sprintf("\n### Dossier: %s\nSummary: %s\n", d.Dossier.Title, d.Dossier.Summary)
		if len(d.Facts) > 0 {
			entry += "Facts:\n"
			for _, f := range d.Facts {
				entry += "- " + f.FactText + "\n"
			}
		}
		entry += fmt.Sprintf("Last Updated: %s\n", d.Dossier.LastUpdated.UTC().Format("2006-01-02"))

		if EstimateTokens(sb.String()+entry) > h.tokenBudget {
			break
		}
		sb.WriteString(entry)
	}

	return sb.String()
}

// formatMemories groups retrieved chunks by source block, emitting each
// block's sticky tags exactly once as a header. Section rules prefix only the
// chunks whose turn ordinal falls inside their range.
func (h *Hydrator) formatMemories(memories []models.RetrievedChunk) string {
	if len(memories) == 0 {
		return ""
	}

	byBlock := make(map[string][]models.RetrievedChunk)
	var blockOrder []string
	for _, chunk := range memories {
		if _, seen := byBlock[chunk.BlockID]; !seen {
			blockOrder = append(blockOrder, chunk.BlockID)
		}
		byBlock[chunk.BlockID] = append(byBlock[chunk.BlockID], chunk)
	}

	var sb strings.Builder
	sb.WriteString("RETRIEVED MEMORIES:\n")

	for _, blockID := range blockOrder {
		chunks := byBlock[blockID]

		sb.WriteString(fmt.Sprintf("\n### Context Block: %s\n", blockID))
		if tags := chunks[0].GlobalTags; len(tags) > 0 {
			rendered := make([]string, len(tags))
			for i, tag := range tags {
				rendered[i] = fmt.Sprintf("[%s] %s", tag.Type, tag.Value)
			}
			sb.WriteString("Active Rules: " + strings.Join(rendered, ", ") + "\n")
		}
		sb.WriteString("\n")

		sort.SliceStable(chunks, func(i, j int) bool {
			return chunks[i].TurnOrdinal < chunks[j].TurnOrdinal
		})

		for _, chunk := range chunks {
			if rule := sectionRuleFor(chunk); rule != "" {
				sb.WriteString(fmt.Sprintf("  [%s] %s\n", rule, chunk.Content))
			} else {
				sb.WriteString("  " + chunk.Content + "\n")
			}
		}
	}

	return sb.String()
}

// sectionRuleFor returns the first section rule covering the chunk's turn
// ordinal, or "".
func sectionRuleFor(chunk models.RetrievedChunk) string {
	for _, rule := range chunk.SectionRules {
		if rule.Covers(chunk.TurnOrdinal) {
			return rule.Rule
		}
	}
	return ""
}

// formatBlockHistory renders the current block's turn history.
func (h *Hydrator) formatBlockHistory(block *models.BridgeBlock) string {
	if block == nil || len(block.Turns) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("CONVERSATION HISTORY:\n")
	sb.WriteString(fmt.Sprintf("Topic: %s\n\n", block.TopicLabel))

	for _, turn := range block.Turns {
		sb.WriteString(fmt.Sprintf("Turn %d:\n", turn.Ordinal))
		sb.WriteString(fmt.Sprintf("User: %s\n", turn.UserMessage))
		sb.WriteString(fmt.Sprintf("AI: %s\n\n", turn.AIResponse))
	}

	return sb.String()
}
