// ABOUTME: Tests for fixed-order prompt assembly and group-by-block rendering
// ABOUTME: Sticky tags must render exactly once per source block
package core

import (
	"strings"
	"testing"
	"time"

	"github.com/harper/hmlr/internal/models"
)

func TestBuildPromptSectionOrder(t *testing.T) {
	h := NewHydrator(3000)

	prompt := h.BuildPrompt(HydrationInput{
		Profile: &models.UserProfile{
			Glossary: models.Glossary{
				Constraints: []models.Constraint{{
					Key: "diet_vegetarian", Type: "diet",
					Description: "Strictly vegetarian.", Severity: models.SeverityHard,
				}},
			},
		},
		Facts: []models.Fact{{Key: "api_key", Value: "XYZ789", CreatedAt: time.Now()}},
		Dossiers: []models.RetrievedDossier{{
			Dossier: models.Dossier{Title: "Diet", Summary: "Vegetarian."},
		}},
		Memories: []models.RetrievedChunk{{ChunkID: "c1", BlockID: "bb_1", Content: "old note"}},
		Block: &models.BridgeBlock{
			TopicLabel: "Dinner plans",
			Turns:      []models.Turn{{Ordinal: 1, UserMessage: "hi", AIResponse: "hello"}},
		},
		UserQuery: "What should I eat?",
	})

	sections := []string{
		"USER PROFILE:",
		"KNOWN FACTS",
		"=== FACT DOSSIERS ===",
		"RETRIEVED MEMORIES:",
		"CONVERSATION HISTORY:",
		"CURRENT USER MESSAGE:",
	}
	lastIdx := -1
	for _, section := range sections {
		idx := strings.Index(prompt, section)
		if idx == -1 {
			t.Fatalf("prompt missing section %q", section)
		}
		if idx < lastIdx {
			t.Errorf("section %q out of order", section)
		}
		lastIdx = idx
	}
}

func TestConstraintRendersFullSemanticContent(t *testing.T) {
	h := NewHydrator(3000)

	prompt := h.BuildPrompt(HydrationInput{
		Profile: &models.UserProfile{
			Glossary: models.Glossary{
				Constraints: []models.Constraint{{
					Key:         "diet_vegetarian",
					Type:        "diet",
					Description: "The user is strictly vegetarian and never eats meat.",
					Severity:    models.SeverityHard,
				}},
			},
		},
		UserQuery: "recommend a dish",
	})

	for _, want := range []string{"diet_vegetarian", "diet", "hard", "strictly vegetarian"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("constraint rendering missing %q", want)
		}
	}
}

func TestGroupByBlockEmitsTagsOnce(t *testing.T) {
	h := NewHydrator(3000)

	tags := []models.GlobalTag{{Type: models.TagDeprecation, Value: "Titan deprecated"}}
	memories := []models.RetrievedChunk{
		{ChunkID: "c1", BlockID: "bb_1", Content: "chunk one", GlobalTags: tags},
		{ChunkID: "c2", BlockID: "bb_1", Content: "chunk two", GlobalTags: tags},
		{ChunkID: "c3", BlockID: "bb_1", Content: "chunk three", GlobalTags: tags},
	}

	prompt := h.BuildPrompt(HydrationInput{Memories: memories, UserQuery: "q"})

	if got := strings.Count(prompt, "Titan deprecated"); got != 1 {
		t.Errorf("tag should render exactly once, got %d occurrences", got)
	}
	if got := strings.Count(prompt, "### Context Block: bb_1"); got != 1 {
		t.Errorf("block header should render exactly once, got %d", got)
	}
	for _, content := range []string{"chunk one", "chunk two", "chunk three"} {
		if !strings.Contains(prompt, content) {
			t.Errorf("prompt missing chunk content %q", content)
		}
	}
}

func TestGroupByBlockSeparatesBlocks(t *testing.T) {
	h := NewHydrator(3000)

	memories := []models.RetrievedChunk{
		{ChunkID: "c1", BlockID: "bb_1", Content: "from one",
			GlobalTags: []models.GlobalTag{{Type: models.TagEnv, Value: "python-3.9"}}},
		{ChunkID: "c2", BlockID: "bb_2", Content: "from two",
			GlobalTags: []models.GlobalTag{{Type: models.TagEnv, Value: "go-1.24"}}},
	}

	prompt := h.BuildPrompt(HydrationInput{Memories: memories, UserQuery: "q"})

	if !strings.Contains(prompt, "### Context Block: bb_1") || !strings.Contains(prompt, "### Context Block: bb_2") {
		t.Error("each block needs its own header")
	}
	if !strings.Contains(prompt, "python-3.9") || !strings.Contains(prompt, "go-1.24") {
		t.Error("each block needs its own tags")
	}
}

func TestSectionRulePrefixesCoveredChunksOnly(t *testing.T) {
	h := NewHydrator(3000)

	rules := []models.SectionRule{{StartTurn: 10, EndTurn: 15, Rule: "DEPRECATED"}}
	memories := []models.RetrievedChunk{
		{ChunkID: "c1", BlockID: "bb_1", Content: "inside range", TurnOrdinal: 12, SectionRules: rules},
		{ChunkID: "c2", BlockID: "bb_1", Content: "outside range", TurnOrdinal: 3, SectionRules: rules},
	}

	prompt := h.BuildPrompt(HydrationInput{Memories: memories, UserQuery: "q"})

	if !strings.Contains(prompt, "[DEPRECATED] inside range") {
		t.Error("covered chunk should carry the rule prefix")
	}
	if strings.Contains(prompt, "[DEPRECATED] outside range") {
		t.Error("uncovered chunk must not carry the rule prefix")
	}
}

func TestFactsRenderNewestFirst(t *testing.T) {
	h := NewHydrator(3000)

	older := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 8, 6, 10, 0, 0, 0, time.UTC)
	prompt := h.BuildPrompt(HydrationInput{
		Facts: []models.Fact{
			{Key: "weather_api_key", Value: "XYZ789", CreatedAt: newer},
			{Key: "weather_api_key", Value: "ABC123XYZ", CreatedAt: older},
		},
		UserQuery: "what's my key?",
	})

	newIdx := strings.Index(prompt, "XYZ789")
	oldIdx := strings.Index(prompt, "ABC123XYZ")
	if newIdx == -1 || oldIdx == -1 {
		t.Fatal("both fact rows should render")
	}
	if newIdx > oldIdx {
		t.Error("newest fact must render first")
	}
}

func TestDossierTokenBudget(t *testing.T) {
	h := NewHydrator(50)

	big := strings.Repeat("long fact text ", 50)
	dossiers := []models.RetrievedDossier{
		{Dossier: models.Dossier{Title: "First", Summary: "fits"}},
		{Dossier: models.Dossier{Title: "Second", Summary: big}},
	}

	prompt := h.BuildPrompt(HydrationInput{Dossiers: dossiers, UserQuery: "q"})

	if !strings.Contains(prompt, "First") {
		t.Error("first dossier should fit the budget")
	}
	if strings.Contains(prompt, big) {
		t.Error("oversized dossier should be trimmed by the budget")
	}
}

func TestEmptyInputStillCarriesQuery(t *testing.T) {
	h := NewHydrator(3000)
	prompt := h.BuildPrompt(HydrationInput{UserQuery: "just this"})
	if !strings.Contains(prompt, "just this") {
		t.Error("query must always be present")
	}
	if strings.Contains(prompt, "RETRIEVED MEMORIES") {
		t.Error("empty sections should be omitted")
	}
}
