// ABOUTME: End-to-end scenario definitions for the memory pipeline benchmark
// ABOUTME: Each scenario scripts turns, optional setup, and response expectations
package scenarios

import "github.com/harper/hmlr/internal/models"

// Scenario scripts one end-to-end conversation against a fresh database.
type Scenario struct {
	ID          string
	Name        string
	Description string

	// Setup applied before the first turn.
	ProfileSeed *models.UserProfile
	SeedBlocks  []SeededBlock

	// Turns fed to the engine in order. GardenAfter lists 1-based turn
	// indexes after which the active block is gardened.
	Turns       []string
	GardenAfter []int

	// Expectations on the reply to the final turn.
	ExpectInResponse    []string
	ForbiddenInResponse []string

	// Expectations on persistent state after the run.
	ExpectBlockCount   int
	ExpectDossierCount int
}

// SeededBlock pre-populates a gardened block with tagged chunks.
type SeededBlock struct {
	BlockID      string
	Chunks       []string
	GlobalTags   []models.GlobalTag
	SectionRules []models.SectionRule
}

// All returns the six literal end-to-end scenarios.
func All() []Scenario {
	return []Scenario{
		{
			ID:          "key-rotation",
			Name:        "API key rotation",
			Description: "Newest fact wins when a credential rotates.",
			Turns: []string{
				"My weather API key is ABC123XYZ.",
				"I rotated keys. The new key is XYZ789.",
				"What is my API key?",
			},
			ExpectInResponse:    []string{"XYZ789"},
			ForbiddenInResponse: []string{"ABC123XYZ"},
		},
		{
			ID:          "cross-topic-constraint",
			Name:        "Cross-topic constraint",
			Description: "Profile constraints apply regardless of routing.",
			ProfileSeed: &models.UserProfile{
				Glossary: models.Glossary{
					Constraints: []models.Constraint{{
						Key:         "diet_vegetarian",
						Type:        "diet",
						Description: "The user is strictly vegetarian and never eats meat.",
						Severity:    models.SeverityHard,
					}},
				},
			},
			Turns: []string{
				"I'm going to a steakhouse tonight. Can you recommend a dish?",
			},
			ExpectInResponse: []string{"vegetarian"},
		},
		{
			ID:          "vague-retrieval",
			Name:        "Vague retrieval",
			Description: "Block-scoped facts answer a vague follow-up ten turns later.",
			Turns: []string{
				"My weather service API key is STORMKEY42. Keep it handy.",
				"Let's plan the sprint demo agenda.",
				"Add a section about the new dashboard.",
				"We should also thank the design team.",
				"What time works best, morning or afternoon?",
				"Morning it is.",
				"Draft a two-line announcement for the demo.",
				"Make the tone a bit more formal.",
				"Good. Add a calendar link placeholder.",
				"Remind me what credential I need for the weather service?",
			},
			ExpectInResponse: []string{"STORMKEY42"},
		},
		{
			ID:          "multi-hop-deprecation",
			Name:        "Multi-hop deprecation",
			Description: "A gardened deprecation tag governs a new conversation.",
			SeedBlocks: []SeededBlock{{
				BlockID: "bb_20250701T090000_seed0001",
				Chunks: []string{
					"The platform team announced that Titan is deprecated effective this quarter.",
					"All new projects must use Olympus instead of Titan.",
				},
				GlobalTags: []models.GlobalTag{
					{Type: models.TagDeprecation, Value: "Titan deprecated"},
					{Type: models.TagConstraint, Value: "new projects use Olympus"},
				},
			}},
			Turns: []string{
				"Project Hades kicked off this week and the team picked Titan as the backbone.",
				"We wired Titan into the ingestion path already.",
				"Titan handles the queue consumers for Hades too.",
				"Is this compliant?",
			},
			ExpectInResponse: []string{"Olympus"},
		},
		{
			ID:          "drift-vs-shift",
			Name:        "Gradual drift vs. abrupt shift",
			Description: "Drift stays in one block; an abrupt jump creates a second.",
			Turns: []string{
				"I went hiking in the Cascades last weekend.",
				"The light at the summit was perfect for photography.",
				"Anyway, help me debug this Python TypeError in my parser.",
			},
			ExpectBlockCount: 2,
		},
		{
			ID:          "dossier-incremental",
			Name:        "Dossier incremental build",
			Description: "Two gardened blocks build one dossier incrementally.",
			Turns: []string{
				"Just so you know, I'm vegetarian and plan meals around that.",
				"Also, I avoid eggs and dairy whenever I can.",
			},
			GardenAfter:        []int{1, 2},
			ExpectDossierCount: 1,
		},
	}
}
