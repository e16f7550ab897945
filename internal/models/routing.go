// ABOUTME: Routing decision types and structures for Governor
// ABOUTME: Defines the 4 routing scenarios for topic management
package models

// RoutingScenario represents the routing decision type
type RoutingScenario string

const (
	// TopicContinuation - Query belongs to the sole active block's topic → append turn
	TopicContinuation RoutingScenario = "topic_continuation"

	// TopicResumption - Query references a paused block's topic → reactivate it, pause current
	TopicResumption RoutingScenario = "topic_resumption"

	// NewTopicFirst - No block matches and none is active → create new block
	NewTopicFirst RoutingScenario = "new_topic_first"

	// TopicShift - New topic while one is active → pause old, create new
	TopicShift RoutingScenario = "topic_shift"
)

// RoutingDecision contains the routing decision and relevant metadata
type RoutingDecision struct {
	Scenario       RoutingScenario `json:"scenario"`
	MatchedBlockID string          `json:"matched_block_id,omitempty"`
	ActiveBlockID  string          `json:"active_block_id,omitempty"`
	TopicLabel     string          `json:"topic_label,omitempty"`
	Keywords       []string        `json:"keywords,omitempty"`
}
