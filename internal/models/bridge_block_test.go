// ABOUTME: Tests for BridgeBlock validation and accumulating metadata
// ABOUTME: Keyword union is case-insensitive and order-preserving
package models

import (
	"testing"
)

func TestBridgeBlockValidate(t *testing.T) {
	tests := []struct {
		name    string
		block   BridgeBlock
		wantErr bool
	}{
		{
			name:    "valid active block",
			block:   BridgeBlock{BlockID: "bb_1", TopicLabel: "Topic", Status: StatusActive},
			wantErr: false,
		},
		{
			name:    "valid paused block",
			block:   BridgeBlock{BlockID: "bb_1", TopicLabel: "Topic", Status: StatusPaused},
			wantErr: false,
		},
		{
			name:    "missing block ID",
			block:   BridgeBlock{TopicLabel: "Topic", Status: StatusActive},
			wantErr: true,
		},
		{
			name:    "missing topic label",
			block:   BridgeBlock{BlockID: "bb_1", Status: StatusActive},
			wantErr: true,
		},
		{
			name:    "invalid status",
			block:   BridgeBlock{BlockID: "bb_1", TopicLabel: "Topic", Status: "DANGLING"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.block.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddTurnUpdatesCount(t *testing.T) {
	block := BridgeBlock{BlockID: "bb_1", TopicLabel: "Topic", Status: StatusActive}

	turn := Turn{TurnID: "turn_1", UserMessage: "hi"}
	block.AddTurn(turn)

	if block.TurnCount != 1 || len(block.Turns) != 1 {
		t.Errorf("AddTurn did not update counts: %d/%d", block.TurnCount, len(block.Turns))
	}
	if block.UpdatedAt.IsZero() {
		t.Error("AddTurn should bump UpdatedAt")
	}
}

func TestUnionKeywords(t *testing.T) {
	tests := []struct {
		name     string
		existing []string
		incoming []string
		want     []string
	}{
		{
			name:     "appends new keywords",
			existing: []string{"hiking"},
			incoming: []string{"cascades"},
			want:     []string{"hiking", "cascades"},
		},
		{
			name:     "dedupes case-insensitively",
			existing: []string{"hiking"},
			incoming: []string{"Hiking", "HIKING"},
			want:     []string{"hiking"},
		},
		{
			name:     "skips blanks",
			existing: nil,
			incoming: []string{"", "  ", "real"},
			want:     []string{"real"},
		},
		{
			name:     "preserves insertion order",
			existing: []string{"b", "a"},
			incoming: []string{"c", "a"},
			want:     []string{"b", "a", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			block := BridgeBlock{Keywords: tt.existing}
			block.UnionKeywords(tt.incoming)
			if len(block.Keywords) != len(tt.want) {
				t.Fatalf("got %v, want %v", block.Keywords, tt.want)
			}
			for i := range tt.want {
				if block.Keywords[i] != tt.want[i] {
					t.Errorf("position %d: got %q, want %q", i, block.Keywords[i], tt.want[i])
				}
			}
		})
	}
}

func TestLedgerView(t *testing.T) {
	block := BridgeBlock{
		BlockID:    "bb_1",
		TopicLabel: "Topic",
		Keywords:   []string{"k1"},
		Summary:    "sum",
		Status:     StatusPaused,
		Turns:      []Turn{{TurnID: "t1"}},
	}

	view := block.LedgerView()
	if view.BlockID != "bb_1" || view.TopicLabel != "Topic" || view.Status != StatusPaused {
		t.Errorf("unexpected view %+v", view)
	}
	if view.Summary != "sum" || len(view.Keywords) != 1 {
		t.Errorf("view should carry summary and keywords: %+v", view)
	}
}
