// ABOUTME: Tests for the user profile glossary document
// ABOUTME: Merge replaces constraints by key and dedupes list entries
package models

import (
	"path/filepath"
	"testing"
)

func TestLoadUserProfileMissingFile(t *testing.T) {
	profile, err := LoadUserProfile(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if profile == nil {
		t.Fatal("expected empty profile")
	}
	if len(profile.Glossary.Constraints) != 0 {
		t.Error("empty profile should have no constraints")
	}
}

func TestProfileSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile", "user_profile.json")

	profile := &UserProfile{
		Glossary: Glossary{
			Constraints: []Constraint{{
				Key:         "allergy_peanuts",
				Type:        "allergy",
				Description: "Severe peanut allergy.",
				Severity:    SeverityHard,
			}},
			Preferences: []string{"concise answers"},
			Identities:  []string{"backend engineer"},
		},
	}
	if err := profile.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := LoadUserProfile(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.Glossary.Constraints) != 1 {
		t.Fatalf("constraints lost in round trip")
	}
	c := loaded.Glossary.Constraints[0]
	if c.Key != "allergy_peanuts" || c.Severity != SeverityHard {
		t.Errorf("unexpected constraint %+v", c)
	}
	if loaded.LastUpdated.IsZero() {
		t.Error("Save should stamp LastUpdated")
	}
}

func TestMergeReplacesConstraintByKey(t *testing.T) {
	profile := &UserProfile{
		Glossary: Glossary{
			Constraints: []Constraint{{Key: "diet_vegetarian", Description: "old", Severity: SeveritySoft}},
		},
	}

	profile.Merge(&ProfileUpdate{
		Constraints: []Constraint{{Key: "diet_vegetarian", Description: "new", Severity: SeverityHard}},
	})

	if len(profile.Glossary.Constraints) != 1 {
		t.Fatalf("expected replacement, got %d constraints", len(profile.Glossary.Constraints))
	}
	if profile.Glossary.Constraints[0].Description != "new" {
		t.Errorf("constraint not replaced: %+v", profile.Glossary.Constraints[0])
	}
}

func TestMergeDedupesListEntries(t *testing.T) {
	profile := &UserProfile{
		Glossary: Glossary{Preferences: []string{"dark mode"}},
	}

	profile.Merge(&ProfileUpdate{
		Preferences: []string{"dark mode", "tabs over spaces"},
		Identities:  []string{"Alice", "Alice"},
	})

	if len(profile.Glossary.Preferences) != 2 {
		t.Errorf("preferences should dedupe: %v", profile.Glossary.Preferences)
	}
	if len(profile.Glossary.Identities) != 1 {
		t.Errorf("identities should dedupe: %v", profile.Glossary.Identities)
	}
}

func TestMergeSkipsEmptyKeys(t *testing.T) {
	profile := &UserProfile{}
	profile.Merge(&ProfileUpdate{
		Constraints: []Constraint{{Key: "", Description: "keyless"}},
		Preferences: []string{""},
	})

	if len(profile.Glossary.Constraints) != 0 || len(profile.Glossary.Preferences) != 0 {
		t.Errorf("empty entries must be skipped: %+v", profile.Glossary)
	}
}

func TestProfileUpdateIsEmpty(t *testing.T) {
	empty := &ProfileUpdate{}
	if !empty.IsEmpty() {
		t.Error("zero update should be empty")
	}
	full := &ProfileUpdate{Preferences: []string{"x"}}
	if full.IsEmpty() {
		t.Error("update with content is not empty")
	}
}
