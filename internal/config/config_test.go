// ABOUTME: Tests for environment-based configuration loading
// ABOUTME: Defaults apply when variables are unset; bad values fail validation
package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"HMLR_LLM_MODEL", "HMLR_EMBEDDING_MODEL", "HMLR_EMBEDDING_DIMENSIONS",
		"HMLR_SIMILARITY_THRESHOLD", "HMLR_RETRIEVAL_TOP_K", "HMLR_DOSSIER_TOP_K",
		"HMLR_VOTING_TOP_K", "HMLR_TOKEN_BUDGET", "HMLR_DB_PATH",
		"HMLR_USER_PROFILE_PATH", "OPENAI_TIMEOUT", "OPENAI_MAX_RETRIES",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.LLMModel != "gpt-4o-mini" {
		t.Errorf("default LLM model wrong: %s", cfg.LLMModel)
	}
	if cfg.EmbeddingModel != "text-embedding-3-small" {
		t.Errorf("default embedding model wrong: %s", cfg.EmbeddingModel)
	}
	if cfg.SimilarityThreshold != 0.4 {
		t.Errorf("default threshold wrong: %f", cfg.SimilarityThreshold)
	}
	if cfg.RetrievalTopK != 5 || cfg.DossierTopK != 3 || cfg.VotingTopK != 10 {
		t.Errorf("default top-k wrong: %d/%d/%d", cfg.RetrievalTopK, cfg.DossierTopK, cfg.VotingTopK)
	}
	if cfg.TokenBudget != 3000 {
		t.Errorf("default token budget wrong: %d", cfg.TokenBudget)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("default timeout wrong: %s", cfg.Timeout)
	}
	if cfg.DBPath == "" || cfg.UserProfilePath == "" {
		t.Error("paths must have defaults")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("HMLR_SIMILARITY_THRESHOLD", "0.6")
	t.Setenv("HMLR_RETRIEVAL_TOP_K", "8")
	t.Setenv("HMLR_DB_PATH", "/tmp/custom.db")
	t.Setenv("OPENAI_TIMEOUT", "10s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SimilarityThreshold != 0.6 {
		t.Errorf("threshold override ignored: %f", cfg.SimilarityThreshold)
	}
	if cfg.RetrievalTopK != 8 {
		t.Errorf("top-k override ignored: %d", cfg.RetrievalTopK)
	}
	if cfg.DBPath != "/tmp/custom.db" {
		t.Errorf("db path override ignored: %s", cfg.DBPath)
	}
	if cfg.Timeout != 10*time.Second {
		t.Errorf("timeout override ignored: %s", cfg.Timeout)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"threshold above 1", "HMLR_SIMILARITY_THRESHOLD", "1.5"},
		{"negative threshold", "HMLR_SIMILARITY_THRESHOLD", "-0.1"},
		{"zero top-k", "HMLR_RETRIEVAL_TOP_K", "0"},
		{"retries out of range", "OPENAI_MAX_RETRIES", "99"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("expected validation error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
