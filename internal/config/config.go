// ABOUTME: Centralized configuration for the HMLR memory system
// ABOUTME: Loads from environment variables with validation and defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/adrg/xdg"
)

// Config holds all configuration for the memory system
type Config struct {
	// OpenAI settings
	OpenAIKey      string
	LLMModel       string
	EmbeddingModel string
	EmbeddingDim   int
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration

	// Retrieval settings
	SimilarityThreshold float64
	RetrievalTopK       int
	DossierTopK         int
	VotingTopK          int
	TokenBudget         int

	// Paths
	DBPath          string
	UserProfilePath string
}

// DefaultDataDir returns the XDG data directory for HMLR state.
func DefaultDataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		dataHome = xdg.DataHome
	}
	return filepath.Join(dataHome, "hmlr")
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	dataDir := DefaultDataDir()

	cfg := &Config{
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		LLMModel:       getEnv("HMLR_LLM_MODEL", "gpt-4o-mini"),
		EmbeddingModel: getEnv("HMLR_EMBEDDING_MODEL", "text-embedding-3-small"),
		EmbeddingDim:   getEnvInt("HMLR_EMBEDDING_DIMENSIONS", 1536),
		Timeout:        getEnvDuration("OPENAI_TIMEOUT", 30*time.Second),
		MaxRetries:     getEnvInt("OPENAI_MAX_RETRIES", 1),
		RetryDelay:     getEnvDuration("OPENAI_RETRY_DELAY", 2*time.Second),

		SimilarityThreshold: getEnvFloat("HMLR_SIMILARITY_THRESHOLD", 0.4),
		RetrievalTopK:       getEnvInt("HMLR_RETRIEVAL_TOP_K", 5),
		DossierTopK:         getEnvInt("HMLR_DOSSIER_TOP_K", 3),
		VotingTopK:          getEnvInt("HMLR_VOTING_TOP_K", 10),
		TokenBudget:         getEnvInt("HMLR_TOKEN_BUDGET", 3000),

		DBPath:          getEnv("HMLR_DB_PATH", filepath.Join(dataDir, "hmlr.db")),
		UserProfilePath: getEnv("HMLR_USER_PROFILE_PATH", filepath.Join(dataDir, "user_profile.json")),
	}

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("HMLR_SIMILARITY_THRESHOLD must be 0-1, got %f", c.SimilarityThreshold)
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("OPENAI_MAX_RETRIES must be 0-10, got %d", c.MaxRetries)
	}
	if c.RetrievalTopK <= 0 || c.DossierTopK <= 0 || c.VotingTopK <= 0 {
		return fmt.Errorf("retrieval top-k values must be positive")
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("HMLR_EMBEDDING_DIMENSIONS must be positive, got %d", c.EmbeddingDim)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
