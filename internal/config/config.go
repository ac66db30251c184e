// Package config loads application configuration from environment variables.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ericfisherdev/policypanel/internal/domain/model"
)

// Default table document paths, relative to the repository root.
const (
	DefaultTableAPath = "src/assets/data/table_a__all_potentially_relevant_ai_policies_reviewed.json"
	DefaultTableBPath = "src/assets/data/table_b__all_relevant_policies.json"
)

// Config holds the application configuration loaded from environment variables.
type Config struct {
	// GitHubToken, when set, bootstraps a session at startup.
	GitHubToken  string
	Repo         model.RepoTarget
	GitHubAPIURL string
	TableAPath   string
	TableBPath   string
	DataDir      string
	ListenAddr   string
	DBPath       string
	// SecretKey is the 32-byte AES key for the persisted session; nil
	// disables session persistence.
	SecretKey    []byte
	SessionTTL   time.Duration
	MutationRate int
}

// TablePath returns the configured repository path for table.
func (c *Config) TablePath(table model.TableID) string {
	if table == model.TableB {
		return c.TableBPath
	}
	return c.TableAPath
}

// Load reads POLICYPANEL_* environment variables and returns a validated Config.
// Every variable is optional; malformed values fail fast.
func Load() (*Config, error) {
	cfg := &Config{
		GitHubToken: strings.TrimSpace(os.Getenv("POLICYPANEL_GITHUB_TOKEN")),
		Repo: model.RepoTarget{
			Owner:  lookup("POLICYPANEL_REPO_OWNER", "democratising-ai"),
			Name:   lookup("POLICYPANEL_REPO_NAME", "ai-policy-dashboard"),
			Branch: lookup("POLICYPANEL_BRANCH", "main"),
		},
		GitHubAPIURL: os.Getenv("POLICYPANEL_GITHUB_API_URL"),
		TableAPath:   lookup("POLICYPANEL_TABLE_A_PATH", DefaultTableAPath),
		TableBPath:   lookup("POLICYPANEL_TABLE_B_PATH", DefaultTableBPath),
		DataDir:      os.Getenv("POLICYPANEL_DATA_DIR"),
		ListenAddr:   lookup("POLICYPANEL_LISTEN_ADDR", "127.0.0.1:8080"),
		DBPath:       lookup("POLICYPANEL_DB_PATH", "policypanel.db"),
		SessionTTL:   8 * time.Hour,
		MutationRate: 30,
	}

	if err := cfg.Repo.Validate(); err != nil {
		return nil, fmt.Errorf("repository settings: %w", err)
	}

	if v, ok := os.LookupEnv("POLICYPANEL_SESSION_TTL"); ok {
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("POLICYPANEL_SESSION_TTL has invalid duration %q: %w", v, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("POLICYPANEL_SESSION_TTL must be positive, got %s", parsed)
		}
		cfg.SessionTTL = parsed
	}

	if v, ok := os.LookupEnv("POLICYPANEL_MUTATION_RATE"); ok {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("POLICYPANEL_MUTATION_RATE must be a positive integer, got %q", v)
		}
		cfg.MutationRate = n
	}

	if v, ok := os.LookupEnv("POLICYPANEL_SECRET_KEY"); ok && v != "" {
		key, err := hex.DecodeString(v)
		if err != nil {
			return nil, fmt.Errorf("POLICYPANEL_SECRET_KEY is not valid hex: %w", err)
		}
		if len(key) != 32 {
			return nil, fmt.Errorf("POLICYPANEL_SECRET_KEY must be 64 hex characters (32 bytes), got %d bytes", len(key))
		}
		cfg.SecretKey = key
	}

	return cfg, nil
}

func lookup(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}
