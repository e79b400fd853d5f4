package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Prefix is prepended to every variable name, e.g. AUTODEV_REPO_PATH.
const Prefix = "autodev"

// Supported oracle providers.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Config holds all session configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"production"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Oracle
	Provider        string        `envconfig:"PROVIDER" default:"anthropic"`
	AnthropicAPIKey string        `envconfig:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL   string        `envconfig:"OPENAI_BASE_URL"` // any OpenAI-compatible endpoint
	Model           string        `envconfig:"MODEL"`           // provider default when empty
	MaxTokens       int           `envconfig:"MAX_TOKENS" default:"8192"`
	OracleTimeout   time.Duration `envconfig:"ORACLE_TIMEOUT" default:"5m"`
	OracleRetries   int           `envconfig:"ORACLE_RETRIES" default:"3"`

	// Session input
	RepoPath           string `envconfig:"REPO_PATH"`
	Requirement        string `envconfig:"REQUIREMENT"`
	ProjectTitle       string `envconfig:"PROJECT_TITLE"`
	ProjectDescription string `envconfig:"PROJECT_DESCRIPTION"`
	SkipClarify        bool   `envconfig:"SKIP_CLARIFY" default:"false"`

	// Loops
	TestCommand        string        `envconfig:"TEST_COMMAND"`
	TestTimeout        time.Duration `envconfig:"TEST_TIMEOUT" default:"10m"`
	GitTimeout         time.Duration `envconfig:"GIT_TIMEOUT" default:"30s"`
	MaxIterations      int           `envconfig:"MAX_ITERATIONS" default:"5"`
	DiscoveryMaxRounds int           `envconfig:"DISCOVERY_MAX_ROUNDS" default:"8"`
	ClarifyMaxRounds   int           `envconfig:"CLARIFY_MAX_ROUNDS" default:"10"`

	// Output
	PlanFile      string `envconfig:"PLAN_FILE"`
	StatusAddr    string `envconfig:"STATUS_ADDR"` // status server disabled when empty
	CommitMessage string `envconfig:"COMMIT_MESSAGE"`
}

// IsDevelopment reports whether human-readable logs are wanted.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// StatusEnabled returns true if the status server should run.
func (c *Config) StatusEnabled() bool {
	return c.StatusAddr != ""
}

// Validate checks the provider credentials and loop caps.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Provider) {
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			errs = append(errs, fmt.Errorf("ANTHROPIC_API_KEY is required for provider %q", c.Provider))
		}
	case ProviderOpenAI:
		// Local OpenAI-compatible servers often need no key.
		if c.OpenAIAPIKey == "" && c.OpenAIBaseURL == "" {
			errs = append(errs, fmt.Errorf("OPENAI_API_KEY or OPENAI_BASE_URL is required for provider %q", c.Provider))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}

	for name, v := range map[string]int{
		"MAX_ITERATIONS":       c.MaxIterations,
		"DISCOVERY_MAX_ROUNDS": c.DiscoveryMaxRounds,
		"CLARIFY_MAX_ROUNDS":   c.ClarifyMaxRounds,
		"MAX_TOKENS":           c.MaxTokens,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	if c.OracleRetries < 0 {
		errs = append(errs, fmt.Errorf("ORACLE_RETRIES must not be negative, got %d", c.OracleRetries))
	}
	if c.OracleTimeout <= 0 {
		errs = append(errs, fmt.Errorf("ORACLE_TIMEOUT must be positive"))
	}
	return errors.Join(errs...)
}

// Load reads configuration from AUTODEV_* environment variables.
func Load() (*Config, error) {
	return LoadWithPrefix(Prefix)
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	return &cfg, nil
}
