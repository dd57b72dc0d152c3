// Package config holds all dirigent configuration, including the centralized
// confidence thresholds that gate plan execution. Thresholds live here and
// nowhere else; call sites must not hardcode them.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all dirigent configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Model collaborator configuration
	Model ModelConfig `yaml:"model"`

	// Intent classification tuning
	Classify ClassifyConfig `yaml:"classify"`

	// Confidence thresholds for intent routing
	Thresholds Thresholds `yaml:"thresholds"`

	// Conversation retention
	Conversation ConversationConfig `yaml:"conversation"`

	// Learning-state persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ModelConfig configures the AI-backed collaborator.
type ModelConfig struct {
	Provider string `yaml:"provider"` // genai
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// ClassifyConfig tunes the intent classifier.
type ClassifyConfig struct {
	Timeout        time.Duration `yaml:"timeout"`    // per-call model deadline
	CacheTTL       time.Duration `yaml:"cache_ttl"`  // classification result cache
	CacheSize      int           `yaml:"cache_size"` // LRU entries
	DetectSarcasm  bool          `yaml:"detect_sarcasm"`
	AnalyzeUrgency bool          `yaml:"analyze_urgency"`
}

// Thresholds are the confidence bounds of the routing table. Execute uses an
// exclusive lower bound; ConfirmFloor..Execute is the clarification band;
// Uncertain is the exclusive floor below which a menu of options is offered.
type Thresholds struct {
	Execute          float64 `yaml:"execute"`           // confirm_execution above this runs the plan
	ConfirmFloor     float64 `yaml:"confirm_floor"`     // lower edge of the clarification band
	Uncertain        float64 `yaml:"uncertain"`         // uncertain below this offers options
	FallbackConfirm  float64 `yaml:"fallback_confirm"`  // fixed confidence of the keyword fallback
	FallbackUnmapped float64 `yaml:"fallback_unmapped"` // fallback confidence when no keyword matches
}

// ConversationConfig bounds the rolling history.
type ConversationConfig struct {
	Retention  int `yaml:"retention"`   // messages kept in the window
	ContextK   int `yaml:"context_k"`   // messages passed to classification
	MaxArchive int `yaml:"max_archive"` // archived plans kept for learning
}

// StoreConfig configures learning-state persistence.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures the categorized file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Name:    "dirigent",
		Version: "0.3.0",
		Model: ModelConfig{
			Provider: "genai",
			Model:    "gemini-2.5-flash",
		},
		Classify: ClassifyConfig{
			Timeout:        10 * time.Second,
			CacheTTL:       30 * time.Second,
			CacheSize:      128,
			DetectSarcasm:  true,
			AnalyzeUrgency: true,
		},
		Thresholds: Thresholds{
			Execute:          0.7,
			ConfirmFloor:     0.5,
			Uncertain:        0.4,
			FallbackConfirm:  0.6,
			FallbackUnmapped: 0.5,
		},
		Conversation: ConversationConfig{
			Retention:  20,
			ContextK:   5,
			MaxArchive: 10,
		},
		Store: StoreConfig{
			DatabasePath: filepath.Join(".dirigent", "learning.db"),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks threshold ordering and retention bounds.
func (c *Config) Validate() error {
	t := c.Thresholds
	if t.Execute <= 0 || t.Execute > 1 {
		return fmt.Errorf("thresholds.execute %v out of (0,1]", t.Execute)
	}
	if t.ConfirmFloor < 0 || t.ConfirmFloor > t.Execute {
		return fmt.Errorf("thresholds.confirm_floor %v must be in [0, execute]", t.ConfirmFloor)
	}
	if t.Uncertain < 0 || t.Uncertain > 1 {
		return fmt.Errorf("thresholds.uncertain %v out of [0,1]", t.Uncertain)
	}
	if c.Conversation.Retention <= 0 {
		return fmt.Errorf("conversation.retention must be positive")
	}
	if c.Classify.Timeout <= 0 {
		return fmt.Errorf("classify.timeout must be positive")
	}
	return nil
}

// Path returns the config file location under the workspace.
func Path(workspace string) string {
	return filepath.Join(workspace, ".dirigent", "config.yaml")
}

// Load reads the config from the workspace, applying defaults for anything
// the file omits. A missing file yields pure defaults.
func Load(workspace string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnv()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Save writes the config to the workspace, creating the dotdir if needed.
func (c *Config) Save(workspace string) error {
	path := Path(workspace)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// applyEnv overlays environment variables onto file values.
func (c *Config) applyEnv() {
	if key := os.Getenv("DIRIGENT_API_KEY"); key != "" {
		c.Model.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" && c.Model.APIKey == "" {
		c.Model.APIKey = key
	}
}
