package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if cfg.Thresholds.Execute != 0.7 {
		t.Errorf("execute threshold = %v, want 0.7", cfg.Thresholds.Execute)
	}
	if cfg.Thresholds.FallbackConfirm != 0.6 {
		t.Errorf("fallback confirm = %v, want 0.6", cfg.Thresholds.FallbackConfirm)
	}
	if cfg.Classify.Timeout != 10*time.Second {
		t.Errorf("classify timeout = %v, want 10s", cfg.Classify.Timeout)
	}
}

func TestValidateRejectsBadThresholds(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"execute above one", func(c *Config) { c.Thresholds.Execute = 1.5 }},
		{"execute zero", func(c *Config) { c.Thresholds.Execute = 0 }},
		{"confirm floor above execute", func(c *Config) { c.Thresholds.ConfirmFloor = 0.9 }},
		{"negative uncertain", func(c *Config) { c.Thresholds.Uncertain = -0.1 }},
		{"zero retention", func(c *Config) { c.Conversation.Retention = 0 }},
		{"zero timeout", func(c *Config) { c.Classify.Timeout = 0 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Thresholds.Execute != DefaultConfig().Thresholds.Execute {
		t.Error("missing config file should yield pure defaults")
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	ws := t.TempDir()
	dir := filepath.Join(ws, ".dirigent")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	yaml := "thresholds:\n  execute: 0.8\n  confirm_floor: 0.6\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(ws)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Thresholds.Execute != 0.8 {
		t.Errorf("execute = %v, want 0.8 from file", cfg.Thresholds.Execute)
	}
	if cfg.Thresholds.ConfirmFloor != 0.6 {
		t.Errorf("confirm_floor = %v, want 0.6 from file", cfg.Thresholds.ConfirmFloor)
	}
	// Untouched sections keep defaults.
	if cfg.Conversation.Retention != 20 {
		t.Errorf("retention = %d, want default 20", cfg.Conversation.Retention)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	ws := t.TempDir()
	dir := filepath.Join(ws, ".dirigent")
	os.MkdirAll(dir, 0755)
	os.WriteFile(filepath.Join(dir, "config.yaml"),
		[]byte("thresholds:\n  execute: 3.0\n"), 0644)

	if _, err := Load(ws); err == nil {
		t.Error("out-of-range threshold in file must fail Load")
	}
}

func TestEnvKeyOverlay(t *testing.T) {
	t.Setenv("DIRIGENT_API_KEY", "from-env")
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Model.APIKey != "from-env" {
		t.Errorf("api key = %q, want env overlay", cfg.Model.APIKey)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	ws := t.TempDir()
	cfg := DefaultConfig()
	cfg.Thresholds.Execute = 0.75

	if err := cfg.Save(ws); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(ws)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.Thresholds.Execute != 0.75 {
		t.Errorf("execute = %v after round trip, want 0.75", loaded.Thresholds.Execute)
	}
}
