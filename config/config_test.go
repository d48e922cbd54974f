package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.ExecutionMode != "gen3" {
		t.Errorf("expected execution_mode gen3, got %s", cfg.ExecutionMode)
	}
	if cfg.Review.ClauseRetryLimit != 2 {
		t.Errorf("expected clause_retry_limit 2, got %d", cfg.Review.ClauseRetryLimit)
	}
	if cfg.Review.RejectRetryLimit != 1 {
		t.Errorf("expected reject_retry_limit 1, got %d", cfg.Review.RejectRetryLimit)
	}
	if cfg.Review.PerSkillTimeoutLocalS != 60 {
		t.Errorf("expected per_skill_timeout_local_s 60, got %d", cfg.Review.PerSkillTimeoutLocalS)
	}
	if cfg.Review.PerSkillTimeoutRemoteS != 300 {
		t.Errorf("expected per_skill_timeout_remote_s 300, got %d", cfg.Review.PerSkillTimeoutRemoteS)
	}
	if !cfg.NATS.Embedded {
		t.Error("expected embedded NATS by default")
	}
	if cfg.RemoteSkill.Enabled {
		t.Error("expected remote skill service disabled by default")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{name: "valid default config", modify: func(c *Config) {}, wantErr: false},
		{name: "unsupported execution mode", modify: func(c *Config) { c.ExecutionMode = "legacy" }, wantErr: true},
		{name: "remote enabled without base url", modify: func(c *Config) { c.RemoteSkill.Enabled = true }, wantErr: true},
		{name: "negative clause retry limit", modify: func(c *Config) { c.Review.ClauseRetryLimit = -1 }, wantErr: true},
		{name: "negative reject retry limit", modify: func(c *Config) { c.Review.RejectRetryLimit = -1 }, wantErr: true},
		{name: "zero local skill timeout", modify: func(c *Config) { c.Review.PerSkillTimeoutLocalS = 0 }, wantErr: true},
		{name: "zero remote skill timeout", modify: func(c *Config) { c.Review.PerSkillTimeoutRemoteS = 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
execution_mode: gen3
remote_skill_service:
  enabled: true
  base_url: "https://workflows.internal/api"
  timeout_s: 120
embedding_service:
  provider: "openai"
  dimension: 3072
review:
  clause_retry_limit: 3
nats:
  url: "nats://test:4222"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if !cfg.RemoteSkill.Enabled {
		t.Error("expected remote skill service enabled")
	}
	if cfg.RemoteSkill.BaseURL != "https://workflows.internal/api" {
		t.Errorf("expected base url, got %s", cfg.RemoteSkill.BaseURL)
	}
	if cfg.RemoteSkill.TimeoutS != 120 {
		t.Errorf("expected timeout_s 120, got %d", cfg.RemoteSkill.TimeoutS)
	}
	if cfg.Embedding.Dimension != 3072 {
		t.Errorf("expected dimension 3072, got %d", cfg.Embedding.Dimension)
	}
	if cfg.Review.ClauseRetryLimit != 3 {
		t.Errorf("expected clause_retry_limit 3, got %d", cfg.Review.ClauseRetryLimit)
	}
	// reject_retry_limit was omitted from the file; the default should survive.
	if cfg.Review.RejectRetryLimit != 1 {
		t.Errorf("expected reject_retry_limit to keep default 1, got %d", cfg.Review.RejectRetryLimit)
	}
	if cfg.NATS.URL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.NATS.URL)
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		RemoteSkill: RemoteSkillConfig{
			BaseURL: "https://override.internal/api",
		},
		Review: ReviewConfig{
			ClauseRetryLimit: 5,
		},
	}

	base.Merge(override)

	if base.RemoteSkill.BaseURL != "https://override.internal/api" {
		t.Errorf("expected base url override, got %s", base.RemoteSkill.BaseURL)
	}
	// TimeoutS should remain from base since override didn't set it.
	if base.RemoteSkill.TimeoutS != 300 {
		t.Errorf("expected timeout_s to remain default 300, got %d", base.RemoteSkill.TimeoutS)
	}
	if base.Review.ClauseRetryLimit != 5 {
		t.Errorf("expected clause_retry_limit 5, got %d", base.Review.ClauseRetryLimit)
	}
	if base.Review.RejectRetryLimit != 1 {
		t.Errorf("expected reject_retry_limit to remain default 1, got %d", base.Review.RejectRetryLimit)
	}
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Review.ClauseRetryLimit = 7

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Review.ClauseRetryLimit != 7 {
		t.Errorf("expected clause_retry_limit 7, got %d", loaded.Review.ClauseRetryLimit)
	}
}
