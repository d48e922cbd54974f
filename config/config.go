// Package config provides configuration loading and management for
// clausereview.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/c360studio/semstreams/component"
	"gopkg.in/yaml.v3"
)

// configSchema is generated once at package init so the top-level
// process configuration exposes the same schema-driven surface
// semstreams components expose for themselves, even though Config
// itself isn't a component.
var configSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// ConfigSchema returns the schema generated for Config.
func ConfigSchema() component.ConfigSchema {
	return configSchema
}

// Config represents the complete clausereview configuration.
type Config struct {
	ExecutionMode string              `yaml:"execution_mode" schema:"type:string,description:Execution engine generation; only gen3 is supported,category:basic,default:gen3"`
	RemoteSkill   RemoteSkillConfig   `yaml:"remote_skill_service"`
	Embedding     EmbeddingConfig     `yaml:"embedding_service"`
	Review        ReviewConfig        `yaml:"review"`
	DomainPlugins DomainPluginsConfig `yaml:"domain_plugins"`
	NATS          NATSConfig          `yaml:"nats"`
	Redis         RedisConfig         `yaml:"redis"`
}

// RemoteSkillConfig configures the remote skill executor's workflow
// service client.
type RemoteSkillConfig struct {
	Enabled        bool   `yaml:"enabled" schema:"type:bool,description:Enable the remote skill executor,category:basic,default:false"`
	BaseURL        string `yaml:"base_url" schema:"type:string,description:Workflow service base URL,category:basic"`
	APIKey         string `yaml:"api_key" schema:"type:string,description:Workflow service API key,category:advanced"`
	TimeoutS       int    `yaml:"timeout_s" schema:"type:int,description:Overall remote skill call timeout in seconds,category:advanced,default:300,min:1"`
	PollIntervalS  int    `yaml:"poll_interval_s" schema:"type:int,description:Seconds between remote job status polls,category:advanced,default:2,min:1"`
	MaxPollAttempt int    `yaml:"max_poll_attempts" schema:"type:int,description:Maximum poll attempts before timing out a remote job,category:advanced,default:150,min:1"`
}

// EmbeddingConfig configures the EmbeddingModel collaborator used by
// semantic-search-style skills.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider" schema:"type:string,description:Embedding provider name,category:basic"`
	APIKey    string `yaml:"api_key" schema:"type:string,description:Embedding provider API key,category:advanced"`
	Dimension int    `yaml:"dimension" schema:"type:int,description:Embedding vector dimension,category:basic,default:1536,min:1"`
}

// ReviewConfig configures the review state machine's retry caps and
// per-skill timeouts.
type ReviewConfig struct {
	ClauseRetryLimit       int `yaml:"clause_retry_limit" schema:"type:int,description:Maximum clause_analyze retries before best-effort exhaustion,category:basic,default:2,min:0,max:10"`
	RejectRetryLimit       int `yaml:"reject_retry_limit" schema:"type:int,description:Maximum diff regenerations after a reject decision,category:basic,default:1,min:0,max:10"`
	PerSkillTimeoutLocalS  int `yaml:"per_skill_timeout_local_s" schema:"type:int,description:Per-call timeout for in-process skills in seconds,category:advanced,default:60,min:1"`
	PerSkillTimeoutRemoteS int `yaml:"per_skill_timeout_remote_s" schema:"type:int,description:Per-call timeout for remote skills in seconds,category:advanced,default:300,min:1"`
}

// DomainPluginsConfig locates the YAML descriptor files domain plugins
// load their checklists and baselines from.
type DomainPluginsConfig struct {
	// Dir holds one subdirectory per domain id, each with a checklist.yaml
	// and a baselines/ directory of clause-id-named text files.
	Dir string `yaml:"dir" schema:"type:string,description:Root directory of per-domain checklist/baseline descriptors,category:basic,default:domains"`
	// WatchForChanges enables an fsnotify watch over Dir that logs a
	// restart-required warning on descriptor edits rather than
	// hot-reloading.
	WatchForChanges bool `yaml:"watch_for_changes" schema:"type:bool,description:Warn on descriptor changes instead of hot-reloading,category:advanced,default:true"`
}

// RedisConfig configures the optional Redis cache in front of the
// document-chunk embedding store. An empty Addr disables caching and
// every chunk read goes straight to JetStream.
type RedisConfig struct {
	Addr     string `yaml:"addr" schema:"type:string,description:Redis host:port; empty disables the embedding cache,category:advanced"`
	Password string `yaml:"password" schema:"type:string,description:Redis password,category:advanced"`
	DB       int    `yaml:"db" schema:"type:int,description:Redis database number,category:advanced,default:0,min:0"`
}

// NATSConfig configures the JetStream connection backing every component
// in pkg/store and pkg/stream.
type NATSConfig struct {
	URL      string `yaml:"url" schema:"type:string,description:JetStream server URL; ignored when embedded is true,category:basic"`
	Embedded bool   `yaml:"embedded" schema:"type:bool,description:Run an in-process embedded NATS server instead of dialing URL,category:basic,default:true"`
}

// DefaultConfig returns a Config populated with every documented default.
func DefaultConfig() *Config {
	return &Config{
		ExecutionMode: "gen3",
		RemoteSkill: RemoteSkillConfig{
			Enabled:        false,
			TimeoutS:       300,
			PollIntervalS:  2,
			MaxPollAttempt: 150,
		},
		Embedding: EmbeddingConfig{
			Provider:  "",
			Dimension: 1536,
		},
		Review: ReviewConfig{
			ClauseRetryLimit:       2,
			RejectRetryLimit:       1,
			PerSkillTimeoutLocalS:  60,
			PerSkillTimeoutRemoteS: 300,
		},
		DomainPlugins: DomainPluginsConfig{
			Dir:             "domains",
			WatchForChanges: true,
		},
		NATS: NATSConfig{
			URL:      "",
			Embedded: true,
		},
		Redis: RedisConfig{},
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if c.ExecutionMode != "gen3" {
		return fmt.Errorf("execution_mode: only %q is supported, got %q", "gen3", c.ExecutionMode)
	}
	if c.RemoteSkill.Enabled && c.RemoteSkill.BaseURL == "" {
		return fmt.Errorf("remote_skill_service.base_url is required when remote_skill_service.enabled is true")
	}
	if c.Review.ClauseRetryLimit < 0 {
		return fmt.Errorf("review.clause_retry_limit must be >= 0")
	}
	if c.Review.RejectRetryLimit < 0 {
		return fmt.Errorf("review.reject_retry_limit must be >= 0")
	}
	if c.Review.PerSkillTimeoutLocalS <= 0 {
		return fmt.Errorf("review.per_skill_timeout_local_s must be > 0")
	}
	if c.Review.PerSkillTimeoutRemoteS <= 0 {
		return fmt.Errorf("review.per_skill_timeout_remote_s must be > 0")
	}
	return nil
}

// LocalSkillTimeout returns the local per-skill timeout as a duration.
func (c *Config) LocalSkillTimeout() time.Duration {
	return time.Duration(c.Review.PerSkillTimeoutLocalS) * time.Second
}

// RemoteSkillTimeout returns the remote per-skill timeout as a duration.
func (c *Config) RemoteSkillTimeout() time.Duration {
	return time.Duration(c.Review.PerSkillTimeoutRemoteS) * time.Second
}

// LoadFromFile loads configuration from a YAML file, starting from
// DefaultConfig so an omitted section keeps its default.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file.
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one; other takes precedence for
// every non-zero field.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.ExecutionMode != "" {
		c.ExecutionMode = other.ExecutionMode
	}

	if other.RemoteSkill.Enabled {
		c.RemoteSkill.Enabled = true
	}
	if other.RemoteSkill.BaseURL != "" {
		c.RemoteSkill.BaseURL = other.RemoteSkill.BaseURL
	}
	if other.RemoteSkill.APIKey != "" {
		c.RemoteSkill.APIKey = other.RemoteSkill.APIKey
	}
	if other.RemoteSkill.TimeoutS != 0 {
		c.RemoteSkill.TimeoutS = other.RemoteSkill.TimeoutS
	}
	if other.RemoteSkill.PollIntervalS != 0 {
		c.RemoteSkill.PollIntervalS = other.RemoteSkill.PollIntervalS
	}
	if other.RemoteSkill.MaxPollAttempt != 0 {
		c.RemoteSkill.MaxPollAttempt = other.RemoteSkill.MaxPollAttempt
	}

	if other.Embedding.Provider != "" {
		c.Embedding.Provider = other.Embedding.Provider
	}
	if other.Embedding.APIKey != "" {
		c.Embedding.APIKey = other.Embedding.APIKey
	}
	if other.Embedding.Dimension != 0 {
		c.Embedding.Dimension = other.Embedding.Dimension
	}

	if other.Review.ClauseRetryLimit != 0 {
		c.Review.ClauseRetryLimit = other.Review.ClauseRetryLimit
	}
	if other.Review.RejectRetryLimit != 0 {
		c.Review.RejectRetryLimit = other.Review.RejectRetryLimit
	}
	if other.Review.PerSkillTimeoutLocalS != 0 {
		c.Review.PerSkillTimeoutLocalS = other.Review.PerSkillTimeoutLocalS
	}
	if other.Review.PerSkillTimeoutRemoteS != 0 {
		c.Review.PerSkillTimeoutRemoteS = other.Review.PerSkillTimeoutRemoteS
	}

	if other.DomainPlugins.Dir != "" {
		c.DomainPlugins.Dir = other.DomainPlugins.Dir
	}

	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}

	if other.Redis.Addr != "" {
		c.Redis.Addr = other.Redis.Addr
	}
	if other.Redis.Password != "" {
		c.Redis.Password = other.Redis.Password
	}
	if other.Redis.DB != 0 {
		c.Redis.DB = other.Redis.DB
	}
}
