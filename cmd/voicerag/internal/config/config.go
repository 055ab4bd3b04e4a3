// Package config loads the voicerag gateway configuration: a YAML file with
// VOICERAG_* environment variables taking precedence over it.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-yaml"
)

// Config is the full gateway configuration.
type Config struct {
	// Upstream realtime service.
	Endpoint   string `yaml:"endpoint"`
	Deployment string `yaml:"deployment"`
	APIVersion string `yaml:"api_version"`
	APIKey     string `yaml:"api_key"`

	// Session overrides pushed into every client session.
	Instructions string `yaml:"instructions"`
	Voice        string `yaml:"voice"`

	// Knowledge base.
	IndexDir string `yaml:"index_dir"`

	// Embeddings; empty EmbedAPIKey disables vector search.
	EmbedAPIKey  string `yaml:"embed_api_key"`
	EmbedModel   string `yaml:"embed_model"`
	EmbedBaseURL string `yaml:"embed_base_url"`

	// One-shot /query answering; empty ChatAPIKey degrades to snippets.
	ChatAPIKey  string `yaml:"chat_api_key"`
	ChatModel   string `yaml:"chat_model"`
	ChatBaseURL string `yaml:"chat_base_url"`

	// HTTP serving.
	ListenAddr string `yaml:"listen_addr"`
	StaticDir  string `yaml:"static_dir"`
}

// Defaults applied when neither file nor environment sets a value.
const (
	DefaultListenAddr = ":8765"
	DefaultIndexDir   = "data/index"
)

// Load reads the YAML file at path (optional, pass "" to skip) and applies
// environment overrides and defaults.
func Load(path string) (*Config, error) {
	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return &cfg, nil
}

// applyEnv overrides fields from VOICERAG_* variables. An empty variable is
// treated as unset.
func (c *Config) applyEnv() {
	for env, field := range map[string]*string{
		"VOICERAG_ENDPOINT":       &c.Endpoint,
		"VOICERAG_DEPLOYMENT":     &c.Deployment,
		"VOICERAG_API_VERSION":    &c.APIVersion,
		"VOICERAG_API_KEY":        &c.APIKey,
		"VOICERAG_INSTRUCTIONS":   &c.Instructions,
		"VOICERAG_VOICE":          &c.Voice,
		"VOICERAG_INDEX_DIR":      &c.IndexDir,
		"VOICERAG_EMBED_API_KEY":  &c.EmbedAPIKey,
		"VOICERAG_EMBED_MODEL":    &c.EmbedModel,
		"VOICERAG_EMBED_BASE_URL": &c.EmbedBaseURL,
		"VOICERAG_CHAT_API_KEY":   &c.ChatAPIKey,
		"VOICERAG_CHAT_MODEL":     &c.ChatModel,
		"VOICERAG_CHAT_BASE_URL":  &c.ChatBaseURL,
		"VOICERAG_LISTEN_ADDR":    &c.ListenAddr,
		"VOICERAG_STATIC_DIR":     &c.StaticDir,
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*field = v
		}
	}
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.IndexDir == "" {
		c.IndexDir = DefaultIndexDir
	}
}

// ValidateServe checks the fields the serve command cannot run without.
func (c *Config) ValidateServe() error {
	if c.Endpoint == "" {
		return fmt.Errorf("config: endpoint is required (VOICERAG_ENDPOINT)")
	}
	if c.Deployment == "" {
		return fmt.Errorf("config: deployment is required (VOICERAG_DEPLOYMENT)")
	}
	if c.APIKey == "" {
		return fmt.Errorf("config: api_key is required (VOICERAG_API_KEY)")
	}
	return nil
}
