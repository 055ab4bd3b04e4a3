package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_FileEnvAndDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "voicerag.yaml")
	content := `
endpoint: https://file.example
deployment: rt-file
api_key: file-key
voice: alloy
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("VOICERAG_ENDPOINT", "https://env.example")
	t.Setenv("VOICERAG_VOICE", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Endpoint != "https://env.example" {
		t.Errorf("Endpoint = %q; env must win over file", cfg.Endpoint)
	}
	if cfg.Deployment != "rt-file" || cfg.APIKey != "file-key" {
		t.Errorf("file values lost: %+v", cfg)
	}
	if cfg.Voice != "alloy" {
		t.Errorf("Voice = %q; empty env var must not clear the file value", cfg.Voice)
	}
	if cfg.ListenAddr != DefaultListenAddr || cfg.IndexDir != DefaultIndexDir {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("VOICERAG_ENDPOINT", "https://env.example")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Endpoint != "https://env.example" {
		t.Errorf("Endpoint = %q", cfg.Endpoint)
	}
}

func TestLoad_MissingFileErrors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("an explicitly named missing file must error")
	}
}

func TestValidateServe(t *testing.T) {
	cfg := &Config{Endpoint: "https://e", Deployment: "d", APIKey: "k"}
	if err := cfg.ValidateServe(); err != nil {
		t.Errorf("complete config rejected: %v", err)
	}
	for _, clear := range []func(*Config){
		func(c *Config) { c.Endpoint = "" },
		func(c *Config) { c.Deployment = "" },
		func(c *Config) { c.APIKey = "" },
	} {
		c := *cfg
		clear(&c)
		if err := c.ValidateServe(); err == nil {
			t.Errorf("incomplete config %+v accepted", c)
		}
	}
}
