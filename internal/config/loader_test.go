package config_test

import (
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/sagewright/colossi/internal/config"
)

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "colossi.yaml")
	yaml := `
server:
  listen_addr: ":9000"
providers:
  narrator:
    name: ollama
    model: llama3
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.ListenAddr != ":9000" {
		t.Errorf("server.listen_addr: got %q, want %q", cfg.Server.ListenAddr, ":9000")
	}
	if cfg.Providers.Narrator.Model != "llama3" {
		t.Errorf("providers.narrator.model: got %q", cfg.Providers.Narrator.Model)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := config.Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file, got nil")
	}
}

func TestValidate_MultipleErrors(t *testing.T) {
	t.Parallel()
	yaml := `
server:
  log_level: loud
game:
  max_action_length: -1
  jaccard_threshold: 2.0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err == nil {
		t.Fatal("expected errors, got nil")
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "log_level") {
		t.Errorf("error should mention log_level, got: %v", err)
	}
	if !strings.Contains(errStr, "max_action_length") {
		t.Errorf("error should mention max_action_length, got: %v", err)
	}
	if !strings.Contains(errStr, "jaccard_threshold") {
		t.Errorf("error should mention jaccard_threshold, got: %v", err)
	}
}

func TestValidate_NarratorOnlyIsValid(t *testing.T) {
	t.Parallel()
	yaml := `
providers:
  narrator:
    name: anthropic
    model: claude-sonnet-4-5
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidProviderNames(t *testing.T) {
	t.Parallel()
	// Sanity-check that the map is populated.
	if len(config.ValidProviderNames) == 0 {
		t.Fatal("ValidProviderNames should not be empty")
	}
	narrators := config.ValidProviderNames["narrator"]
	if len(narrators) == 0 {
		t.Fatal("ValidProviderNames[\"narrator\"] should not be empty")
	}
	if !slices.Contains(narrators, "openai") {
		t.Error("ValidProviderNames[\"narrator\"] should contain \"openai\"")
	}
	if !slices.Contains(config.ValidProviderNames["embeddings"], "ollama") {
		t.Error("ValidProviderNames[\"embeddings\"] should contain \"ollama\"")
	}
}

func TestValidate_NarratorFallbacks(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Providers.NarratorFallbacks = []config.ProviderEntry{{Name: "ollama"}}
	err := config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "requires providers.narrator") {
		t.Errorf("Validate() error = %v, want fallbacks-without-narrator failure", err)
	}

	cfg.Providers.Narrator.Name = "openai"
	if err := config.Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}

	cfg.Providers.NarratorFallbacks = append(cfg.Providers.NarratorFallbacks, config.ProviderEntry{})
	err = config.Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), "narrator_fallbacks[1].name") {
		t.Errorf("Validate() error = %v, want missing-name failure", err)
	}
}
