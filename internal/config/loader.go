package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider role.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"narrator":    {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"illustrator": {"openai"},
	"embeddings":  {"openai", "ollama"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TLS != nil {
		if cfg.Server.TLS.CertFile == "" || cfg.Server.TLS.KeyFile == "" {
			errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
		}
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("narrator", cfg.Providers.Narrator.Name)
	validateProviderName("illustrator", cfg.Providers.Illustrator.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	for i, fb := range cfg.Providers.NarratorFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.narrator_fallbacks[%d].name is required", i))
			continue
		}
		validateProviderName("narrator", fb.Name)
	}
	if len(cfg.Providers.NarratorFallbacks) > 0 && cfg.Providers.Narrator.Name == "" {
		errs = append(errs, errors.New("providers.narrator_fallbacks requires providers.narrator to be configured"))
	}

	// Provider availability warnings
	if cfg.Providers.Narrator.Name == "" {
		slog.Warn("no narrator provider configured; actions will only receive fallback responses")
	}
	if cfg.Providers.Illustrator.Name == "" {
		slog.Warn("providers.illustrator is empty; puzzle completions will be recorded without images")
	}

	// Embeddings ↔ storage dimensions
	if cfg.Providers.Embeddings.Name != "" && cfg.Storage.EmbeddingDimensions <= 0 {
		slog.Warn("providers.embeddings is configured but storage.embedding_dimensions is not set; using the provider's model default")
	}

	// Storage availability
	if cfg.Storage.PostgresDSN == "" {
		slog.Warn("storage.postgres_dsn is empty; completion gallery and history recall will not be available")
	}
	if cfg.Storage.RetentionDays < 0 {
		errs = append(errs, fmt.Errorf("storage.retention_days %d must not be negative", cfg.Storage.RetentionDays))
	}

	// Game tuning
	if cfg.Game.MaxActionLength < 0 {
		errs = append(errs, fmt.Errorf("game.max_action_length %d must not be negative", cfg.Game.MaxActionLength))
	}
	if cfg.Game.MinKeywordOverlap < 0 {
		errs = append(errs, fmt.Errorf("game.min_keyword_overlap %d must not be negative", cfg.Game.MinKeywordOverlap))
	}
	if cfg.Game.JaccardThreshold < 0 || cfg.Game.JaccardThreshold > 1 {
		errs = append(errs, fmt.Errorf("game.jaccard_threshold %.2f is out of range [0, 1]", cfg.Game.JaccardThreshold))
	}
	if cfg.Game.HistoryTail < 0 {
		errs = append(errs, fmt.Errorf("game.history_tail %d must not be negative", cfg.Game.HistoryTail))
	}
	if cfg.Game.RecallTopK < 0 {
		errs = append(errs, fmt.Errorf("game.recall_top_k %d must not be negative", cfg.Game.RecallTopK))
	}
	if cfg.Game.NarratorTimeout < 0 {
		errs = append(errs, fmt.Errorf("game.narrator_timeout %s must not be negative", cfg.Game.NarratorTimeout))
	}
	if cfg.Game.WorldFile != "" && cfg.Game.WorldConcept != "" {
		slog.Warn("game.world_file is set; game.world_concept is ignored for static worlds")
	}
	if cfg.Game.SafetyEnabled && cfg.Providers.Narrator.Name == "" {
		errs = append(errs, errors.New("game.safety_enabled requires providers.narrator to be configured"))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given role.
func validateProviderName(role, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[role]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"role", role,
		"name", name,
		"known", known,
	)
}
