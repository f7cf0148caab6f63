// Command colossi is the main entry point for the Colossi adventure server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/sagewright/colossi/internal/app"
	"github.com/sagewright/colossi/internal/config"
	"github.com/sagewright/colossi/internal/observe"
	"github.com/sagewright/colossi/internal/resilience"
	"github.com/sagewright/colossi/pkg/provider/embeddings"
	ollamaembed "github.com/sagewright/colossi/pkg/provider/embeddings/ollama"
	oaembed "github.com/sagewright/colossi/pkg/provider/embeddings/openai"
	"github.com/sagewright/colossi/pkg/provider/image"
	oaimage "github.com/sagewright/colossi/pkg/provider/image/openai"
	"github.com/sagewright/colossi/pkg/provider/llm"
	"github.com/sagewright/colossi/pkg/provider/llm/anyllm"
)

// version is stamped into telemetry resources. Overridable via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "colossi: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "colossi: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger, logLevel := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("colossi starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(context.Background(), observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			slog.Warn("telemetry shutdown", "err", err)
		}
	}()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg.Storage.EmbeddingDimensions)

	// ── Instantiate providers ─────────────────────────────────────────────────
	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)

	application, err := app.New(ctx, cfg, providers)
	if err != nil {
		slog.Error("failed to initialise application", "err", err)
		return 1
	}

	// ── Config hot reload ─────────────────────────────────────────────────────
	watcher, err := config.NewWatcher(*configPath, func(diff config.ConfigDiff, _ *config.Config) {
		applyConfigChange(logLevel, application, diff)
	})
	if err != nil {
		slog.Warn("config watcher disabled", "err", err)
	} else {
		defer watcher.Stop()
	}

	slog.Info("server ready — press Ctrl+C to shut down")

	if err := application.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	slog.Info("shutdown signal received, stopping…")

	if err := application.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// builtinProviders maps provider role names to the implementations that ship
// with Colossi. Used for startup logging.
var builtinProviders = map[string][]string{
	"narrator":    {"openai", "anthropic", "ollama", "gemini", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"illustrator": {"openai"},
	"embeddings":  {"openai", "ollama"},
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the appropriate
// provider from the real implementation packages. embeddingDims, from
// storage.embedding_dimensions, is forwarded to the embeddings factories so
// the produced vectors match the recall schema; zero keeps each provider's
// model default.
func registerBuiltinProviders(reg *config.Registry, embeddingDims int) {
	// ── Narrator ──────────────────────────────────────────────────────────────
	// openai, anthropic, gemini, deepseek, mistral, groq, llamacpp, llamafile
	// all share the same pattern: optional APIKey + optional BaseURL.
	for _, providerName := range []string{
		"openai", "anthropic", "gemini",
		"deepseek", "mistral", "groq", "llamacpp", "llamafile",
	} {
		reg.RegisterNarrator(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			if entry.APIKey != "" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			p, err := anyllm.New(providerName, entry.Model, opts...)
			if err != nil {
				return nil, err
			}
			return p, nil
		})
	}

	// ollama is a local server; it uses BaseURL for the address, not an API key.
	reg.RegisterNarrator("ollama", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []anyllmlib.Option
		if entry.BaseURL != "" {
			opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
		}
		p, err := anyllm.New("ollama", entry.Model, opts...)
		if err != nil {
			return nil, err
		}
		return p, nil
	})

	// ── Illustrator ───────────────────────────────────────────────────────────

	reg.RegisterIllustrator("openai", func(entry config.ProviderEntry) (image.Provider, error) {
		var opts []oaimage.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaimage.WithBaseURL(entry.BaseURL))
		}
		if size := optString(entry.Options, "size"); size != "" {
			opts = append(opts, oaimage.WithSize(size))
		}
		return oaimage.New(entry.APIKey, entry.Model, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		if embeddingDims > 0 {
			opts = append(opts, oaembed.WithDimensions(embeddingDims))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []ollamaembed.Option
		if embeddingDims > 0 {
			opts = append(opts, ollamaembed.WithDimensions(embeddingDims))
		}
		return ollamaembed.New(entry.BaseURL, entry.Model, opts...)
	})

	// Debug log of all registered providers.
	for role, names := range builtinProviders {
		for _, name := range names {
			slog.Debug("registered provider", "role", role, "name", name)
		}
	}
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
func buildProviders(cfg *config.Config, reg *config.Registry) (*app.Providers, error) {
	ps := &app.Providers{}

	if name := cfg.Providers.Narrator.Name; name != "" {
		p, err := reg.CreateNarrator(cfg.Providers.Narrator)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "role", "narrator", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create narrator provider %q: %w", name, err)
		} else {
			ps.Narrator = p
			slog.Info("provider created", "role", "narrator", "name", name)
		}
	}

	if ps.Narrator != nil && len(cfg.Providers.NarratorFallbacks) > 0 {
		group := resilience.NewNarratorFallback(ps.Narrator, cfg.Providers.Narrator.Name, resilience.FallbackConfig{})
		for _, entry := range cfg.Providers.NarratorFallbacks {
			p, err := reg.CreateNarrator(entry)
			if err != nil {
				return nil, fmt.Errorf("create narrator fallback %q: %w", entry.Name, err)
			}
			group.AddFallback(entry.Name, p)
			slog.Info("provider created", "role", "narrator-fallback", "name", entry.Name)
		}
		ps.Narrator = group
	}

	if name := cfg.Providers.Illustrator.Name; name != "" {
		p, err := reg.CreateIllustrator(cfg.Providers.Illustrator)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "role", "illustrator", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create illustrator provider %q: %w", name, err)
		} else {
			ps.Illustrator = p
			slog.Info("provider created", "role", "illustrator", "name", name)
		}
	}

	if name := cfg.Providers.Embeddings.Name; name != "" {
		p, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Debug("provider not yet implemented — skipping", "role", "embeddings", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create embeddings provider %q: %w", name, err)
		} else {
			ps.Embeddings = p
			slog.Info("provider created", "role", "embeddings", "name", name)
		}
	}

	return ps, nil
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║         Colossi — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printProvider("Narrator", cfg.Providers.Narrator.Name, cfg.Providers.Narrator.Model)
	printProvider("Illustrator", cfg.Providers.Illustrator.Name, cfg.Providers.Illustrator.Model)
	printProvider("Embeddings", cfg.Providers.Embeddings.Name, cfg.Providers.Embeddings.Model)
	if cfg.Game.WorldFile != "" {
		fmt.Printf("║  World           : %-19s ║\n", "file")
	} else {
		fmt.Printf("║  World           : %-19s ║\n", "generated")
	}
	if cfg.Storage.PostgresDSN != "" {
		fmt.Printf("║  Storage         : %-19s ║\n", "postgres")
	} else {
		fmt.Printf("║  Storage         : %-19s ║\n", "in-memory")
	}
	if cfg.Server.ListenAddr != "" {
		fmt.Printf("║  Listen addr     : %-19s ║\n", cfg.Server.ListenAddr)
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printProvider(role, name, model string) {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + " / " + model
	}
	if len(value) > 19 {
		value = value[:16] + "…"
	}
	fmt.Printf("║  %-12s    : %-19s ║\n", role, value)
}

// ── Config hot reload ─────────────────────────────────────────────────────────

// applyConfigChange reacts to a hot-reloadable config edit: the log level
// and the session manager's game tuning take effect live. Provider and
// storage changes still require a restart.
func applyConfigChange(logLevel *slog.LevelVar, application *app.App, diff config.ConfigDiff) {
	if diff.LogLevelChanged {
		logLevel.Set(slogLevel(diff.NewLogLevel))
		slog.Info("log level changed", "level", diff.NewLogLevel)
	}
	if diff.GameChanged {
		application.ApplyGameTuning(diff.NewGame)
		slog.Info("game tuning reloaded",
			"max_action_length", diff.NewGame.MaxActionLength,
			"recall_top_k", diff.NewGame.RecallTopK)
	}
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	v, ok := opts[key]
	if !ok {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return s
}
