// Package app wires all Colossi subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates and connects all
// subsystems, Run serves HTTP traffic until the context is cancelled, and
// Shutdown tears everything down in order.
//
// For testing, inject mock implementations via functional options
// (WithStore, WithNarrator, etc.). When an option is not provided, New
// creates real implementations from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sagewright/colossi/internal/config"
	"github.com/sagewright/colossi/internal/feedback"
	"github.com/sagewright/colossi/internal/game/match"
	"github.com/sagewright/colossi/internal/game/puzzle"
	"github.com/sagewright/colossi/internal/game/session"
	"github.com/sagewright/colossi/internal/health"
	"github.com/sagewright/colossi/internal/httpapi"
	"github.com/sagewright/colossi/internal/narrate"
	"github.com/sagewright/colossi/internal/recall"
	"github.com/sagewright/colossi/internal/store"
	"github.com/sagewright/colossi/internal/world"
	"github.com/sagewright/colossi/pkg/provider/embeddings"
	"github.com/sagewright/colossi/pkg/provider/image"
	"github.com/sagewright/colossi/pkg/provider/llm"
)

// defaultListenAddr is used when server.listen_addr is empty.
const defaultListenAddr = ":8080"

// retentionInterval is how often expired gallery records are swept.
const retentionInterval = time.Hour

// Providers holds one interface value per provider slot. Nil means the
// provider is not configured. Populated by main.go via the config registry.
type Providers struct {
	Narrator    llm.Provider
	Illustrator image.Provider
	Embeddings  embeddings.Provider
}

// App owns all subsystem lifetimes and serves the Colossi game over HTTP.
type App struct {
	cfg       *config.Config
	providers *Providers

	// Subsystems — initialised in New, torn down in Shutdown.
	pool     *pgxpool.Pool
	store    store.Store
	recaller recall.Recaller
	world    *world.World
	narrator session.Narrator
	manager  *session.Manager
	api      *httpapi.Server
	srv      *http.Server

	// closers are called in order during Shutdown.
	closers []func() error

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a document store instead of creating one from config.
func WithStore(s store.Store) Option {
	return func(a *App) { a.store = s }
}

// WithRecaller injects a semantic history layer instead of creating one
// from config.
func WithRecaller(r recall.Recaller) Option {
	return func(a *App) { a.recaller = r }
}

// WithWorld injects a loaded world instead of loading or generating one.
func WithWorld(w *world.World) Option {
	return func(a *App) { a.world = w }
}

// WithNarrator injects a narrator instead of building one from the
// configured chat provider.
func WithNarrator(n session.Narrator) Option {
	return func(a *App) { a.narrator = n }
}

// New creates an App by wiring all subsystems together. The providers struct
// comes from main.go (populated via the config registry). Use Option functions
// to inject test doubles for any subsystem.
//
// New performs all initialisation synchronously: storage connection and
// migration, world loading or generation, puzzle catalogue seeding, narrator
// construction, and HTTP surface assembly.
func New(ctx context.Context, cfg *config.Config, providers *Providers, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if providers == nil {
		providers = &Providers{}
	}
	a := &App{
		cfg:       cfg,
		providers: providers,
	}
	for _, o := range opts {
		o(a)
	}

	// ── 1. Document store ────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 2. Semantic recall ───────────────────────────────────────────────
	if err := a.initRecall(ctx); err != nil {
		return nil, fmt.Errorf("app: init recall: %w", err)
	}

	// ── 3. World ─────────────────────────────────────────────────────────
	if err := a.initWorld(ctx); err != nil {
		return nil, fmt.Errorf("app: init world: %w", err)
	}

	// ── 4. Puzzle catalogue ──────────────────────────────────────────────
	if err := a.seedPuzzles(ctx); err != nil {
		return nil, fmt.Errorf("app: seed puzzles: %w", err)
	}

	// ── 5. Narrator + session manager ────────────────────────────────────
	if err := a.initManager(); err != nil {
		return nil, fmt.Errorf("app: init manager: %w", err)
	}

	// ── 6. HTTP surface ──────────────────────────────────────────────────
	if err := a.initHTTP(); err != nil {
		return nil, fmt.Errorf("app: init http: %w", err)
	}

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initStore connects the PostgreSQL store or falls back to memory.
func (a *App) initStore(ctx context.Context) error {
	if a.store != nil {
		return nil // injected
	}

	dsn := a.cfg.Storage.PostgresDSN
	if dsn == "" {
		slog.Warn("no postgres_dsn configured, sessions and gallery are in-memory only")
		a.store = store.NewMemory()
		return nil
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}

	pg := store.NewPostgres(pool)
	if err := pg.Migrate(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("migrate store: %w", err)
	}

	a.pool = pool
	a.store = pg
	a.closers = append(a.closers, func() error {
		pool.Close()
		return nil
	})
	return nil
}

// initRecall sets up the pgvector history layer when both an embeddings
// provider and a database are available.
func (a *App) initRecall(ctx context.Context) error {
	if a.recaller != nil {
		return nil // injected
	}
	if a.providers.Embeddings == nil || a.pool == nil {
		if a.providers.Embeddings != nil {
			slog.Warn("embeddings provider configured without postgres, semantic recall disabled")
		}
		a.recaller = recall.Noop{}
		return nil
	}

	r, err := recall.New(a.pool, a.providers.Embeddings, slog.Default())
	if err != nil {
		return err
	}
	if err := r.Migrate(ctx); err != nil {
		return err
	}
	a.recaller = r
	slog.Info("semantic recall enabled", "model", a.providers.Embeddings.ModelID(),
		"dimensions", a.providers.Embeddings.Dimensions())
	return nil
}

// initWorld loads the static world file or generates a world from the
// configured concept.
func (a *App) initWorld(ctx context.Context) error {
	if a.world != nil {
		return nil // injected
	}

	if path := a.cfg.Game.WorldFile; path != "" {
		w, err := world.Load(path)
		if err != nil {
			return err
		}
		a.world = w
		slog.Info("loaded world", "name", w.Name, "kingdoms", len(w.Kingdoms))
		return nil
	}

	if a.providers.Narrator == nil {
		return errors.New("game.world_file or a narrator provider is required")
	}
	builder, err := world.NewBuilder(a.providers.Narrator)
	if err != nil {
		return err
	}
	slog.Info("generating world", "concept", a.cfg.Game.WorldConcept)
	w, err := builder.Build(ctx, a.cfg.Game.WorldConcept)
	if err != nil {
		return fmt.Errorf("generate world: %w", err)
	}
	a.world = w
	slog.Info("generated world", "name", w.Name, "kingdoms", len(w.Kingdoms))
	return nil
}

// seedPuzzles upserts the puzzle file's templates into the store. Templates
// for characters missing from the world are still stored; they only warn.
func (a *App) seedPuzzles(ctx context.Context) error {
	path := a.cfg.Game.PuzzleFile
	if path == "" {
		return nil
	}

	tpls, err := puzzle.LoadTemplates(path)
	if err != nil {
		return err
	}
	for name, tpl := range tpls {
		if npc, _ := a.world.FindNPC(name); npc == nil {
			slog.Warn("puzzle template for unknown character", "character", name, "world", a.world.Name)
		}
		if err := a.store.SavePuzzleTemplate(ctx, a.world.Name, name, tpl); err != nil {
			return fmt.Errorf("save template for %q: %w", name, err)
		}
	}
	slog.Info("seeded puzzle templates", "count", len(tpls), "path", path)
	return nil
}

// initManager builds the narrator and the session manager around it.
func (a *App) initManager() error {
	if a.narrator == nil {
		if a.providers.Narrator == nil {
			return errors.New("a narrator provider is required")
		}
		var nopts []narrate.Option
		if d := a.cfg.Game.NarratorTimeout; d > 0 {
			nopts = append(nopts, narrate.WithTimeout(d))
		}
		if n := a.cfg.Game.HistoryTail; n > 0 {
			nopts = append(nopts, narrate.WithHistoryTail(n))
		}
		if a.cfg.Game.SafetyEnabled {
			nopts = append(nopts, narrate.WithSafety(narrate.NewSafetyChecker(a.providers.Narrator, nil)))
		}
		n, err := narrate.New(a.providers.Narrator, nopts...)
		if err != nil {
			return err
		}
		a.narrator = n
	}

	var mopts []match.Option
	if n := a.cfg.Game.MinKeywordOverlap; n > 0 {
		mopts = append(mopts, match.WithOverlapThreshold(n))
	}
	if t := a.cfg.Game.JaccardThreshold; t > 0 {
		mopts = append(mopts, match.WithSimilarityThreshold(t))
	}

	opts := []session.ManagerOption{
		session.WithRecaller(a.recaller),
		session.WithMatcher(match.New(mopts...)),
		session.WithMaxActionLength(a.cfg.Game.MaxActionLength),
		session.WithRecallTopK(a.cfg.Game.RecallTopK),
	}
	if a.providers.Illustrator != nil {
		opts = append(opts, session.WithIllustrator(a.providers.Illustrator))
	}

	m, err := session.NewManager(a.world, a.narrator, a.store, opts...)
	if err != nil {
		return err
	}
	a.manager = m
	return nil
}

// initHTTP assembles the API server and the net/http server around it.
func (a *App) initHTTP() error {
	checkers := []health.Checker{
		health.Provider("narrator", a.providers.Narrator != nil || a.narrator != nil),
	}
	if a.pool != nil {
		checkers = append(checkers, health.Database(a.pool))
	}

	opts := []httpapi.Option{httpapi.WithHealthCheckers(checkers...)}
	if path := a.cfg.Storage.FeedbackFile; path != "" {
		opts = append(opts, httpapi.WithFeedback(feedback.NewFileStore(path)))
	}

	api, err := httpapi.New(a.manager, a.store, opts...)
	if err != nil {
		return err
	}
	a.api = api

	addr := a.cfg.Server.ListenAddr
	if addr == "" {
		addr = defaultListenAddr
	}
	a.srv = &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP traffic and blocks until ctx is cancelled or the listener
// fails. Gallery retention sweeps run in the background when configured.
func (a *App) Run(ctx context.Context) error {
	if days := a.cfg.Storage.RetentionDays; days > 0 {
		go a.retentionLoop(ctx, time.Duration(days)*24*time.Hour)
	}

	errCh := make(chan error, 1)
	go func() {
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = a.srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = a.srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("app running", "addr", a.srv.Addr, "world", a.world.Name, "tls", a.cfg.Server.TLS != nil)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("app: serve: %w", err)
	}
}

// retentionLoop periodically deletes gallery records older than the
// configured retention window.
func (a *App) retentionLoop(ctx context.Context, olderThan time.Duration) {
	ticker := time.NewTicker(retentionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.store.CleanupCompletions(ctx, olderThan)
			if err != nil {
				slog.Warn("gallery cleanup failed", "err", err)
				continue
			}
			if n > 0 {
				slog.Info("gallery cleanup", "removed", n)
			}
		}
	}
}

// Manager exposes the session manager, mainly for tests.
func (a *App) Manager() *session.Manager { return a.manager }

// ApplyGameTuning pushes hot-reloadable game settings into the running
// session manager. Called by the config watcher on file changes.
func (a *App) ApplyGameTuning(g config.GameConfig) {
	a.manager.Retune(g.MaxActionLength, g.RecallTopK)
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler { return a.api.Handler() }

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown stops the HTTP server, waits for detached session work, and tears
// down all subsystems in order. It respects the context deadline: if ctx
// expires before all closers finish, remaining closers are skipped and the
// context error is returned.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.stopOnce.Do(func() {
		slog.Info("shutting down", "closers", len(a.closers))

		if a.srv != nil {
			if err := a.srv.Shutdown(ctx); err != nil {
				slog.Warn("http shutdown error", "err", err)
			}
		}
		if a.manager != nil {
			a.manager.Wait()
		}

		for i, closer := range a.closers {
			select {
			case <-ctx.Done():
				slog.Warn("shutdown deadline exceeded", "remaining", len(a.closers)-i)
				shutdownErr = ctx.Err()
				return
			default:
			}
			if err := closer(); err != nil {
				slog.Warn("closer error", "index", i, "err", err)
			}
		}

		slog.Info("shutdown complete")
	})
	return shutdownErr
}
