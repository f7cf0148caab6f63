package app_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sagewright/colossi/internal/app"
	"github.com/sagewright/colossi/internal/config"
	"github.com/sagewright/colossi/internal/game/session"
	"github.com/sagewright/colossi/internal/narrate"
	"github.com/sagewright/colossi/internal/store"
	"github.com/sagewright/colossi/internal/world"
)

// stubNarrator implements session.Narrator with a canned response.
type stubNarrator struct{}

func (stubNarrator) Narrate(_ context.Context, _ narrate.Scene) (*narrate.Result, error) {
	return &narrate.Result{Response: "The story continues."}, nil
}

func testWorld() *world.World {
	return &world.World{
		Name:        "Kyropeia",
		Description: "A realm of city-bearing Colossi.",
		Kingdoms: []world.Kingdom{{
			Name:        "Luminaria",
			Description: "The first kingdom.",
			Towns: []world.Town{{
				Name:        "Emberfall",
				Description: "a town of forge-fires and brass walkways.",
				NPCs: []world.NPC{
					{Name: "Korga the Builder", Description: "a stern architect."},
				},
			}},
		}},
	}
}

func newApp(t *testing.T, cfg *config.Config, opts ...app.Option) *app.App {
	t.Helper()
	if cfg == nil {
		cfg = &config.Config{}
	}
	opts = append([]app.Option{
		app.WithWorld(testWorld()),
		app.WithNarrator(stubNarrator{}),
	}, opts...)
	a, err := app.New(context.Background(), cfg, nil, opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Shutdown(ctx)
	})
	return a
}

func TestNew_MemoryFallback(t *testing.T) {
	t.Parallel()

	a := newApp(t, nil)

	s, err := a.Manager().Create(context.Background(), "Korga the Builder")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if s.Snapshot().Location != "Emberfall" {
		t.Errorf("location = %q, want Emberfall", s.Snapshot().Location)
	}

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("GET /healthz = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestApplyGameTuning(t *testing.T) {
	t.Parallel()

	a := newApp(t, nil)
	ctx := context.Background()

	s, err := a.Manager().Create(ctx, "Korga the Builder")
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	long := strings.Repeat("x", 150)
	if _, err := a.Manager().ProcessAction(ctx, s.ID(), long); err != nil {
		t.Fatalf("ProcessAction() error = %v", err)
	}

	// A config reload tightening the bound applies to the live manager.
	a.ApplyGameTuning(config.GameConfig{MaxActionLength: 100})
	if _, err := a.Manager().ProcessAction(ctx, s.ID(), long); !errors.Is(err, session.ErrInvalidAction) {
		t.Errorf("ProcessAction after tuning error = %v, want ErrInvalidAction", err)
	}
}

func TestNew_RequiresNarrator(t *testing.T) {
	t.Parallel()

	_, err := app.New(context.Background(), &config.Config{}, nil, app.WithWorld(testWorld()))
	if err == nil {
		t.Fatal("expected error without a narrator")
	}
	if !strings.Contains(err.Error(), "narrator provider") {
		t.Errorf("error = %q, want mention of narrator provider", err)
	}
}

func TestNew_RequiresWorldSource(t *testing.T) {
	t.Parallel()

	_, err := app.New(context.Background(), &config.Config{}, nil, app.WithNarrator(stubNarrator{}))
	if err == nil {
		t.Fatal("expected error without a world source")
	}
	if !strings.Contains(err.Error(), "world_file") {
		t.Errorf("error = %q, want mention of world_file", err)
	}
}

func TestNew_NilConfig(t *testing.T) {
	t.Parallel()

	if _, err := app.New(context.Background(), nil, nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestNew_SeedsPuzzleFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "puzzles.yaml")
	data := `characters:
  Korga the Builder:
    main_puzzle: Forge a new seal for the town gate
    tasks:
      - id: forge-seal
        title: Forge the gate seal
        description: Forge a new seal for the town gate
        required_item: Craftsman's hammer
        reward: gate seal
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	st := store.NewMemory()
	cfg := &config.Config{}
	cfg.Game.PuzzleFile = path
	newApp(t, cfg, app.WithStore(st))

	tpl, err := st.PuzzleTemplate(context.Background(), "Kyropeia", "Korga the Builder")
	if err != nil {
		t.Fatalf("PuzzleTemplate() error = %v", err)
	}
	if tpl == nil {
		t.Fatal("template was not seeded")
	}
	if tpl.Tasks[0].Reward != "gate seal" {
		t.Errorf("reward = %q, want %q", tpl.Tasks[0].Reward, "gate seal")
	}
}

func TestNew_RejectsBadPuzzleFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "puzzles.yaml")
	if err := os.WriteFile(path, []byte("characters: {}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{}
	cfg.Game.PuzzleFile = path
	_, err := app.New(context.Background(), cfg, nil,
		app.WithWorld(testWorld()), app.WithNarrator(stubNarrator{}))
	if err == nil {
		t.Fatal("expected error for empty puzzle file")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Server.ListenAddr = "127.0.0.1:0"
	a := newApp(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	// Give the listener a moment to start, then cancel.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run() error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestShutdown_Idempotent(t *testing.T) {
	t.Parallel()

	a := newApp(t, nil)
	ctx := context.Background()
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("first Shutdown() error = %v", err)
	}
	if err := a.Shutdown(ctx); err != nil {
		t.Fatalf("second Shutdown() error = %v", err)
	}
}
