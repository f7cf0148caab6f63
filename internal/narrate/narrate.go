// Package narrate turns player actions into story text through a chat model.
//
// The Narrator assembles a scene bundle (location, inventory, recent history,
// the action, and any recalled snippets) into a single completion request and
// parses the reply. Inventory changes travel in a machine-readable trailer
// that is decoded with encoding/json; narration prose is never evaluated for
// game-state effects.
package narrate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/sagewright/colossi/internal/game/inventory"
	"github.com/sagewright/colossi/pkg/provider/llm"
)

// FallbackResponse is returned to the player whenever narration fails. The
// player always receives a response; failures are logged, not surfaced.
const FallbackResponse = "Something went wrong. Please try again."

// DefaultTimeout bounds a single narration call.
const DefaultTimeout = 30 * time.Second

// historyTailDefault is how many recent exchanges are included in the scene
// context when no explicit tail size is configured.
const historyTailDefault = 3

// Exchange is one action/response pair from a session's history.
type Exchange struct {
	Action   string `json:"action"`
	Response string `json:"response"`
}

// Scene is the context bundle for one narration call.
type Scene struct {
	// Location is the name of the player's current location.
	Location string

	// LocationDescription gives the model the flavour of the place.
	LocationDescription string

	// Inventory is a snapshot of the player's current belongings.
	Inventory map[string]int

	// History is the recent tail of the session's exchanges, oldest first.
	History []Exchange

	// Recalled holds semantically relevant older narration snippets, if any.
	Recalled []string

	// Action is the player's raw action text.
	Action string
}

// Result is a parsed narration.
type Result struct {
	// Response is the story text shown to the player, with any delta trailer
	// stripped.
	Response string

	// Deltas are the inventory changes the narration declared. Empty when the
	// action had no effect on belongings.
	Deltas []inventory.Change

	// Usage is token accounting from the backend.
	Usage llm.Usage
}

const narratorSystemPrompt = `You are an AI Game master. Generate the next story event based on:
1. Player's current location and surroundings
2. Current inventory items
3. Recent action history

Keep responses engaging but concise (2-3 sentences).
Use second person present tense.
Include opportunities for inventory interaction.

When the player's action gains or loses items, finish your reply with one
extra line in exactly this form:
ITEM_DELTAS: {"item_deltas":[{"item":"rope","delta":-1}]}
Only report items that were actually gained or lost in the story you told.
Omit the line entirely when nothing changed.`

// Narrator produces story responses for player actions.
type Narrator struct {
	provider    llm.Provider
	log         *slog.Logger
	timeout     time.Duration
	temperature float64
	historyTail int
	safety      *SafetyChecker
}

// Option configures a Narrator.
type Option func(*Narrator)

// WithTimeout bounds each narration call. Zero or negative keeps the default.
func WithTimeout(d time.Duration) Option {
	return func(n *Narrator) {
		if d > 0 {
			n.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(n *Narrator) {
		n.log = l
	}
}

// WithTemperature overrides the sampling temperature.
func WithTemperature(t float64) Option {
	return func(n *Narrator) {
		n.temperature = t
	}
}

// WithHistoryTail sets how many recent exchanges enter the scene context.
func WithHistoryTail(count int) Option {
	return func(n *Narrator) {
		if count > 0 {
			n.historyTail = count
		}
	}
}

// WithSafety enables the moderation pass on narration output.
func WithSafety(c *SafetyChecker) Option {
	return func(n *Narrator) {
		n.safety = c
	}
}

// New constructs a Narrator on top of the given chat provider.
func New(provider llm.Provider, opts ...Option) (*Narrator, error) {
	if provider == nil {
		return nil, fmt.Errorf("narrate: narrator requires a chat provider")
	}
	n := &Narrator{
		provider:    provider,
		log:         slog.Default(),
		timeout:     DefaultTimeout,
		temperature: 0.7,
		historyTail: historyTailDefault,
	}
	for _, o := range opts {
		o(n)
	}
	return n, nil
}

// Narrate produces the next story event for the scene. On any backend or
// parse failure it returns a Result carrying FallbackResponse together with
// the error, so callers can both log the failure and answer the player.
func (n *Narrator) Narrate(ctx context.Context, scene Scene) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	resp, err := n.provider.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: narratorSystemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: n.sceneContext(scene)}},
		Temperature:  n.temperature,
	})
	if err != nil {
		n.log.Error("narration failed", "action", scene.Action, "error", err)
		return &Result{Response: FallbackResponse}, fmt.Errorf("narrate: %w", err)
	}

	text, deltas, err := extractDeltas(resp.Content)
	if err != nil {
		// Malformed trailer: keep the prose, discard the state change.
		n.log.Warn("discarding malformed item deltas", "error", err)
		deltas = nil
	}
	if strings.TrimSpace(text) == "" {
		n.log.Warn("empty narration", "action", scene.Action)
		return &Result{Response: FallbackResponse}, fmt.Errorf("narrate: empty response")
	}

	if n.safety != nil {
		text = n.safety.Sanitize(ctx, text)
	}

	return &Result{Response: text, Deltas: deltas, Usage: resp.Usage}, nil
}

// sceneContext renders the scene into the user message the model sees.
func (n *Narrator) sceneContext(scene Scene) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Current location: %s\n", scene.Location)
	fmt.Fprintf(&sb, "Description: %s\n", scene.LocationDescription)
	fmt.Fprintf(&sb, "Inventory: %s\n", formatInventory(scene.Inventory))

	tail := scene.History
	if len(tail) > n.historyTail {
		tail = tail[len(tail)-n.historyTail:]
	}
	if len(tail) == 0 {
		sb.WriteString("Recent history: None\n")
	} else {
		sb.WriteString("Recent history:\n")
		for _, ex := range tail {
			fmt.Fprintf(&sb, "- Player: %s\n  Story: %s\n", ex.Action, ex.Response)
		}
	}
	if len(scene.Recalled) > 0 {
		sb.WriteString("Relevant earlier events:\n")
		for _, r := range scene.Recalled {
			fmt.Fprintf(&sb, "- %s\n", r)
		}
	}
	fmt.Fprintf(&sb, "Action: %s", scene.Action)
	return sb.String()
}

// formatInventory renders the inventory snapshot deterministically.
func formatInventory(inv map[string]int) string {
	if len(inv) == 0 {
		return "empty"
	}
	names := make([]string, 0, len(inv))
	for name := range inv {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s x%d", name, inv[name]))
	}
	return strings.Join(parts, ", ")
}
