package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/sagewright/colossi/internal/game/inventory"
	"github.com/sagewright/colossi/internal/game/match"
	"github.com/sagewright/colossi/internal/game/puzzle"
	"github.com/sagewright/colossi/internal/narrate"
	"github.com/sagewright/colossi/internal/observe"
	"github.com/sagewright/colossi/internal/recall"
	"github.com/sagewright/colossi/internal/store"
	"github.com/sagewright/colossi/internal/world"
	"github.com/sagewright/colossi/pkg/provider/image"
)

// DefaultMaxActionLength bounds accepted action text.
const DefaultMaxActionLength = 200

// illustrateTimeout bounds the gallery side-channel, which runs detached from
// the action that triggered it.
const illustrateTimeout = 60 * time.Second

// ErrUnknownSession is returned when a session id is not live.
var ErrUnknownSession = fmt.Errorf("session: unknown session")

// Manager owns the live sessions and the collaborators the action pipeline
// needs. All methods are safe for concurrent use; actions against the same
// session are serialized.
type Manager struct {
	world    *world.World
	narrator Narrator
	matcher  *match.Matcher
	recaller recall.Recaller
	store    store.Store
	illus    image.Provider
	log      *slog.Logger

	maxActionLength int
	recallTopK      int

	mu       sync.RWMutex
	sessions map[string]*Session

	// wg tracks detached side-channel work so tests and shutdown can wait.
	wg sync.WaitGroup
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithIllustrator enables completion illustrations.
func WithIllustrator(p image.Provider) ManagerOption {
	return func(m *Manager) { m.illus = p }
}

// WithRecaller sets the semantic history layer. Defaults to recall.Noop.
func WithRecaller(r recall.Recaller) ManagerOption {
	return func(m *Manager) {
		if r != nil {
			m.recaller = r
		}
	}
}

// WithMatcher replaces the default task matcher, typically to tune its
// thresholds from config.
func WithMatcher(matcher *match.Matcher) ManagerOption {
	return func(m *Manager) {
		if matcher != nil {
			m.matcher = matcher
		}
	}
}

// WithManagerLogger sets the logger.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.log = l }
}

// WithMaxActionLength overrides the accepted action length bound.
func WithMaxActionLength(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxActionLength = n
		}
	}
}

// WithRecallTopK sets how many recalled snippets enter the scene context.
// Non-positive values keep the default.
func WithRecallTopK(k int) ManagerOption {
	return func(m *Manager) {
		if k > 0 {
			m.recallTopK = k
		}
	}
}

// NewManager constructs a Manager for one loaded world.
func NewManager(w *world.World, narrator Narrator, st store.Store, opts ...ManagerOption) (*Manager, error) {
	if w == nil {
		return nil, fmt.Errorf("session: manager requires a world")
	}
	if narrator == nil {
		return nil, fmt.Errorf("session: manager requires a narrator")
	}
	if st == nil {
		return nil, fmt.Errorf("session: manager requires a store")
	}
	m := &Manager{
		world:           w,
		narrator:        narrator,
		matcher:         match.New(),
		recaller:        recall.Noop{},
		store:           st,
		log:             slog.Default(),
		maxActionLength: DefaultMaxActionLength,
		recallTopK:      3,
		sessions:        make(map[string]*Session),
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// World returns the world this manager serves.
func (m *Manager) World() *world.World { return m.world }

// Create starts a session for the named character. The character's home town
// becomes the starting location and its role determines the starting
// inventory. A missing puzzle template means a puzzle-less session; a
// malformed one degrades the same way rather than failing the session.
func (m *Manager) Create(ctx context.Context, characterName string) (*Session, error) {
	npc, town := m.world.FindNPC(characterName)
	if npc == nil {
		return nil, fmt.Errorf("session: unknown character %q", characterName)
	}
	if town == nil {
		town = m.world.FirstTown()
	}

	s := &Session{
		id:        uuid.NewString(),
		world:     m.world,
		location:  town,
		character: *npc,
		createdAt: time.Now().UTC(),
		inventory: inventory.FromMap(world.StartingInventory(npc.Name, m.world.Name)),
	}

	tpl, err := m.store.PuzzleTemplate(ctx, m.world.Name, npc.Name)
	if err != nil {
		m.log.Warn("puzzle template lookup failed, starting without puzzle",
			"character", npc.Name, "error", err)
	} else if tpl != nil {
		progress, err := puzzle.NewProgress(tpl)
		if err != nil {
			m.log.Warn("malformed puzzle template, starting without puzzle",
				"character", npc.Name, "error", err)
		} else {
			s.progress = progress
		}
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	m.log.Info("session created", "session_id", s.id, "character", npc.Name,
		"location", town.Name, "has_puzzle", s.progress != nil)
	return s, nil
}

// Get returns the live session with the given id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrUnknownSession
	}
	return s, nil
}

// Wait blocks until all detached side-channel work has finished.
func (m *Manager) Wait() { m.wg.Wait() }

// tuning holds the bounds that may change while the manager is running.
type tuning struct {
	maxActionLength int
	recallTopK      int
}

// limits snapshots the current tuning under the manager lock.
func (m *Manager) limits() tuning {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return tuning{maxActionLength: m.maxActionLength, recallTopK: m.recallTopK}
}

// Retune applies new game tuning to a running manager, typically from a
// config reload. Zero or negative values leave the current bound unchanged.
func (m *Manager) Retune(maxActionLength, recallTopK int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if maxActionLength > 0 {
		m.maxActionLength = maxActionLength
	}
	if recallTopK > 0 {
		m.recallTopK = recallTopK
	}
}

// ProcessAction runs the full pipeline for one action against the session.
// Invalid input returns ErrInvalidAction with no state change. Any other
// failure still yields an Outcome the player can read.
func (m *Manager) ProcessAction(ctx context.Context, id string, action string) (*Outcome, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}

	trimmed := strings.TrimSpace(action)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > m.limits().maxActionLength {
		return nil, ErrInvalidAction
	}

	ctx, span := observe.ActionSpan(ctx, s.id)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := m.processLocked(ctx, s, trimmed)

	s.history = append(s.history, narrate.Exchange{Action: trimmed, Response: out.Response})
	m.indexExchange(s.id, trimmed, out.Response)

	out.Inventory = s.inventory.Items()
	out.Location = s.location.Name
	if s.progress != nil {
		out.Progress = s.progress.Percent()
		out.PuzzleSolved = s.progress.Solved()
		out.AvailableTasks = s.progress.Available(s.inventory)
	}
	observe.MarkActionOutcome(span, out.TaskCompleted, out.PuzzleSolved)
	return out, nil
}

// processLocked runs steps 2-5 of the pipeline under the session lock. A
// panic anywhere inside is converted into the generic fallback response.
func (m *Manager) processLocked(ctx context.Context, s *Session, action string) (out *Outcome) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Error("action pipeline panicked", "session_id", s.id, "panic", r)
			out = &Outcome{Response: fallbackResponse}
		}
	}()

	if isExamineIntent(action) {
		return &Outcome{Response: s.hintResponse()}
	}

	if s.progress != nil {
		if out, done := m.tryCompleteTask(ctx, s, action); done {
			return out
		}
	}

	usedItem := m.tryUseItem(s, action)
	return m.narrateAction(ctx, s, action, usedItem)
}

// tryCompleteTask attempts the match/verify/consume/reward sequence. done is
// false when no task matched or the match was unpayable, in which case
// nothing was consumed.
func (m *Manager) tryCompleteTask(ctx context.Context, s *Session, action string) (*Outcome, bool) {
	task, ok := m.matcher.Match(action, s.progress.Available(s.inventory))
	if !ok {
		return nil, false
	}

	required, ok := s.progress.RequiredItems(task.ID)
	if !ok {
		return nil, false
	}

	// Re-verify the full requirement list before touching anything.
	for _, item := range required {
		if !s.inventory.Has(item, 1) {
			m.log.Debug("matched task unpayable", "task", task.ID, "missing", item)
			return nil, false
		}
	}

	changes := make([]inventory.Change, 0, len(required))
	for _, item := range required {
		changes = append(changes, inventory.Change{Item: item, Delta: -1})
	}
	if err := s.inventory.Apply(changes); err != nil {
		m.log.Debug("task consumption rejected", "task", task.ID, "error", err)
		return nil, false
	}

	reward, ok := s.progress.Complete(task.ID)
	if !ok {
		// Complete only fails for unknown or finished tasks, neither of
		// which Available can return.
		m.log.Error("completion refused after consumption", "task", task.ID)
		return &Outcome{Response: fallbackResponse}, true
	}
	if reward != "" {
		s.inventory.Add(reward, 1)
	}

	response := fmt.Sprintf("Task completed: %s. Received: %s", task.Description, reward)
	solvedNow := s.progress.Solved()
	if solvedNow {
		response += solvedSuffix
	}

	m.recordCompletion(s, task)

	m.log.Info("task completed", "session_id", s.id, "task", task.ID,
		"reward", reward, "solved", solvedNow)

	return &Outcome{
		Response:      response,
		TaskCompleted: true,
		CompletedTask: task,
		Reward:        reward,
		PuzzleSolved:  solvedNow,
	}, true
}

// tryUseItem handles the plain "use <item>" decrement when no task consumed
// the action. Returns the canonical item name that was spent, or "".
func (m *Manager) tryUseItem(s *Session, action string) string {
	target := match.UseTarget(action)
	if target == "" {
		return ""
	}
	item, ok := match.ResolveItem(target, s.inventory)
	if !ok {
		return ""
	}
	if !s.inventory.Remove(item, 1) {
		return ""
	}
	m.log.Debug("item used", "session_id", s.id, "item", item)
	return item
}

// narrateAction delegates to the narration gateway. Failures degrade to the
// narrator's fallback text; declared item deltas are validated and applied
// atomically, and a rejected delta batch leaves the inventory untouched.
func (m *Manager) narrateAction(ctx context.Context, s *Session, action, usedItem string) *Outcome {
	recalled, err := m.recaller.Relevant(ctx, s.id, action, m.limits().recallTopK)
	if err != nil {
		m.log.Warn("recall failed", "session_id", s.id, "error", err)
	}

	sceneAction := action
	if usedItem != "" {
		sceneAction = fmt.Sprintf("%s (the player spends one %s)", action, usedItem)
	}

	result, err := m.narrator.Narrate(ctx, narrate.Scene{
		Location:            s.location.Name,
		LocationDescription: s.location.Description,
		Inventory:           s.inventory.Items(),
		History:             s.history,
		Recalled:            recalled,
		Action:              sceneAction,
	})
	if err != nil {
		m.log.Warn("narration failed", "session_id", s.id, "error", err)
		response := narrate.FallbackResponse
		if result != nil && result.Response != "" {
			response = result.Response
		}
		return &Outcome{Response: response, UsedItem: usedItem}
	}

	if len(result.Deltas) > 0 {
		if err := narrate.ValidateDeltas(result.Deltas); err != nil {
			m.log.Warn("rejecting narrated deltas", "session_id", s.id, "error", err)
		} else if err := s.inventory.Apply(result.Deltas); err != nil {
			m.log.Warn("narrated deltas unpayable", "session_id", s.id, "error", err)
		}
	}

	return &Outcome{Response: result.Response, UsedItem: usedItem}
}

// recordCompletion runs the illustrator and gallery write as a detached
// side-channel. It never blocks or fails the action pipeline.
func (m *Manager) recordCompletion(s *Session, task puzzle.Task) {
	worldName := s.world.Name
	characterName := s.character.Name
	prompt := fmt.Sprintf("Fantasy illustration: %s, in %s, %s", task.Description, s.location.Name, s.location.Description)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), illustrateTimeout)
		defer cancel()

		rec := &store.CompletionRecord{
			WorldName:     worldName,
			CharacterName: characterName,
			PuzzleText:    task.Description,
		}
		if m.illus != nil {
			img, err := m.illus.Generate(ctx, prompt)
			if err != nil {
				m.log.Warn("illustration failed", "task", task.ID, "error", err)
			} else if img != nil {
				rec.ImageURL = img.URL
			}
		}
		if err := m.store.SaveCompletion(ctx, rec); err != nil {
			m.log.Warn("completion record write failed", "task", task.ID, "error", err)
		}
	}()
}

// indexExchange feeds the finished exchange to the recall layer, best-effort
// and detached.
func (m *Manager) indexExchange(sessionID, action, response string) {
	entry := fmt.Sprintf("Player: %s\nStory: %s", action, response)
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := m.recaller.Index(ctx, sessionID, entry); err != nil {
			m.log.Warn("history indexing failed", "session_id", sessionID, "error", err)
		}
	}()
}
