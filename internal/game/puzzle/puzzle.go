// Package puzzle implements the task progression engine: an
// insertion-ordered catalogue of item-gated tasks whose completion state is
// monotonic and whose rewards are granted at most once.
//
// A Progress is built once per session from a [Template] and mutated only
// through [Progress.Complete]. Availability is recomputed against the
// session inventory on every query; it is never cached.
package puzzle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sagewright/colossi/internal/game/inventory"
)

// AllItemsSentinel marks a capstone task that requires every distinct item
// named by the rest of the catalogue.
const AllItemsSentinel = "All items"

// Task is a single gated objective. Completed transitions false → true
// exactly once and never resets.
type Task struct {
	ID          string
	Title       string
	Description string

	// RequiredItem is a single item name, a comma-separated list of item
	// names, or [AllItemsSentinel].
	RequiredItem string

	Reward    string
	Completed bool
}

// requiredItems splits the RequiredItem field into its distinct item names.
func (t Task) requiredItems() []string {
	parts := strings.Split(t.RequiredItem, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			items = append(items, p)
		}
	}
	return items
}

// TemplateTask is the static definition a [Task] is initialised from.
type TemplateTask struct {
	ID           string `yaml:"id" json:"id"`
	Title        string `yaml:"title" json:"title"`
	Description  string `yaml:"description" json:"description"`
	RequiredItem string `yaml:"required_item" json:"required_item"`
	Reward       string `yaml:"reward" json:"reward"`
}

// Template is a static puzzle definition keyed by (world, character) in the
// template store. It is immutable and shared between sessions.
type Template struct {
	MainPuzzle           string         `yaml:"main_puzzle" json:"main_puzzle"`
	SolutionRequirements []string       `yaml:"solution_requirements" json:"solution_requirements"`
	Tasks                []TemplateTask `yaml:"tasks" json:"tasks"`
}

// Validate reports every structural problem with the template joined into a
// single error. A template that fails validation must not start a session
// puzzle; the session runs without one instead.
func (tpl *Template) Validate() error {
	var errs []error
	if strings.TrimSpace(tpl.MainPuzzle) == "" {
		errs = append(errs, errors.New("main_puzzle is required"))
	}
	// A task-less template would be born solved.
	if len(tpl.Tasks) == 0 {
		errs = append(errs, errors.New("at least one task is required"))
	}
	seen := make(map[string]int, len(tpl.Tasks))
	for i, task := range tpl.Tasks {
		prefix := fmt.Sprintf("tasks[%d]", i)
		if task.ID == "" {
			errs = append(errs, fmt.Errorf("%s.id is required", prefix))
		} else if prev, ok := seen[task.ID]; ok {
			errs = append(errs, fmt.Errorf("%s.id %q duplicates tasks[%d]", prefix, task.ID, prev))
		} else {
			seen[task.ID] = i
		}
		if strings.TrimSpace(task.Description) == "" {
			errs = append(errs, fmt.Errorf("%s.description is required", prefix))
		}
		if strings.TrimSpace(task.RequiredItem) == "" {
			errs = append(errs, fmt.Errorf("%s.required_item is required", prefix))
		}
		if strings.TrimSpace(task.Reward) == "" {
			errs = append(errs, fmt.Errorf("%s.reward is required", prefix))
		}
	}
	return errors.Join(errs...)
}

// Progress owns the mutable completion state for one session's puzzle.
// It is not safe for concurrent use; the session layer serialises access.
type Progress struct {
	mainPuzzle           string
	solutionRequirements []string

	// order preserves catalogue insertion order for stable iteration.
	order []string
	tasks map[string]*Task

	totalTasks     int
	completedTasks int
}

// NewProgress builds a Progress from a validated template. It returns an
// error when the template is malformed.
func NewProgress(tpl *Template) (*Progress, error) {
	if tpl == nil {
		return nil, errors.New("puzzle: template is nil")
	}
	if err := tpl.Validate(); err != nil {
		return nil, fmt.Errorf("puzzle: invalid template: %w", err)
	}

	p := &Progress{
		mainPuzzle:           tpl.MainPuzzle,
		solutionRequirements: append([]string(nil), tpl.SolutionRequirements...),
		order:                make([]string, 0, len(tpl.Tasks)),
		tasks:                make(map[string]*Task, len(tpl.Tasks)),
		totalTasks:           len(tpl.Tasks),
	}
	for _, tt := range tpl.Tasks {
		p.order = append(p.order, tt.ID)
		p.tasks[tt.ID] = &Task{
			ID:           tt.ID,
			Title:        tt.Title,
			Description:  tt.Description,
			RequiredItem: tt.RequiredItem,
			Reward:       tt.Reward,
		}
	}
	return p, nil
}

// MainPuzzle returns the top-level narrative goal.
func (p *Progress) MainPuzzle() string { return p.mainPuzzle }

// SolutionRequirements returns the informational requirement strings.
func (p *Progress) SolutionRequirements() []string {
	return append([]string(nil), p.solutionRequirements...)
}

// TotalTasks returns the fixed task count.
func (p *Progress) TotalTasks() int { return p.totalTasks }

// CompletedTasks returns the number of completed tasks.
func (p *Progress) CompletedTasks() int { return p.completedTasks }

// Task returns a copy of the task with the given id.
func (p *Progress) Task(id string) (Task, bool) {
	t, ok := p.tasks[id]
	if !ok {
		return Task{}, false
	}
	return *t, true
}

// Tasks returns copies of all tasks in catalogue insertion order.
func (p *Progress) Tasks() []Task {
	out := make([]Task, 0, len(p.order))
	for _, id := range p.order {
		out = append(out, *p.tasks[id])
	}
	return out
}

// CanPerform reports whether the task exists, is still pending, and its item
// requirements are satisfied by inv (at least one of every listed item).
//
// The [AllItemsSentinel] requirement is satisfied when inv holds every
// distinct item named by the rest of the catalogue.
func (p *Progress) CanPerform(id string, inv *inventory.Inventory) bool {
	t, ok := p.tasks[id]
	if !ok || t.Completed {
		return false
	}

	required := t.requiredItems()
	for _, item := range required {
		if item == AllItemsSentinel {
			required = p.catalogueItems()
			break
		}
	}
	for _, item := range required {
		if !inv.Has(item, 1) {
			return false
		}
	}
	return true
}

// RequiredItems returns the concrete item list the task with id needs,
// with the [AllItemsSentinel] expanded. The second return is false when the
// task is unknown.
func (p *Progress) RequiredItems(id string) ([]string, bool) {
	t, ok := p.tasks[id]
	if !ok {
		return nil, false
	}
	items := t.requiredItems()
	for _, item := range items {
		if item == AllItemsSentinel {
			return p.catalogueItems(), true
		}
	}
	return items, true
}

// catalogueItems returns the distinct required items across the whole
// catalogue excluding the sentinel, in first-seen order.
func (p *Progress) catalogueItems() []string {
	var items []string
	seen := make(map[string]bool)
	for _, id := range p.order {
		for _, item := range p.tasks[id].requiredItems() {
			if item == AllItemsSentinel {
				continue
			}
			key := strings.ToLower(item)
			if !seen[key] {
				seen[key] = true
				items = append(items, item)
			}
		}
	}
	return items
}

// Available returns the pending tasks whose requirements inv satisfies, in
// catalogue insertion order.
func (p *Progress) Available(inv *inventory.Inventory) []Task {
	var out []Task
	for _, id := range p.order {
		if p.CanPerform(id, inv) {
			out = append(out, *p.tasks[id])
		}
	}
	return out
}

// Complete marks the task with id as completed and returns its reward.
// It reports false — granting nothing and incrementing nothing — when the
// task is unknown or already completed. Completion is terminal.
//
// Complete deliberately does not re-check the inventory; the caller verifies
// and consumes required items immediately before calling it.
func (p *Progress) Complete(id string) (reward string, ok bool) {
	t, found := p.tasks[id]
	if !found || t.Completed {
		return "", false
	}
	t.Completed = true
	p.completedTasks++
	return t.Reward, true
}

// Percent returns the completion percentage in [0, 100]. A puzzle with no
// tasks reports 0.
func (p *Progress) Percent() float64 {
	if p.totalTasks == 0 {
		return 0
	}
	return float64(p.completedTasks) / float64(p.totalTasks) * 100
}

// Solved reports whether every task has been completed.
func (p *Progress) Solved() bool {
	return p.completedTasks == p.totalTasks
}
