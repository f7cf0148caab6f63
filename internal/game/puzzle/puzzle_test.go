package puzzle_test

import (
	"testing"

	"github.com/sagewright/colossi/internal/game/inventory"
	"github.com/sagewright/colossi/internal/game/puzzle"
)

func testTemplate() *puzzle.Template {
	return &puzzle.Template{
		MainPuzzle:           "Wake the sleeping Colossus",
		SolutionRequirements: []string{"Gather the beast-song relics", "Sound them at the crown plaza"},
		Tasks: []puzzle.TemplateTask{
			{
				ID:           "task-torch",
				Title:        "Light in the dark",
				Description:  "Find clues among the ancient ruins",
				RequiredItem: "torch",
				Reward:       "Ember sigil",
			},
			{
				ID:           "task-rope",
				Title:        "The descent",
				Description:  "Climb down into the beast's ear canal",
				RequiredItem: "rope",
				Reward:       "Echo shell",
			},
			{
				ID:           "task-final",
				Title:        "The waking song",
				Description:  "Perform the waking song with every relic",
				RequiredItem: puzzle.AllItemsSentinel,
				Reward:       "Crown of the Colossus",
			},
		},
	}
}

func TestNewProgress(t *testing.T) {
	t.Parallel()

	t.Run("valid template", func(t *testing.T) {
		t.Parallel()
		p, err := puzzle.NewProgress(testTemplate())
		if err != nil {
			t.Fatalf("NewProgress: unexpected error: %v", err)
		}
		if p.TotalTasks() != 3 {
			t.Fatalf("TotalTasks: expected 3, got %d", p.TotalTasks())
		}
		if p.CompletedTasks() != 0 {
			t.Fatalf("CompletedTasks: expected 0, got %d", p.CompletedTasks())
		}
		if p.Solved() {
			t.Fatal("fresh puzzle must not be solved")
		}
	})

	t.Run("missing fields are fatal", func(t *testing.T) {
		t.Parallel()
		tpl := testTemplate()
		tpl.Tasks[1].Reward = ""
		tpl.Tasks[2].ID = ""
		if _, err := puzzle.NewProgress(tpl); err == nil {
			t.Fatal("NewProgress: expected error for malformed template")
		}
	})

	t.Run("duplicate ids are fatal", func(t *testing.T) {
		t.Parallel()
		tpl := testTemplate()
		tpl.Tasks[1].ID = tpl.Tasks[0].ID
		if _, err := puzzle.NewProgress(tpl); err == nil {
			t.Fatal("NewProgress: expected error for duplicate task id")
		}
	})

	t.Run("nil template", func(t *testing.T) {
		t.Parallel()
		if _, err := puzzle.NewProgress(nil); err == nil {
			t.Fatal("NewProgress(nil): expected error")
		}
	})
}

func TestCanPerform(t *testing.T) {
	t.Parallel()

	p, err := puzzle.NewProgress(testTemplate())
	if err != nil {
		t.Fatalf("NewProgress: %v", err)
	}

	inv := inventory.New()
	if p.CanPerform("task-torch", inv) {
		t.Error("task-torch should be blocked without a torch")
	}
	if p.CanPerform("no-such-task", inv) {
		t.Error("unknown task must never be performable")
	}

	if err := inv.Add("torch", 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !p.CanPerform("task-torch", inv) {
		t.Error("task-torch should be performable with a torch")
	}

	// Capstone needs the union of all catalogue items.
	if p.CanPerform("task-final", inv) {
		t.Error("capstone should require every catalogue item, rope is missing")
	}
	if err := inv.Add("Rope", 1); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if !p.CanPerform("task-final", inv) {
		t.Error("capstone should be performable with torch and rope")
	}
}

func TestAllItemsNeverAvailableWithoutFullSet(t *testing.T) {
	t.Parallel()

	p, err := puzzle.NewProgress(testTemplate())
	if err != nil {
		t.Fatalf("NewProgress: %v", err)
	}

	// The player never acquires a torch; only rope, forever.
	inv := inventory.New()
	if err := inv.Add("rope", 10); err != nil {
		t.Fatalf("Add: %v", err)
	}

	for i := 0; i < 3; i++ {
		if p.CanPerform("task-final", inv) {
			t.Fatal("capstone must stay blocked while torch is missing")
		}
		for _, task := range p.Available(inv) {
			if task.ID == "task-final" {
				t.Fatal("Available must never include the blocked capstone")
			}
		}
	}
}

func TestAvailableOrderAndFiltering(t *testing.T) {
	t.Parallel()

	p, err := puzzle.NewProgress(testTemplate())
	if err != nil {
		t.Fatalf("NewProgress: %v", err)
	}
	inv := inventory.FromMap(map[string]int{"torch": 1, "rope": 1})

	got := p.Available(inv)
	want := []string{"task-torch", "task-rope", "task-final"}
	if len(got) != len(want) {
		t.Fatalf("Available: expected %d tasks, got %d", len(want), len(got))
	}
	for i, task := range got {
		if task.ID != want[i] {
			t.Fatalf("Available order: expected %v, got %s at %d", want, task.ID, i)
		}
	}

	// Completing a task removes it from availability.
	if _, ok := p.Complete("task-torch"); !ok {
		t.Fatal("Complete: expected success")
	}
	for _, task := range p.Available(inv) {
		if task.ID == "task-torch" {
			t.Fatal("completed task must not be available")
		}
	}
}

func TestCompleteGrantsRewardExactlyOnce(t *testing.T) {
	t.Parallel()

	p, err := puzzle.NewProgress(testTemplate())
	if err != nil {
		t.Fatalf("NewProgress: %v", err)
	}

	reward, ok := p.Complete("task-rope")
	if !ok || reward != "Echo shell" {
		t.Fatalf("Complete: expected (Echo shell, true), got (%q, %v)", reward, ok)
	}
	if p.CompletedTasks() != 1 {
		t.Fatalf("CompletedTasks: expected 1, got %d", p.CompletedTasks())
	}

	// Second attempt is a failing no-op.
	if reward, ok := p.Complete("task-rope"); ok || reward != "" {
		t.Fatalf("repeat Complete: expected failure, got (%q, %v)", reward, ok)
	}
	if p.CompletedTasks() != 1 {
		t.Fatalf("repeat Complete must not double count; got %d", p.CompletedTasks())
	}

	if _, ok := p.Complete("no-such-task"); ok {
		t.Fatal("Complete of unknown task: expected failure")
	}
}

func TestPercentMonotonicAndSolved(t *testing.T) {
	t.Parallel()

	p, err := puzzle.NewProgress(testTemplate())
	if err != nil {
		t.Fatalf("NewProgress: %v", err)
	}

	last := p.Percent()
	if last != 0 {
		t.Fatalf("fresh Percent: expected 0, got %v", last)
	}
	for _, id := range []string{"task-torch", "task-rope", "task-final"} {
		if _, ok := p.Complete(id); !ok {
			t.Fatalf("Complete(%s): expected success", id)
		}
		if got := p.Percent(); got < last {
			t.Fatalf("Percent decreased from %v to %v", last, got)
		} else {
			last = got
		}
	}
	if last != 100 {
		t.Fatalf("final Percent: expected 100, got %v", last)
	}
	if !p.Solved() {
		t.Fatal("expected puzzle to be solved")
	}

	// Solved is sticky: failed completion attempts cannot unsolve.
	p.Complete("task-torch")
	if !p.Solved() {
		t.Fatal("Solved must remain true")
	}
}

func TestValidateRejectsEmptyCatalogue(t *testing.T) {
	t.Parallel()

	// A template with no tasks would start every session already solved.
	tpl := &puzzle.Template{MainPuzzle: "Contemplate the void"}
	if err := tpl.Validate(); err == nil {
		t.Fatal("Validate: expected error for task-less template")
	}
	if _, err := puzzle.NewProgress(tpl); err == nil {
		t.Fatal("NewProgress: expected error for task-less template")
	}
}

func TestRequiredItems(t *testing.T) {
	t.Parallel()

	tpl := testTemplate()
	tpl.Tasks[0].RequiredItem = "torch, flint"
	p, err := puzzle.NewProgress(tpl)
	if err != nil {
		t.Fatalf("NewProgress: %v", err)
	}

	items, ok := p.RequiredItems("task-torch")
	if !ok || len(items) != 2 || items[0] != "torch" || items[1] != "flint" {
		t.Fatalf("RequiredItems: expected [torch flint], got %v (%v)", items, ok)
	}

	// Sentinel expansion covers the distinct catalogue items.
	items, ok = p.RequiredItems("task-final")
	if !ok {
		t.Fatal("RequiredItems: expected capstone task to exist")
	}
	want := map[string]bool{"torch": true, "flint": true, "rope": true}
	if len(items) != len(want) {
		t.Fatalf("RequiredItems sentinel: expected %v, got %v", want, items)
	}
	for _, item := range items {
		if !want[item] {
			t.Fatalf("RequiredItems sentinel: unexpected item %q", item)
		}
	}

	if _, ok := p.RequiredItems("nope"); ok {
		t.Fatal("RequiredItems of unknown task: expected false")
	}
}
