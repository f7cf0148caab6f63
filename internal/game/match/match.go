// Package match maps free-text player actions onto at most one available
// task from the puzzle catalogue.
//
// Matching is per-task-sequential: tasks are tried in catalogue order, and
// for each task the rules below are applied in priority order, first hit
// wins. An earlier rule on a later task never loses to a later rule on an
// earlier task being "better" — there is no cross-rule scoring.
//
//  1. Exact match: the normalised action equals the task description.
//  2. Keyword overlap: the action and description share at least
//     [WithOverlapThreshold] significant words.
//  3. Similarity ratio: the Jaccard ratio of the two word sets is at least
//     [WithSimilarityThreshold].
//  4. Item-use shortcut: "use <item>" where <item> occurs in the task's
//     required-item field.
//
// When no task matches, the matcher declines and the caller falls through
// to freeform narration.
package match

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/sagewright/colossi/internal/game/inventory"
	"github.com/sagewright/colossi/internal/game/puzzle"
)

const (
	defaultOverlapThreshold    = 2
	defaultSimilarityThreshold = 0.5

	// fuzzyItemThreshold is the Jaro-Winkler score above which a slightly
	// misspelled item name in a "use <item>" action still resolves against
	// an inventory key.
	fuzzyItemThreshold = 0.88
)

// usePrefix marks the item-use action form, matched case-insensitively.
const usePrefix = "use "

// Option is a functional option for [New].
type Option func(*Matcher)

// WithOverlapThreshold sets the minimum number of shared words required by
// the keyword-overlap rule. Default: 2. Stricter catalogues with long,
// samey descriptions may want 4.
func WithOverlapThreshold(n int) Option {
	return func(m *Matcher) { m.overlapThreshold = n }
}

// WithSimilarityThreshold sets the minimum Jaccard ratio required by the
// similarity rule. Default: 0.5.
func WithSimilarityThreshold(ratio float64) Option {
	return func(m *Matcher) { m.similarityThreshold = ratio }
}

// Matcher selects tasks for free-text actions. It is read-only after
// construction and safe for concurrent use.
type Matcher struct {
	overlapThreshold    int
	similarityThreshold float64
}

// New returns a Matcher with the supplied options applied over the defaults.
func New(opts ...Option) *Matcher {
	m := &Matcher{
		overlapThreshold:    defaultOverlapThreshold,
		similarityThreshold: defaultSimilarityThreshold,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match returns the first available task the action selects, or false when
// the matcher declines. available is tried in the order given.
func (m *Matcher) Match(action string, available []puzzle.Task) (puzzle.Task, bool) {
	norm := Normalize(action)
	if norm == "" || len(available) == 0 {
		return puzzle.Task{}, false
	}
	actionWords := wordSet(norm)
	useItem := UseTarget(action)

	for _, task := range available {
		desc := strings.ToLower(task.Description)

		// Rule 1: exact description match.
		if norm == desc {
			return task, true
		}

		// Rule 2: significant keyword overlap.
		descWords := wordSet(desc)
		overlap := intersectionSize(actionWords, descWords)
		if overlap >= m.overlapThreshold {
			return task, true
		}

		// Rule 3: Jaccard similarity of the word sets.
		union := len(actionWords) + len(descWords) - overlap
		if union > 0 && float64(overlap)/float64(union) >= m.similarityThreshold {
			return task, true
		}

		// Rule 4: "use <item>" against the required-item field.
		if useItem != "" && strings.Contains(strings.ToLower(task.RequiredItem), useItem) {
			return task, true
		}
	}
	return puzzle.Task{}, false
}

// Normalize trims surrounding whitespace and quotes and lower-cases the
// action for comparison.
func Normalize(action string) string {
	action = strings.TrimSpace(action)
	action = strings.Trim(action, `"'`)
	return strings.ToLower(strings.TrimSpace(action))
}

// UseTarget extracts the item name from a "use <item>" action, normalised
// to lower case. It returns "" when the action has a different form.
func UseTarget(action string) string {
	norm := strings.TrimSpace(action)
	if len(norm) < len(usePrefix) || !strings.EqualFold(norm[:len(usePrefix)], usePrefix) {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(norm[len(usePrefix):]))
}

// ResolveItem finds the inventory entry a spoken item name refers to,
// tolerating 1-2 character typos via Jaro-Winkler similarity. It returns
// the canonical stored name. Exact (case-insensitive) hits win outright;
// otherwise the highest-scoring key above the fuzzy threshold is chosen.
func ResolveItem(spoken string, inv *inventory.Inventory) (string, bool) {
	spoken = strings.ToLower(strings.TrimSpace(spoken))
	if spoken == "" {
		return "", false
	}
	if name, ok := inv.Resolve(spoken); ok {
		return name, true
	}

	best := ""
	bestScore := 0.0
	for _, name := range inv.Names() {
		score := matchr.JaroWinkler(spoken, strings.ToLower(name), false)
		if score > bestScore {
			best, bestScore = name, score
		}
	}
	if bestScore >= fuzzyItemThreshold {
		return best, true
	}
	return "", false
}

// wordSet tokenises s into its distinct lower-cased words, stripping
// punctuation stuck to word edges.
func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(s)) {
		w = strings.Trim(w, `.,!?;:"'()`)
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

func intersectionSize(a, b map[string]struct{}) int {
	if len(b) < len(a) {
		a, b = b, a
	}
	n := 0
	for w := range a {
		if _, ok := b[w]; ok {
			n++
		}
	}
	return n
}
