// Package inventory implements the per-session item store: a mapping from
// item name to a strictly positive count.
//
// Lookups are case-insensitive while the stored key keeps the casing it was
// first added with, so "Magma Compass" and "magma compass" address the same
// entry but snapshots display the canonical name. A count can never be
// observed at zero or below: removals that would go negative are rejected,
// and a removal that lands exactly on zero deletes the key.
//
// An Inventory is not safe for concurrent use; the session layer serialises
// access per session.
package inventory

import (
	"fmt"
	"sort"
	"strings"
)

// Change is a single signed adjustment to an item count. Positive Delta adds,
// negative Delta removes.
type Change struct {
	Item  string
	Delta int
}

// Inventory maps canonical item names to positive counts.
type Inventory struct {
	// counts is keyed by the lower-cased item name.
	counts map[string]int

	// canonical maps the lower-cased key back to the display casing the item
	// was first stored with.
	canonical map[string]string
}

// New returns an empty Inventory.
func New() *Inventory {
	return &Inventory{
		counts:    make(map[string]int),
		canonical: make(map[string]string),
	}
}

// FromMap builds an Inventory from a name → count map, skipping entries with
// a non-positive count.
func FromMap(items map[string]int) *Inventory {
	inv := New()
	for name, n := range items {
		if n > 0 {
			_ = inv.Add(name, n)
		}
	}
	return inv
}

// Has reports whether the inventory holds at least qty of item. A qty of
// zero or less is treated as 1.
func (inv *Inventory) Has(item string, qty int) bool {
	if qty <= 0 {
		qty = 1
	}
	return inv.counts[fold(item)] >= qty
}

// Count returns the current count for item, or 0 when absent.
func (inv *Inventory) Count(item string) int {
	return inv.counts[fold(item)]
}

// Resolve returns the canonical name stored for item and whether the item is
// present. The lookup is case-insensitive.
func (inv *Inventory) Resolve(item string) (string, bool) {
	name, ok := inv.canonical[fold(item)]
	return name, ok
}

// Add increases the count for item by amount, creating the entry if absent.
// amount must be strictly positive.
func (inv *Inventory) Add(item string, amount int) error {
	if amount <= 0 {
		return fmt.Errorf("inventory: add %q: amount must be positive, got %d", item, amount)
	}
	item = strings.TrimSpace(item)
	if item == "" {
		return fmt.Errorf("inventory: add: item name must not be empty")
	}
	key := fold(item)
	if _, ok := inv.canonical[key]; !ok {
		inv.canonical[key] = item
	}
	inv.counts[key] += amount
	return nil
}

// Remove decreases the count for item by amount. It reports false and leaves
// the inventory unchanged when amount is not positive or the resulting count
// would be negative. Reaching exactly zero deletes the entry.
func (inv *Inventory) Remove(item string, amount int) bool {
	if amount <= 0 {
		return false
	}
	key := fold(item)
	current, ok := inv.counts[key]
	if !ok || current < amount {
		return false
	}
	if current == amount {
		delete(inv.counts, key)
		delete(inv.canonical, key)
		return true
	}
	inv.counts[key] = current - amount
	return true
}

// Apply executes a batch of changes atomically: every change is validated
// against the would-be resulting counts first, and only if the whole batch is
// payable is any mutation made. A failed batch leaves the inventory exactly
// as it was.
func (inv *Inventory) Apply(changes []Change) error {
	// Validate pass over projected counts.
	projected := make(map[string]int, len(changes))
	for i, ch := range changes {
		if ch.Delta == 0 {
			return fmt.Errorf("inventory: apply: change %d (%q) has zero delta", i, ch.Item)
		}
		if strings.TrimSpace(ch.Item) == "" {
			return fmt.Errorf("inventory: apply: change %d has an empty item name", i)
		}
		key := fold(ch.Item)
		if _, ok := projected[key]; !ok {
			projected[key] = inv.counts[key]
		}
		projected[key] += ch.Delta
		if projected[key] < 0 {
			return fmt.Errorf("inventory: apply: change %d would drive %q below zero", i, ch.Item)
		}
	}

	// Apply pass. Cannot fail after validation.
	for _, ch := range changes {
		if ch.Delta > 0 {
			_ = inv.Add(ch.Item, ch.Delta)
		} else {
			inv.Remove(ch.Item, -ch.Delta)
		}
	}
	return nil
}

// Len returns the number of distinct items held.
func (inv *Inventory) Len() int {
	return len(inv.counts)
}

// Items returns a snapshot of the inventory keyed by canonical item name.
func (inv *Inventory) Items() map[string]int {
	snap := make(map[string]int, len(inv.counts))
	for key, n := range inv.counts {
		snap[inv.canonical[key]] = n
	}
	return snap
}

// Names returns the canonical item names in sorted order.
func (inv *Inventory) Names() []string {
	names := make([]string, 0, len(inv.canonical))
	for _, name := range inv.canonical {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// fold normalises an item name for lookup.
func fold(item string) string {
	return strings.ToLower(strings.TrimSpace(item))
}
