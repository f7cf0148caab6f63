package inventory_test

import (
	"testing"

	"github.com/sagewright/colossi/internal/game/inventory"
)

func TestAdd(t *testing.T) {
	t.Parallel()

	t.Run("creates and accumulates", func(t *testing.T) {
		t.Parallel()
		inv := inventory.New()
		if err := inv.Add("gold", 5); err != nil {
			t.Fatalf("Add: unexpected error: %v", err)
		}
		if err := inv.Add("gold", 3); err != nil {
			t.Fatalf("Add: unexpected error: %v", err)
		}
		if got := inv.Count("gold"); got != 8 {
			t.Fatalf("Count: expected 8, got %d", got)
		}
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		t.Parallel()
		inv := inventory.New()
		if err := inv.Add("gold", 0); err == nil {
			t.Fatal("Add with zero amount: expected error")
		}
		if err := inv.Add("gold", -2); err == nil {
			t.Fatal("Add with negative amount: expected error")
		}
		if inv.Len() != 0 {
			t.Fatalf("expected empty inventory, got %d items", inv.Len())
		}
	})

	t.Run("keeps first casing as canonical", func(t *testing.T) {
		t.Parallel()
		inv := inventory.New()
		if err := inv.Add("Magma Compass", 1); err != nil {
			t.Fatalf("Add: unexpected error: %v", err)
		}
		if err := inv.Add("magma compass", 1); err != nil {
			t.Fatalf("Add: unexpected error: %v", err)
		}
		items := inv.Items()
		if len(items) != 1 {
			t.Fatalf("expected one distinct item, got %v", items)
		}
		if items["Magma Compass"] != 2 {
			t.Fatalf("expected canonical key %q with count 2, got %v", "Magma Compass", items)
		}
	})
}

func TestHas(t *testing.T) {
	t.Parallel()

	inv := inventory.New()
	if err := inv.Add("torch", 2); err != nil {
		t.Fatalf("Add: unexpected error: %v", err)
	}

	if !inv.Has("torch", 1) {
		t.Error("Has(torch, 1): expected true")
	}
	if !inv.Has("TORCH", 2) {
		t.Error("Has is expected to be case-insensitive")
	}
	if inv.Has("torch", 3) {
		t.Error("Has(torch, 3): expected false")
	}
	if inv.Has("rope", 1) {
		t.Error("Has(rope): expected false for absent item")
	}
	if !inv.Has("torch", 0) {
		t.Error("Has with qty 0 should behave like qty 1")
	}
}

func TestRemove(t *testing.T) {
	t.Parallel()

	t.Run("never goes negative", func(t *testing.T) {
		t.Parallel()
		inv := inventory.New()
		if err := inv.Add("rope", 1); err != nil {
			t.Fatalf("Add: unexpected error: %v", err)
		}
		if inv.Remove("rope", 2) {
			t.Fatal("Remove beyond count: expected false")
		}
		if got := inv.Count("rope"); got != 1 {
			t.Fatalf("failed Remove must not mutate; count = %d", got)
		}
	})

	t.Run("deletes key at exactly zero", func(t *testing.T) {
		t.Parallel()
		inv := inventory.New()
		if err := inv.Add("sword", 1); err != nil {
			t.Fatalf("Add: unexpected error: %v", err)
		}
		if !inv.Remove("sword", 1) {
			t.Fatal("Remove: expected success")
		}
		if _, ok := inv.Resolve("sword"); ok {
			t.Fatal("key should be deleted, not stored at zero")
		}
		if inv.Len() != 0 {
			t.Fatalf("expected empty inventory, got %v", inv.Items())
		}
	})

	t.Run("partial removal keeps remainder", func(t *testing.T) {
		t.Parallel()
		inv := inventory.New()
		if err := inv.Add("gold", 5); err != nil {
			t.Fatalf("Add: unexpected error: %v", err)
		}
		if !inv.Remove("gold", 3) {
			t.Fatal("Remove: expected success")
		}
		if got := inv.Count("gold"); got != 2 {
			t.Fatalf("expected 2 gold, got %d", got)
		}
	})

	t.Run("rejects non-positive amounts", func(t *testing.T) {
		t.Parallel()
		inv := inventory.New()
		if err := inv.Add("gold", 1); err != nil {
			t.Fatalf("Add: unexpected error: %v", err)
		}
		if inv.Remove("gold", 0) || inv.Remove("gold", -1) {
			t.Fatal("Remove with non-positive amount: expected false")
		}
	})
}

func TestApply(t *testing.T) {
	t.Parallel()

	t.Run("batch is atomic on failure", func(t *testing.T) {
		t.Parallel()
		inv := inventory.New()
		if err := inv.Add("torch", 1); err != nil {
			t.Fatalf("Add: unexpected error: %v", err)
		}
		err := inv.Apply([]inventory.Change{
			{Item: "torch", Delta: -1},
			{Item: "rope", Delta: -1}, // unpayable
		})
		if err == nil {
			t.Fatal("Apply: expected error for unpayable batch")
		}
		if got := inv.Count("torch"); got != 1 {
			t.Fatalf("failed batch must not mutate; torch = %d", got)
		}
	})

	t.Run("mixed batch applies in order", func(t *testing.T) {
		t.Parallel()
		inv := inventory.New()
		if err := inv.Add("gold", 5); err != nil {
			t.Fatalf("Add: unexpected error: %v", err)
		}
		err := inv.Apply([]inventory.Change{
			{Item: "gold", Delta: -3},
			{Item: "healing poultice", Delta: 1},
		})
		if err != nil {
			t.Fatalf("Apply: unexpected error: %v", err)
		}
		if got := inv.Count("gold"); got != 2 {
			t.Fatalf("expected 2 gold, got %d", got)
		}
		if !inv.Has("healing poultice", 1) {
			t.Fatal("expected healing poultice to be added")
		}
	})

	t.Run("spend-then-regain within one batch is payable", func(t *testing.T) {
		t.Parallel()
		inv := inventory.New()
		if err := inv.Add("key", 1); err != nil {
			t.Fatalf("Add: unexpected error: %v", err)
		}
		err := inv.Apply([]inventory.Change{
			{Item: "key", Delta: -1},
			{Item: "key", Delta: 1},
		})
		if err != nil {
			t.Fatalf("Apply: unexpected error: %v", err)
		}
		if got := inv.Count("key"); got != 1 {
			t.Fatalf("expected 1 key, got %d", got)
		}
	})

	t.Run("rejects zero delta", func(t *testing.T) {
		t.Parallel()
		inv := inventory.New()
		if err := inv.Apply([]inventory.Change{{Item: "gold", Delta: 0}}); err == nil {
			t.Fatal("Apply with zero delta: expected error")
		}
	})
}

func TestSnapshots(t *testing.T) {
	t.Parallel()

	inv := inventory.New()
	for _, item := range []string{"Cloth Pants", "Cloth Shirt"} {
		if err := inv.Add(item, 1); err != nil {
			t.Fatalf("Add: unexpected error: %v", err)
		}
	}
	if err := inv.Add("gold", 5); err != nil {
		t.Fatalf("Add: unexpected error: %v", err)
	}

	names := inv.Names()
	want := []string{"Cloth Pants", "Cloth Shirt", "gold"}
	if len(names) != len(want) {
		t.Fatalf("Names: expected %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("Names: expected %v, got %v", want, names)
		}
	}

	snap := inv.Items()
	snap["gold"] = 99
	if inv.Count("gold") != 5 {
		t.Fatal("Items snapshot must be a copy")
	}
}
