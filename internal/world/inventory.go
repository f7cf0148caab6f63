package world

import "strings"

// Role templates for starting gear. A character's role is the last word of
// its name ("Korga the Builder" has role Builder); unknown roles fall back to
// Wanderer.
var roleItems = map[string][]string{
	"Builder": {
		"Craftsman's hammer",
		"Set of precision tools",
		"Blueprint journal",
		"Enchanted measuring tape",
	},
	"Whisperer": {
		"Mystic communication crystal",
		"Essence collector",
		"Book of whispered secrets",
		"Spirit-touched amulet",
	},
	"Brave": {
		"Enchanted shield",
		"Warrior's medallion",
		"Healing poultice",
		"Courage charm",
	},
	"Wise": {
		"Ancient tome",
		"Wisdom crystal",
		"Scroll case",
		"Memory stones",
	},
	"Wanderer": {
		"Traveler's compass",
		"Weather-worn map",
		"Survival kit",
		"Lucky charm",
	},
}

// Extra gear keyed by a substring of the world name.
var worldFlavourItems = map[string][]string{
	"Ignisia":   {"Fire-resistant cloak", "Magma compass"},
	"Aquaria":   {"Water breathing charm", "Pearl compass"},
	"Mechanica": {"Clockwork assistant", "Steam-powered toolkit"},
	"Terranova": {"Nature's blessing stone", "Living compass"},
	"Etheria":   {"Ethereal crystal", "Void compass"},
}

// startingGold is granted to every character regardless of role.
const startingGold = 10

// maxStartingItems caps the number of named items (gold excluded) so flavour
// items never bloat the starting pack.
const maxStartingItems = 5

// RoleOf extracts the role from a character name. The last whitespace-separated
// word is the role; an empty name yields "Wanderer".
func RoleOf(characterName string) string {
	fields := strings.Fields(characterName)
	if len(fields) == 0 {
		return "Wanderer"
	}
	role := fields[len(fields)-1]
	if _, ok := roleItems[role]; !ok {
		return "Wanderer"
	}
	return role
}

// StartingInventory builds the item counts a character begins play with,
// combining the role template with any world-flavour gear.
func StartingInventory(characterName, worldName string) map[string]int {
	items := append([]string(nil), roleItems[RoleOf(characterName)]...)
	for marker, extra := range worldFlavourItems {
		if strings.Contains(worldName, marker) {
			items = append(items, extra...)
			break
		}
	}
	if len(items) > maxStartingItems {
		items = items[:maxStartingItems]
	}

	inv := make(map[string]int, len(items)+1)
	inv["gold"] = startingGold
	for _, it := range items {
		inv[it]++
	}
	return inv
}
