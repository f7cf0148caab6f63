package narrate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sagewright/colossi/internal/game/inventory"
)

// deltaMarker introduces the machine-readable trailer in narration output.
const deltaMarker = "ITEM_DELTAS:"

// maxDeltaMagnitude caps how much a single narration may move one item count.
const maxDeltaMagnitude = 5

type deltaTrailer struct {
	ItemDeltas []struct {
		Item  string `json:"item"`
		Delta int    `json:"delta"`
	} `json:"item_deltas"`
}

// extractDeltas splits narration output into prose and declared inventory
// changes. The trailer must be well-formed JSON with only the documented
// fields; a present but malformed trailer is an error, and the prose before
// the marker is still returned so the story survives.
func extractDeltas(content string) (string, []inventory.Change, error) {
	idx := strings.LastIndex(content, deltaMarker)
	if idx < 0 {
		return strings.TrimSpace(content), nil, nil
	}

	prose := strings.TrimSpace(content[:idx])
	raw := strings.TrimSpace(content[idx+len(deltaMarker):])

	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	var trailer deltaTrailer
	if err := dec.Decode(&trailer); err != nil {
		return prose, nil, fmt.Errorf("narrate: decode item deltas: %w", err)
	}

	changes := make([]inventory.Change, 0, len(trailer.ItemDeltas))
	for _, d := range trailer.ItemDeltas {
		item := strings.TrimSpace(d.Item)
		if item == "" {
			return prose, nil, fmt.Errorf("narrate: item delta with empty item name")
		}
		if d.Delta == 0 {
			continue
		}
		if d.Delta > maxDeltaMagnitude || d.Delta < -maxDeltaMagnitude {
			return prose, nil, fmt.Errorf("narrate: item delta %d for %q out of range", d.Delta, item)
		}
		changes = append(changes, inventory.Change{Item: item, Delta: d.Delta})
	}
	return prose, changes, nil
}

// ValidateDeltas rejects state changes the story cannot justify. Currency
// never increases through narration alone, and a narration may not touch more
// items than it could plausibly describe.
func ValidateDeltas(deltas []inventory.Change) error {
	if len(deltas) > maxDeltaMagnitude {
		return fmt.Errorf("narrate: %d item deltas exceed limit", len(deltas))
	}
	for _, d := range deltas {
		if strings.EqualFold(d.Item, "gold") && d.Delta > 0 {
			return fmt.Errorf("narrate: narration may not grant gold")
		}
	}
	return nil
}
