/*
PURPOSE:
  Resolves OT-2 deck slot centers from the embedded deck definition.

REQUIREMENTS:
  User-specified:
  - Move-to-slot targets the slot center in deck coordinates.

  Implementation-discovered:
  - Center = position + boundingBox/2 in x and y; z is the slot floor.

ARCHITECTURE INTEGRATION:
  - Called by: internal/smoketest/smoketest.go
  - Uses: internal/assets

ERROR HANDLING:
  - Unknown slot ids are an explicit error; never guess coordinates that
    a pipette will be driven to.

IMPLEMENTATION RULES:
  - Parse the definition lazily, once.

USAGE:
  p, err := slotCenter("5")

SELF-HEALING INSTRUCTIONS:
  - If slots stop resolving, validate internal/assets/decks/ot2_standard.json.

RELATED FILES:
  - internal/assets/assets.go

MAINTENANCE:
  - Update alongside the embedded deck definition.
*/

package smoketest

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"sync"

	"github.com/daryltucker/ot2-runner/internal/assets"
)

// point is a position in deck coordinates (mm).
type point struct {
	X, Y, Z float64
}

var (
	deckOnce  sync.Once
	deckSlots map[string]point
	deckErr   error
)

func loadDeck() {
	data, err := fs.ReadFile(assets.Decks, "decks/ot2_standard.json")
	if err != nil {
		deckErr = fmt.Errorf("failed to read embedded deck definition: %w", err)
		return
	}

	var deck struct {
		Locations struct {
			OrderedSlots []struct {
				ID          string     `json:"id"`
				Position    [3]float64 `json:"position"`
				BoundingBox struct {
					XDimension float64 `json:"xDimension"`
					YDimension float64 `json:"yDimension"`
				} `json:"boundingBox"`
			} `json:"orderedSlots"`
		} `json:"locations"`
	}
	if err := json.Unmarshal(data, &deck); err != nil {
		deckErr = fmt.Errorf("failed to parse embedded deck definition: %w", err)
		return
	}

	deckSlots = make(map[string]point, len(deck.Locations.OrderedSlots))
	for _, slot := range deck.Locations.OrderedSlots {
		deckSlots[slot.ID] = point{
			X: slot.Position[0] + slot.BoundingBox.XDimension/2,
			Y: slot.Position[1] + slot.BoundingBox.YDimension/2,
			Z: slot.Position[2],
		}
	}
}

// slotCenter returns the center of a deck slot in deck coordinates.
func slotCenter(slotID string) (point, error) {
	deckOnce.Do(loadDeck)
	if deckErr != nil {
		return point{}, deckErr
	}
	p, ok := deckSlots[slotID]
	if !ok {
		return point{}, fmt.Errorf("slot %s not present in OT-2 deck definition", slotID)
	}
	return p, nil
}
