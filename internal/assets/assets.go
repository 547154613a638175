/*
PURPOSE:
  Embeds static data files shipped inside the binary.
  Currently: the OT-2 standard deck definition used by the smoke test.

REQUIREMENTS:
  User-specified:
  - Smoke test must work offline; no fetching deck geometry from anywhere.

  Implementation-discovered:
  - go:embed keeps the binary self-contained.

ARCHITECTURE INTEGRATION:
  - Consumed by: internal/smoketest

ERROR HANDLING:
  - N/A (embed failures are compile-time).

IMPLEMENTATION RULES:
  - Data only; no logic in this package.

USAGE:
  data, err := fs.ReadFile(assets.Decks, "decks/ot2_standard.json")

SELF-HEALING INSTRUCTIONS:
  - If embed fails, verify the decks/ directory exists next to this file.

RELATED FILES:
  - internal/smoketest/deck.go

MAINTENANCE:
  - Update the deck definition if Opentrons revises OT-2 slot geometry.
*/

package assets

import "embed"

// Decks holds embedded deck definition JSON files.
//
//go:embed decks
var Decks embed.FS
