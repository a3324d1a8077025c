// Package board reconciles drag and tap input against a single canonical
// position. Tap pairs and drag gestures converge on one selection model;
// Play mode gates every mutation through the rules engine while Edit mode
// overwrites squares freely and re-synthesizes the position from occupancy.
package board

import (
	"github.com/deskchess/deskchess/internal/domain"
	"github.com/deskchess/deskchess/internal/rules"
)

// Mode selects the interaction regime. Play and Edit are mutually
// exclusive; switching between them clears selection and highlights.
type Mode int

const (
	ModePlay Mode = iota
	ModeEdit
)

func (m Mode) String() string {
	if m == ModeEdit {
		return "edit"
	}
	return "play"
}

// ParseMode accepts "play" and "edit".
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "play":
		return ModePlay, true
	case "edit":
		return ModeEdit, true
	}
	return ModePlay, false
}

// Surface is the rendering capability the controller drives. The widget
// behind it owns pixels and animation; the controller only pushes
// occupancy snapshots and per-square highlight toggles.
type Surface interface {
	RenderSnapshot(occ domain.Occupancy)
	SetHighlight(sq domain.Square, on bool)
	Flip()
}

// PositionChange is the single notification emitted per accepted
// mutation. The flags come from the rules engine, never from the
// controller.
type PositionChange struct {
	FEN       string       `json:"fen"`
	Turn      domain.Color `json:"turn"`
	Check     bool         `json:"check"`
	Checkmate bool         `json:"checkmate"`
	Stalemate bool         `json:"stalemate"`
	Draw      bool         `json:"draw"`
}

func changeFrom(fen string, turn domain.Color, f rules.Flags) PositionChange {
	return PositionChange{
		FEN:       fen,
		Turn:      turn,
		Check:     f.Check,
		Checkmate: f.Checkmate,
		Stalemate: f.Stalemate,
		Draw:      f.Draw,
	}
}
