package server

import (
	"github.com/deskchess/deskchess/internal/board"
	"github.com/deskchess/deskchess/internal/cloudeval"
	"github.com/deskchess/deskchess/internal/domain"
	"github.com/deskchess/deskchess/internal/uci"
)

// inboundMessage is one client input event. Type selects which fields
// matter; the rest stay empty.
type inboundMessage struct {
	Type     string `json:"type"`
	Square   string `json:"square,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	OffBoard bool   `json:"off_board,omitempty"`
	Piece    string `json:"piece,omitempty"` // FEN letter for spare drops
	Mode     string `json:"mode,omitempty"`
	Color    string `json:"color,omitempty"`
	FEN      string `json:"fen,omitempty"`
}

const (
	msgTap        = "tap"
	msgDragStart  = "drag-start"
	msgDrop       = "drop"
	msgHoverEnter = "hover-enter"
	msgHoverLeave = "hover-leave"
	msgMode       = "mode"
	msgTurn       = "turn"
	msgSpare      = "spare"
	msgLoad       = "load"
	msgReset      = "reset"
	msgClear      = "clear"
	msgFlip       = "flip"
	msgRender     = "render"
)

// outboundMessage is one server-to-client frame.
type outboundMessage struct {
	Type      string                `json:"type"`
	Position  *board.PositionChange `json:"position,omitempty"`
	Analysis  *uci.Update           `json:"analysis,omitempty"`
	Cloud     *cloudeval.Eval       `json:"cloud,omitempty"`
	Occupancy map[string]string     `json:"occupancy,omitempty"`
	Square    string                `json:"square,omitempty"`
	On        *bool                 `json:"on,omitempty"`
	Accepted  *bool                 `json:"accepted,omitempty"`
	Error     string                `json:"error,omitempty"`
	PNG       string                `json:"png,omitempty"`
}

const (
	evtPosition    = "position"
	evtAnalysis    = "analysis"
	evtCloudEval   = "cloud-eval"
	evtEngineReady = "engine-ready"
	evtEngineError = "engine-error"
	evtOccupancy   = "occupancy"
	evtHighlight   = "highlight"
	evtFlip        = "flip"
	evtLoadResult  = "load-result"
	evtDragPermit  = "drag-permit"
	evtRender      = "render"
)

// occupancyPayload flattens an occupancy to square-name keys with FEN
// piece letters.
func occupancyPayload(occ domain.Occupancy) map[string]string {
	out := make(map[string]string, len(occ))
	for sq, piece := range occ {
		out[sq.String()] = string(piece.FENRune())
	}
	return out
}

func boolPtr(v bool) *bool { return &v }
