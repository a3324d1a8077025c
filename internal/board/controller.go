package board

import (
	"go.uber.org/zap"

	"github.com/deskchess/deskchess/internal/domain"
	"github.com/deskchess/deskchess/internal/fen"
	"github.com/deskchess/deskchess/internal/obslog"
	"github.com/deskchess/deskchess/internal/rules"
)

// Controller owns selection, mode and highlight state. It is a strictly
// sequential consumer: the caller delivers one input event at a time and
// never overlaps two events.
type Controller struct {
	engine  rules.Engine
	surface Surface

	mode Mode

	selected    domain.Square
	hasSelected bool
	destSet     map[domain.Square]bool
	lit         []domain.Square

	hover    domain.Square
	hasHover bool

	// Edit mode works on a mirror of the occupancy; every mutation
	// re-synthesizes the canonical position from it.
	editOcc  domain.Occupancy
	editTurn domain.Color

	listeners []func(PositionChange)
}

func NewController(engine rules.Engine, surface Surface) *Controller {
	return &Controller{engine: engine, surface: surface, mode: ModePlay}
}

// OnPositionChanged registers a listener. Listeners run synchronously on
// the event's input path, once per accepted mutation.
func (c *Controller) OnPositionChanged(fn func(PositionChange)) {
	c.listeners = append(c.listeners, fn)
}

func (c *Controller) Mode() Mode { return c.mode }

// Position reports the current canonical position without mutating
// anything.
func (c *Controller) Position() PositionChange {
	return changeFrom(c.engine.FEN(), c.engine.Turn(), c.engine.Flags())
}

// SetMode switches the interaction regime. Selection and all highlight
// state are cleared unconditionally. Entering Edit snapshots the current
// occupancy as the working mirror and performs no structural validation.
func (c *Controller) SetMode(m Mode) {
	c.clearHover()
	c.clearSelection()
	c.mode = m
	if m == ModeEdit {
		c.editOcc = c.engine.Occupancy()
		c.editTurn = c.engine.Turn()
	}
}

// Selected reports the active selection, if any.
func (c *Controller) Selected() (domain.Square, bool) {
	return c.selected, c.hasSelected
}

// Occupancy returns the occupancy the surface currently shows.
func (c *Controller) Occupancy() domain.Occupancy {
	if c.mode == ModeEdit {
		return c.editOcc.Clone()
	}
	return c.engine.Occupancy()
}

// Tap drives the two-tap selection machine. Only Play mode consumes taps;
// Edit mode mutates through drags and spare-piece drops.
func (c *Controller) Tap(sq domain.Square) {
	if c.mode != ModePlay || !sq.Valid() {
		return
	}
	if !c.hasSelected {
		if c.ownPiece(sq) {
			c.selectSquare(sq)
		}
		return
	}
	if c.destSet[sq] {
		if res, ok := c.engine.TryMove(rules.Attempt{From: c.selected, To: sq}); ok {
			c.applyMove(res)
			return
		}
	}
	if sq != c.selected && c.ownPiece(sq) {
		c.selectSquare(sq)
		return
	}
	c.clearSelection()
}

// CanDrag reports whether a drag may start from the square. Play mode
// permits dragging only the side to move; Edit mode any occupied square.
func (c *Controller) CanDrag(sq domain.Square) bool {
	if !sq.Valid() {
		return false
	}
	if c.mode == ModeEdit {
		_, ok := c.editOcc[sq]
		return ok
	}
	return c.ownPiece(sq)
}

// Drop completes a drag. In Play mode the move goes through the rules
// engine; rejection reverts the piece visually with no mutation and no
// event. In Edit mode the target square's occupant is overwritten.
func (c *Controller) Drop(from, to domain.Square) {
	if !from.Valid() {
		return
	}
	if !to.Valid() {
		c.DropOffBoard(from)
		return
	}
	if c.mode == ModeEdit {
		piece, ok := c.editOcc[from]
		if !ok || from == to {
			return
		}
		delete(c.editOcc, from)
		c.editOcc[to] = piece
		c.resynthesize()
		return
	}
	if !c.ownPiece(from) {
		c.revert()
		return
	}
	res, ok := c.engine.TryMove(rules.Attempt{From: from, To: to})
	if !ok {
		c.revert()
		return
	}
	c.applyMove(res)
}

// DropOffBoard handles a drop outside the board boundary: removal in Edit
// mode, a visual revert in Play mode.
func (c *Controller) DropOffBoard(from domain.Square) {
	if c.mode != ModeEdit {
		c.revert()
		return
	}
	if _, ok := c.editOcc[from]; !ok {
		return
	}
	delete(c.editOcc, from)
	c.resynthesize()
}

// PlaceSpare drops a piece from the unlimited auxiliary supply onto a
// square, overwriting any occupant. Edit mode only.
func (c *Controller) PlaceSpare(p domain.Piece, to domain.Square) {
	if c.mode != ModeEdit || !to.Valid() || p.Kind == domain.KindNone {
		return
	}
	c.editOcc[to] = p
	c.resynthesize()
}

// SetEditTurn supplies the side to move used when re-synthesizing edit
// positions; the controller cannot infer it from occupancy.
func (c *Controller) SetEditTurn(turn domain.Color) {
	if c.mode != ModeEdit || turn == c.editTurn {
		return
	}
	c.editTurn = turn
	c.resynthesize()
}

func (c *Controller) EditTurn() domain.Color { return c.editTurn }

// HoverEnter applies transient preview highlighting. Selection highlights
// are never overridden by hover.
func (c *Controller) HoverEnter(sq domain.Square) {
	if !sq.Valid() {
		return
	}
	c.clearHover()
	if c.isLit(sq) {
		return
	}
	c.hover = sq
	c.hasHover = true
	c.surface.SetHighlight(sq, true)
}

func (c *Controller) HoverLeave(sq domain.Square) {
	if c.hasHover && c.hover == sq {
		c.clearHover()
	}
}

// LoadPosition replaces the canonical position. A false return means the
// rules engine rejected the text and nothing changed.
func (c *Controller) LoadPosition(position string) bool {
	if !c.engine.Load(position) {
		return false
	}
	c.afterExternalChange()
	return true
}

// Reset restores the standard starting position.
func (c *Controller) Reset() {
	c.engine.Reset()
	c.afterExternalChange()
}

// Clear empties the board.
func (c *Controller) Clear() {
	c.engine.Clear()
	c.afterExternalChange()
}

// Flip passes the orientation toggle to the surface; no position state is
// involved.
func (c *Controller) Flip() { c.surface.Flip() }

func (c *Controller) afterExternalChange() {
	c.clearHover()
	c.clearSelection()
	if c.mode == ModeEdit {
		c.editOcc = c.engine.Occupancy()
		c.editTurn = c.engine.Turn()
	}
	c.surface.RenderSnapshot(c.engine.Occupancy())
	c.notify(changeFrom(c.engine.FEN(), c.engine.Turn(), c.engine.Flags()))
}

// resynthesize encodes the edit mirror and loads it back through the
// rules engine. A rejected synthesis keeps the last valid position; only
// the unchanged outcome is observable.
func (c *Controller) resynthesize() {
	text := fen.Encode(c.editOcc, c.editTurn)
	if !c.engine.Load(text) {
		obslog.L().Debug("board_edit_retained", zap.String("fen", text))
		c.editOcc = c.engine.Occupancy()
		c.surface.RenderSnapshot(c.editOcc.Clone())
		return
	}
	c.surface.RenderSnapshot(c.engine.Occupancy())
	c.notify(changeFrom(c.engine.FEN(), c.engine.Turn(), c.engine.Flags()))
}

func (c *Controller) applyMove(res rules.Result) {
	c.clearHover()
	c.clearSelection()
	c.surface.RenderSnapshot(c.engine.Occupancy())
	c.notify(changeFrom(res.FEN, res.Turn, res.Flags))
}

// revert repaints the authoritative occupancy after a rejected drag.
func (c *Controller) revert() {
	c.surface.RenderSnapshot(c.engine.Occupancy())
}

func (c *Controller) selectSquare(sq domain.Square) {
	c.clearHover()
	c.clearSelection()
	c.selected = sq
	c.hasSelected = true
	dests := c.engine.Destinations(sq)
	c.destSet = make(map[domain.Square]bool, len(dests))
	c.light(sq)
	for _, d := range dests {
		c.destSet[d] = true
		c.light(d)
	}
}

func (c *Controller) clearSelection() {
	c.hasSelected = false
	c.destSet = nil
	for _, sq := range c.lit {
		c.surface.SetHighlight(sq, false)
	}
	c.lit = nil
}

func (c *Controller) clearHover() {
	if !c.hasHover {
		return
	}
	if !c.isLit(c.hover) {
		c.surface.SetHighlight(c.hover, false)
	}
	c.hasHover = false
}

func (c *Controller) isLit(sq domain.Square) bool {
	if c.hasSelected && sq == c.selected {
		return true
	}
	return c.destSet[sq]
}

func (c *Controller) light(sq domain.Square) {
	c.lit = append(c.lit, sq)
	c.surface.SetHighlight(sq, true)
}

func (c *Controller) ownPiece(sq domain.Square) bool {
	p, ok := c.engine.Occupancy()[sq]
	return ok && p.Color == c.engine.Turn()
}

func (c *Controller) notify(ch PositionChange) {
	obslog.L().Debug("board_position_changed",
		zap.String("fen", ch.FEN),
		zap.String("turn", ch.Turn.String()))
	for _, fn := range c.listeners {
		fn(ch)
	}
}
