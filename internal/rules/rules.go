// Package rules exposes the move-legality capability the board controller
// consumes. The controller never computes chess rules itself; everything
// flows through this interface.
package rules

import "github.com/deskchess/deskchess/internal/domain"

// Flags report the game-termination state of the current position.
type Flags struct {
	Check     bool
	Checkmate bool
	Stalemate bool
	Draw      bool
}

// Attempt describes a move submission. Promotion may be KindNone; pawn
// moves onto the last rank then promote to a queen.
type Attempt struct {
	From      domain.Square
	To        domain.Square
	Promotion domain.PieceKind
}

// Result carries the position that an accepted move produced.
type Result struct {
	FEN   string
	Turn  domain.Color
	Flags Flags
}

// Engine is the rules capability: validate moves, answer legality queries,
// load and serialize canonical positions.
type Engine interface {
	// TryMove applies the attempt. The bool reports acceptance; on
	// rejection the position is unchanged.
	TryMove(a Attempt) (Result, bool)
	// Destinations lists the legal target squares for the piece on from.
	Destinations(from domain.Square) []domain.Square
	// Flags reports check/checkmate/stalemate/draw for the current position.
	Flags() Flags
	// Load replaces the current position with the given canonical string.
	// A false return means the string was rejected and nothing changed.
	Load(fen string) bool
	// FEN returns the canonical string of the current position.
	FEN() string
	// Turn returns the side to move.
	Turn() domain.Color
	// Occupancy returns a snapshot of the current board occupancy.
	Occupancy() domain.Occupancy
	// Reset restores the standard starting position.
	Reset()
	// Clear empties the board.
	Clear()
}
