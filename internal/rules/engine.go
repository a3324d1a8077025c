package rules

import (
	"sort"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/deskchess/deskchess/internal/domain"
)

const emptyBoardFEN = "8/8/8/8/8/8/8/8 w - - 0 1"

// ChessEngine implements Engine on top of corentings/chess.
type ChessEngine struct {
	game *nchess.Game
}

func NewChessEngine() *ChessEngine {
	return &ChessEngine{game: nchess.NewGame()}
}

func (e *ChessEngine) TryMove(a Attempt) (Result, bool) {
	if !a.From.Valid() || !a.To.Valid() {
		return Result{}, false
	}
	uci := a.From.String() + a.To.String() + promotionSuffix(a.Promotion)
	if !e.pushUCI(uci) {
		// Pointer input carries no promotion choice; retry pawn moves onto
		// the last rank as queen promotions before rejecting.
		if a.Promotion != domain.KindNone || !e.isPawnPromotion(a) {
			return Result{}, false
		}
		if !e.pushUCI(uci + "q") {
			return Result{}, false
		}
	}
	return Result{FEN: e.FEN(), Turn: e.Turn(), Flags: e.Flags()}, true
}

func (e *ChessEngine) pushUCI(uci string) bool {
	pos := e.game.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, strings.ToLower(uci))
	if err != nil {
		return false
	}
	return e.game.Move(mv, nil) == nil
}

func (e *ChessEngine) isPawnPromotion(a Attempt) bool {
	piece, ok := e.Occupancy()[a.From]
	if !ok || piece.Kind != domain.Pawn {
		return false
	}
	lastRank := 7
	if piece.Color == domain.Black {
		lastRank = 0
	}
	return a.To.Rank == lastRank
}

func (e *ChessEngine) Destinations(from domain.Square) []domain.Square {
	if !from.Valid() {
		return nil
	}
	src := toLibSquare(from)
	seen := make(map[domain.Square]bool)
	for _, mv := range e.game.ValidMoves() {
		if mv.S1() != src {
			continue
		}
		seen[fromLibSquare(mv.S2())] = true
	}
	out := make([]domain.Square, 0, len(seen))
	for sq := range seen {
		out = append(out, sq)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].File != out[j].File {
			return out[i].File < out[j].File
		}
		return out[i].Rank < out[j].Rank
	})
	return out
}

func (e *ChessEngine) Flags() Flags {
	status := e.game.Position().Status()
	f := Flags{
		Checkmate: status == nchess.Checkmate,
		Stalemate: status == nchess.Stalemate,
		Draw:      e.game.Outcome() == nchess.Draw,
	}
	// Check is derived from the position itself, not from move tags, so a
	// loaded position where the side to move is already in check reports it
	// the same as a played one.
	f.Check = f.Checkmate || e.inCheck()
	return f
}

// inCheck reports whether the side to move's king is attacked.
func (e *ChessEngine) inCheck() bool {
	occ := e.Occupancy()
	turn := e.Turn()
	for sq, p := range occ {
		if p.Kind == domain.King && p.Color == turn {
			return squareAttacked(occ, sq, turn.Other())
		}
	}
	return false
}

func (e *ChessEngine) Load(fen string) bool {
	option, err := nchess.FEN(strings.TrimSpace(fen))
	if err != nil {
		return false
	}
	e.game = nchess.NewGame(option)
	return true
}

func (e *ChessEngine) FEN() string { return e.game.FEN() }

func (e *ChessEngine) Turn() domain.Color {
	if e.game.Position().Turn() == nchess.Black {
		return domain.Black
	}
	return domain.White
}

func (e *ChessEngine) Occupancy() domain.Occupancy {
	occ := make(domain.Occupancy)
	for sq, piece := range e.game.Position().Board().SquareMap() {
		if piece == nchess.NoPiece {
			continue
		}
		occ[fromLibSquare(sq)] = fromLibPiece(piece)
	}
	return occ
}

func (e *ChessEngine) Reset() { e.game = nchess.NewGame() }

func (e *ChessEngine) Clear() {
	if option, err := nchess.FEN(emptyBoardFEN); err == nil {
		e.game = nchess.NewGame(option)
	}
}

var (
	knightSteps = [8][2]int{{1, 2}, {2, 1}, {2, -1}, {1, -2}, {-1, -2}, {-2, -1}, {-2, 1}, {-1, 2}}
	kingSteps   = [8][2]int{{1, 0}, {1, 1}, {0, 1}, {-1, 1}, {-1, 0}, {-1, -1}, {0, -1}, {1, -1}}
	orthoRays   = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}
	diagRays    = [4][2]int{{1, 1}, {1, -1}, {-1, 1}, {-1, -1}}
)

// squareAttacked reports whether any piece of the given color attacks the
// target square.
func squareAttacked(occ domain.Occupancy, target domain.Square, by domain.Color) bool {
	pawnRank := target.Rank - 1
	if by == domain.Black {
		pawnRank = target.Rank + 1
	}
	for _, df := range [2]int{-1, 1} {
		if pieceAt(occ, domain.Square{File: target.File + df, Rank: pawnRank}, by, domain.Pawn) {
			return true
		}
	}
	for _, d := range knightSteps {
		if pieceAt(occ, domain.Square{File: target.File + d[0], Rank: target.Rank + d[1]}, by, domain.Knight) {
			return true
		}
	}
	for _, d := range kingSteps {
		if pieceAt(occ, domain.Square{File: target.File + d[0], Rank: target.Rank + d[1]}, by, domain.King) {
			return true
		}
	}
	return slideAttacks(occ, target, by, orthoRays, domain.Rook) ||
		slideAttacks(occ, target, by, diagRays, domain.Bishop)
}

func pieceAt(occ domain.Occupancy, sq domain.Square, color domain.Color, kind domain.PieceKind) bool {
	if !sq.Valid() {
		return false
	}
	p, ok := occ[sq]
	return ok && p.Color == color && p.Kind == kind
}

// slideAttacks walks each ray outward from the target until a piece blocks
// it; a queen attacks along both ray sets.
func slideAttacks(occ domain.Occupancy, target domain.Square, by domain.Color, rays [4][2]int, kind domain.PieceKind) bool {
	for _, d := range rays {
		for step := 1; ; step++ {
			sq := domain.Square{File: target.File + d[0]*step, Rank: target.Rank + d[1]*step}
			if !sq.Valid() {
				break
			}
			p, ok := occ[sq]
			if !ok {
				continue
			}
			if p.Color == by && (p.Kind == kind || p.Kind == domain.Queen) {
				return true
			}
			break
		}
	}
	return false
}

func toLibSquare(sq domain.Square) nchess.Square {
	return nchess.NewSquare(nchess.File(sq.File), nchess.Rank(sq.Rank))
}

func fromLibSquare(sq nchess.Square) domain.Square {
	return domain.Square{File: int(sq.File()), Rank: int(sq.Rank())}
}

func fromLibPiece(p nchess.Piece) domain.Piece {
	piece := domain.Piece{Color: domain.White}
	if p.Color() == nchess.Black {
		piece.Color = domain.Black
	}
	switch p.Type() {
	case nchess.King:
		piece.Kind = domain.King
	case nchess.Queen:
		piece.Kind = domain.Queen
	case nchess.Rook:
		piece.Kind = domain.Rook
	case nchess.Bishop:
		piece.Kind = domain.Bishop
	case nchess.Knight:
		piece.Kind = domain.Knight
	case nchess.Pawn:
		piece.Kind = domain.Pawn
	}
	return piece
}

func promotionSuffix(kind domain.PieceKind) string {
	switch kind {
	case domain.Queen:
		return "q"
	case domain.Rook:
		return "r"
	case domain.Bishop:
		return "b"
	case domain.Knight:
		return "n"
	}
	return ""
}
