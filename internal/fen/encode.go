// Package fen writes the canonical text form of a board position. It is
// encode-only: parsing canonical strings back into positions is the rules
// engine's job.
package fen

import (
	"strconv"
	"strings"

	"github.com/deskchess/deskchess/internal/domain"
)

// StartingPosition is the standard initial position.
const StartingPosition = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// Encode renders occupancy plus side to move as a FEN string. Castling,
// en passant and the move counters take fixed placeholder values because an
// edited board cannot infer them. The encoding is total: any occupancy with
// one piece per square produces a string, legal position or not.
func Encode(occ domain.Occupancy, sideToMove domain.Color) string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			piece, ok := occ[domain.Square{File: file, Rank: rank}]
			if !ok {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteRune(piece.FENRune())
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}

	sb.WriteByte(' ')
	if sideToMove == domain.White {
		sb.WriteByte('w')
	} else {
		sb.WriteByte('b')
	}
	sb.WriteString(" - - 0 1")
	return sb.String()
}
