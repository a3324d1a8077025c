package domain

import (
	"fmt"
	"strconv"
)

// Color identifies a chess side.
type Color uint8

const (
	White Color = iota
	Black
)

func (c Color) String() string {
	if c == Black {
		return "black"
	}
	return "white"
}

func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

// MarshalJSON encodes the color as "white" or "black".
func (c Color) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(c.String())), nil
}

func (c *Color) UnmarshalJSON(data []byte) error {
	s, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("color: %w", err)
	}
	parsed, ok := ParseColor(s)
	if !ok {
		return fmt.Errorf("color: unknown value %q", s)
	}
	*c = parsed
	return nil
}

// ParseColor accepts "white"/"w" and "black"/"b".
func ParseColor(s string) (Color, bool) {
	switch s {
	case "white", "w":
		return White, true
	case "black", "b":
		return Black, true
	}
	return White, false
}

// PieceKind is the piece type without color. The zero value means "no piece"
// so a Kind field can be left unset in move attempts.
type PieceKind uint8

const (
	KindNone PieceKind = iota
	King
	Queen
	Rook
	Bishop
	Knight
	Pawn
)

var kindLetters = map[PieceKind]rune{
	King:   'k',
	Queen:  'q',
	Rook:   'r',
	Bishop: 'b',
	Knight: 'n',
	Pawn:   'p',
}

// Piece is a colored piece.
type Piece struct {
	Color Color
	Kind  PieceKind
}

// FENRune returns the single-letter FEN encoding; uppercase for white.
func (p Piece) FENRune() rune {
	r, ok := kindLetters[p.Kind]
	if !ok {
		return '?'
	}
	if p.Color == White {
		return r - 'a' + 'A'
	}
	return r
}

// PieceFromFEN parses a single FEN piece letter.
func PieceFromFEN(r rune) (Piece, bool) {
	color := Black
	if r >= 'A' && r <= 'Z' {
		color = White
		r = r - 'A' + 'a'
	}
	for kind, letter := range kindLetters {
		if letter == r {
			return Piece{Color: color, Kind: kind}, true
		}
	}
	return Piece{}, false
}

// Square addresses one board square. File 0..7 maps a..h, Rank 0..7 maps 1..8.
type Square struct {
	File int
	Rank int
}

func (s Square) Valid() bool {
	return s.File >= 0 && s.File < 8 && s.Rank >= 0 && s.Rank < 8
}

func (s Square) String() string {
	if !s.Valid() {
		return "-"
	}
	return fmt.Sprintf("%c%d", 'a'+s.File, s.Rank+1)
}

// ParseSquare parses algebraic square names like "e4".
func ParseSquare(s string) (Square, bool) {
	if len(s) != 2 {
		return Square{}, false
	}
	file := int(s[0] - 'a')
	rank := int(s[1] - '1')
	sq := Square{File: file, Rank: rank}
	if !sq.Valid() {
		return Square{}, false
	}
	return sq, true
}

// Occupancy maps occupied squares to pieces. Empty squares are absent keys;
// at most one piece per square holds by construction.
type Occupancy map[Square]Piece

func (o Occupancy) Clone() Occupancy {
	out := make(Occupancy, len(o))
	for sq, p := range o {
		out[sq] = p
	}
	return out
}
