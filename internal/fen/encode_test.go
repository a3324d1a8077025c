package fen

import (
	"strings"
	"testing"

	"github.com/deskchess/deskchess/internal/domain"
)

func startingOccupancy(t *testing.T) domain.Occupancy {
	t.Helper()
	occ := make(domain.Occupancy)
	back := []domain.PieceKind{
		domain.Rook, domain.Knight, domain.Bishop, domain.Queen,
		domain.King, domain.Bishop, domain.Knight, domain.Rook,
	}
	for file, kind := range back {
		occ[domain.Square{File: file, Rank: 0}] = domain.Piece{Color: domain.White, Kind: kind}
		occ[domain.Square{File: file, Rank: 1}] = domain.Piece{Color: domain.White, Kind: domain.Pawn}
		occ[domain.Square{File: file, Rank: 6}] = domain.Piece{Color: domain.Black, Kind: domain.Pawn}
		occ[domain.Square{File: file, Rank: 7}] = domain.Piece{Color: domain.Black, Kind: kind}
	}
	return occ
}

func TestEncodeStartingPosition(t *testing.T) {
	got := Encode(startingOccupancy(t), domain.White)
	want := "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w - - 0 1"
	if got != want {
		t.Fatalf("Encode = %q, want %q", got, want)
	}
}

func TestEncodeEmptyBoard(t *testing.T) {
	got := Encode(domain.Occupancy{}, domain.Black)
	if got != "8/8/8/8/8/8/8/8 b - - 0 1" {
		t.Fatalf("Encode empty = %q", got)
	}
}

func TestEncodeRunLengths(t *testing.T) {
	occ := domain.Occupancy{
		{File: 4, Rank: 3}: {Color: domain.White, Kind: domain.King},
		{File: 0, Rank: 3}: {Color: domain.Black, Kind: domain.King},
		{File: 7, Rank: 3}: {Color: domain.White, Kind: domain.Queen},
	}
	got := Encode(occ, domain.White)
	if !strings.HasPrefix(got, "8/8/8/8/k3K2Q/8/8/8 w") {
		t.Fatalf("Encode = %q", got)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	occ := startingOccupancy(t)
	first := Encode(occ, domain.White)
	for i := 0; i < 10; i++ {
		if again := Encode(occ, domain.White); again != first {
			t.Fatalf("Encode not deterministic: %q vs %q", first, again)
		}
	}
}
