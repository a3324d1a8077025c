package cloudeval

import (
	"errors"
	"testing"

	"github.com/deskchess/deskchess/internal/uci"
)

func TestParseEvalCentipawnAndMate(t *testing.T) {
	body := []byte(`{
		"fen": "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1",
		"depth": 40,
		"knodes": 2500000,
		"pvs": [
			{"moves": "e2e4 e7e5 g1f3", "cp": 18},
			{"moves": "d2d4 g8f6", "mate": -12}
		]
	}`)

	eval, err := parseEval(body)
	if err != nil {
		t.Fatalf("parseEval: %v", err)
	}
	if eval.Depth != 40 || eval.KNodes != 2500000 {
		t.Fatalf("telemetry = depth %d knodes %d", eval.Depth, eval.KNodes)
	}
	if len(eval.Lines) != 2 {
		t.Fatalf("lines = %d, want 2", len(eval.Lines))
	}

	first := eval.Lines[0]
	if first.Rank != 1 || first.Score != (uci.Score{Type: uci.ScoreCentipawn, Value: 0.18}) {
		t.Fatalf("first line = %+v", first)
	}
	if len(first.PV) != 3 || first.PV[0] != "e2e4" {
		t.Fatalf("first pv = %v", first.PV)
	}

	second := eval.Lines[1]
	if second.Score != (uci.Score{Type: uci.ScoreMate, Value: -12}) {
		t.Fatalf("second line score = %+v", second.Score)
	}
}

func TestParseEvalSkipsUnusableLines(t *testing.T) {
	body := []byte(`{
		"fen": "x",
		"depth": 10,
		"pvs": [
			{"moves": "", "cp": 5},
			{"moves": "e2e4"},
			{"moves": "d2d4", "cp": 7}
		]
	}`)

	eval, err := parseEval(body)
	if err != nil {
		t.Fatalf("parseEval: %v", err)
	}
	if len(eval.Lines) != 1 || eval.Lines[0].PV[0] != "d2d4" {
		t.Fatalf("lines = %+v", eval.Lines)
	}
}

func TestParseEvalEmptyIsNotFound(t *testing.T) {
	if _, err := parseEval([]byte(`{"fen":"x","depth":1,"pvs":[]}`)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty pvs error = %v, want ErrNotFound", err)
	}
}

func TestParseEvalMalformed(t *testing.T) {
	if _, err := parseEval([]byte("not json")); err == nil {
		t.Fatalf("malformed body accepted")
	}
}
