package uci

import (
	"reflect"
	"testing"
)

func TestParseInfoFullLine(t *testing.T) {
	line := "info depth 20 seldepth 28 multipv 1 score cp 35 nodes 1500000 nps 950000 hashfull 430 tbhits 0 time 1578 pv e2e4 e7e5 g1f3"
	rec, ok := parseInfo(line)
	if !ok {
		t.Fatalf("parseInfo rejected valid line")
	}
	if rec.depth != 20 || rec.selDepth != 28 || rec.rank != 1 {
		t.Fatalf("telemetry = depth %d seldepth %d rank %d", rec.depth, rec.selDepth, rec.rank)
	}
	if rec.score != (Score{Type: ScoreCentipawn, Value: 0.35}) {
		t.Fatalf("score = %+v, want cp 0.35", rec.score)
	}
	if rec.nodes != 1500000 || rec.nps != 950000 || rec.timeMS != 1578 {
		t.Fatalf("counters = nodes %d nps %d time %d", rec.nodes, rec.nps, rec.timeMS)
	}
	if !reflect.DeepEqual(rec.pv, []string{"e2e4", "e7e5", "g1f3"}) {
		t.Fatalf("pv = %v", rec.pv)
	}
}

func TestParseInfoMateScore(t *testing.T) {
	rec, ok := parseInfo("info depth 12 multipv 2 score mate -3 nodes 4000 time 12 pv h7h6 g5h6 g7h6")
	if !ok {
		t.Fatalf("parseInfo rejected mate line")
	}
	if rec.score.Type != ScoreMate || rec.score.Value != -3 {
		t.Fatalf("score = %+v, want mate -3", rec.score)
	}
}

func TestScoreTagsNeverEqual(t *testing.T) {
	cp := Score{Type: ScoreCentipawn, Value: -3}
	mate := Score{Type: ScoreMate, Value: -3}
	if cp == mate {
		t.Fatalf("cp and mate scores compared equal")
	}
}

func TestParseInfoDropsIncompleteLines(t *testing.T) {
	cases := []struct {
		name string
		line string
	}{
		{"missing pv", "info depth 10 multipv 1 score cp 12 nodes 100 time 5"},
		{"missing score", "info depth 10 multipv 1 nodes 100 time 5 pv e2e4"},
		{"missing rank", "info depth 10 score cp 12 nodes 100 time 5 pv e2e4"},
		{"empty pv tail", "info depth 10 multipv 1 score cp 12 pv"},
		{"not info", "bestmove e2e4"},
		{"empty", ""},
	}
	for _, tc := range cases {
		if _, ok := parseInfo(tc.line); ok {
			t.Fatalf("%s: line accepted: %q", tc.name, tc.line)
		}
	}
}

func TestParseInfoSkipsUnknownKeys(t *testing.T) {
	rec, ok := parseInfo("info depth 5 currmove e2e4 currmovenumber 3 multipv 1 score cp -50 wdl 320 410 270 pv e7e5")
	if !ok {
		t.Fatalf("line with unknown keys rejected")
	}
	if rec.score != (Score{Type: ScoreCentipawn, Value: -0.5}) {
		t.Fatalf("score = %+v, want cp -0.5", rec.score)
	}
	if len(rec.pv) != 1 || rec.pv[0] != "e7e5" {
		t.Fatalf("pv = %v", rec.pv)
	}
}

func TestParseInfoPVConsumesRemainder(t *testing.T) {
	rec, ok := parseInfo("info multipv 1 score cp 0 pv e2e4 depth 99")
	if !ok {
		t.Fatalf("line rejected")
	}
	// depth appears after pv, so it belongs to the move list, not telemetry.
	if rec.depth != 0 {
		t.Fatalf("depth = %d, want 0", rec.depth)
	}
	if !reflect.DeepEqual(rec.pv, []string{"e2e4", "depth", "99"}) {
		t.Fatalf("pv = %v", rec.pv)
	}
}
