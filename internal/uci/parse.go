package uci

import (
	"strconv"
	"strings"
)

// ScoreType tags an evaluation. Centipawn and mate scores are different
// quantities and are never compared or mixed arithmetically.
type ScoreType string

const (
	ScoreCentipawn ScoreType = "cp"
	ScoreMate      ScoreType = "mate"
)

// Score is a tagged evaluation: fractional pawns for cp, signed plies to
// mate for mate.
type Score struct {
	Type  ScoreType `json:"type"`
	Value float64   `json:"value"`
}

// infoLine is the optional-field record produced by parseInfo. Fields the
// engine did not report stay at their zero value with the matching *Set
// flag unset.
type infoLine struct {
	depth    int
	selDepth int
	rank     int
	rankSet  bool
	score    Score
	scoreSet bool
	nodes    int64
	nps      int64
	timeMS   int64
	pv       []string
}

// parseInfo tokenizes one `info` response line. Recognized keys consume a
// fixed number of following tokens; `pv` consumes the remainder and ends
// the line. Unrecognized keys are skipped. The bool is false when rank,
// score or pv is missing; such lines are dropped by the caller.
func parseInfo(line string) (infoLine, bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 || parts[0] != "info" {
		return infoLine{}, false
	}

	var rec infoLine
	for i := 1; i < len(parts); i++ {
		switch parts[i] {
		case "depth":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					rec.depth = v
				}
				i++
			}
		case "seldepth":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					rec.selDepth = v
				}
				i++
			}
		case "multipv":
			if i+1 < len(parts) {
				if v, err := strconv.Atoi(parts[i+1]); err == nil {
					rec.rank = v
					rec.rankSet = true
				}
				i++
			}
		case "score":
			if i+2 < len(parts) {
				if s, ok := normalizeScore(parts[i+1], parts[i+2]); ok {
					rec.score = s
					rec.scoreSet = true
				}
				i += 2
			}
		case "nodes":
			if i+1 < len(parts) {
				if v, err := strconv.ParseInt(parts[i+1], 10, 64); err == nil {
					rec.nodes = v
				}
				i++
			}
		case "nps":
			if i+1 < len(parts) {
				if v, err := strconv.ParseInt(parts[i+1], 10, 64); err == nil {
					rec.nps = v
				}
				i++
			}
		case "time":
			if i+1 < len(parts) {
				if v, err := strconv.ParseInt(parts[i+1], 10, 64); err == nil {
					rec.timeMS = v
				}
				i++
			}
		case "pv":
			if i+1 < len(parts) {
				rec.pv = append([]string(nil), parts[i+1:]...)
			}
			i = len(parts)
		}
	}

	if !rec.rankSet || !rec.scoreSet || len(rec.pv) == 0 {
		return infoLine{}, false
	}
	return rec, true
}

// normalizeScore converts the wire score pair into a tagged Score. A cp
// value becomes fractional pawns; a mate value keeps its signed ply count.
func normalizeScore(kind, val string) (Score, bool) {
	v, err := strconv.Atoi(val)
	if err != nil {
		return Score{}, false
	}
	switch kind {
	case "cp":
		return Score{Type: ScoreCentipawn, Value: float64(v) / 100}, true
	case "mate":
		return Score{Type: ScoreMate, Value: float64(v)}, true
	}
	return Score{}, false
}
