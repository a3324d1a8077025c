// Package uci manages the analysis-engine channel: command issuance,
// response parsing and multi-line aggregation for an open-ended search.
// Commands are fire-and-forget; responses arrive as an unsolicited stream
// consumed by a reader goroutine.
package uci

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/deskchess/deskchess/internal/obslog"
)

const eventBuffer = 128

// Options configure the engine during the handshake. HashMB is optional;
// zero leaves the engine default untouched.
type Options struct {
	MultiPV int
	Threads int
	HashMB  int
}

func (o Options) normalized() Options {
	if o.MultiPV <= 0 {
		o.MultiPV = 1
	}
	if o.Threads <= 0 {
		o.Threads = 1
	}
	return o
}

// Line is one candidate line of the in-flight analysis, keyed by rank.
type Line struct {
	Rank   int      `json:"rank"`
	Score  Score    `json:"score"`
	PV     []string `json:"pv"`
	Depth  int      `json:"depth"`
	Nodes  int64    `json:"nodes"`
	TimeMS int64    `json:"time_ms"`
}

// Update is the aggregated state after one accepted line: the full current
// rank table plus the triggering line's telemetry.
type Update struct {
	Lines  map[int]Line `json:"lines"`
	Depth  int          `json:"depth"`
	Nodes  int64        `json:"nodes"`
	TimeMS int64        `json:"time_ms"`
}

// EventKind discriminates session events.
type EventKind int

const (
	EventReady EventKind = iota
	EventUpdate
	EventError
)

// Event is a typed session notification.
type Event struct {
	Kind   EventKind
	Update *Update
	Err    error
}

// State is the session lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateIdle
	StateAnalyzing
	StateFailed
	StateClosed
)

// Session owns one engine process. A new analysis request always
// stops-then-clears before restarting; at most one analysis is logically
// active. Channel failure is terminal: no retry is attempted here, restart
// is the caller's decision.
type Session struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	opt    Options

	mu      sync.Mutex
	state   State
	lines   map[int]Line
	closing bool

	emitMu       sync.Mutex
	events       chan Event
	eventsClosed bool

	closeOnce sync.Once
}

// Start spawns the engine binary and begins the handshake asynchronously.
// Readiness is signaled by an EventReady on Events.
func Start(ctx context.Context, binaryPath string, opt Options) (*Session, error) {
	cmd := exec.CommandContext(ctx, binaryPath)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("create stdin pipe: %w", err)
	}
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("create stdout pipe: %w", err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutPipe.Close()
		return nil, fmt.Errorf("start engine: %w", err)
	}

	s := newSession(stdin, stdoutPipe, opt)
	s.cmd = cmd
	s.begin()
	return s, nil
}

// newSession wires a session over raw pipes. Tests use this directly with
// in-process pipes standing in for the engine binary.
func newSession(stdin io.WriteCloser, stdout io.Reader, opt Options) *Session {
	return &Session{
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
		opt:    opt.normalized(),
		state:  StateUninitialized,
		lines:  make(map[int]Line),
		events: make(chan Event, eventBuffer),
	}
}

// begin sends the handshake command and starts the reader goroutine.
func (s *Session) begin() {
	s.mu.Lock()
	s.state = StateInitializing
	err := s.writeLocked("uci\n")
	s.mu.Unlock()
	if err != nil {
		s.fail(fmt.Errorf("send uci: %w", err))
	}
	go s.readLoop()
}

// Events returns the session's event stream. The channel closes when the
// reader goroutine exits.
func (s *Session) Events() <-chan Event { return s.events }

// Ready reports whether the handshake completed and requests are accepted.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateIdle || s.state == StateAnalyzing
}

// Analyzing reports whether an open-ended search is active.
func (s *Session) Analyzing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateAnalyzing
}

// Snapshot returns a copy of the current rank table.
func (s *Session) Snapshot() map[int]Line {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyLines(s.lines)
}

// RequestAnalysis cancels any in-flight search, clears the rank table
// synchronously and starts an open-ended search of the given position.
// A no-op before the session is ready; callers observe Ready() == false.
// The wire protocol carries no position correlation, so a late line from a
// superseded search lands in the fresh table and is indistinguishable from
// a line of the new search; cancellation is best-effort by design.
func (s *Session) RequestAnalysis(fen string) {
	s.mu.Lock()
	if s.state != StateIdle && s.state != StateAnalyzing {
		s.mu.Unlock()
		return
	}
	var err error
	if s.state == StateAnalyzing {
		err = s.writeLocked("stop\n")
	}
	s.lines = make(map[int]Line)
	if err == nil {
		err = s.writeLocked(buildPositionCommand(fen))
	}
	if err == nil {
		err = s.writeLocked("go infinite\n")
	}
	if err == nil {
		s.state = StateAnalyzing
	}
	s.mu.Unlock()

	if err != nil {
		s.fail(fmt.Errorf("send analysis request: %w", err))
	}
}

// StopAnalysis ends the in-flight search. Idempotent; a no-op when idle.
func (s *Session) StopAnalysis() {
	s.mu.Lock()
	var err error
	if s.state == StateAnalyzing {
		err = s.writeLocked("stop\n")
		s.state = StateIdle
	}
	s.mu.Unlock()

	if err != nil {
		s.fail(fmt.Errorf("send stop: %w", err))
	}
}

// Close terminates the engine process.
func (s *Session) Close() error {
	var waitErr error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		s.state = StateClosed
		s.mu.Unlock()

		if s.stdin != nil {
			s.stdin.Close()
		}
		if s.cmd != nil && s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		if s.cmd != nil {
			waitErr = s.cmd.Wait()
		}
	})
	return waitErr
}

func (s *Session) readLoop() {
	defer s.closeEvents()
	for {
		raw, err := s.stdout.ReadString('\n')
		if line := strings.TrimSpace(raw); line != "" {
			s.handleLine(line)
		}
		if err != nil {
			if s.isClosing() {
				return
			}
			s.fail(fmt.Errorf("engine channel: %w", err))
			return
		}
	}
}

func (s *Session) handleLine(line string) {
	switch {
	case strings.HasPrefix(line, "info "):
		s.handleInfo(line)
	case line == "uciok":
		s.configure()
	case line == "readyok":
		s.mu.Lock()
		signal := s.state == StateInitializing
		if signal {
			s.state = StateIdle
		}
		s.mu.Unlock()
		if signal {
			s.emit(Event{Kind: EventReady})
		}
	case strings.HasPrefix(line, "bestmove"):
		// Session end is governed solely by explicit stop; the terminal
		// bestmove signal is not consumed.
		obslog.L().Debug("uci_bestmove_ignored", zap.String("line", line))
	}
}

// configure runs after uciok: search options first, then readiness probe.
func (s *Session) configure() {
	s.mu.Lock()
	err := s.writeLocked(fmt.Sprintf("setoption name MultiPV value %d\n", s.opt.MultiPV))
	if err == nil {
		err = s.writeLocked(fmt.Sprintf("setoption name Threads value %d\n", s.opt.Threads))
	}
	if err == nil && s.opt.HashMB > 0 {
		err = s.writeLocked(fmt.Sprintf("setoption name Hash value %d\n", s.opt.HashMB))
	}
	if err == nil {
		err = s.writeLocked("isready\n")
	}
	s.mu.Unlock()
	if err != nil {
		s.fail(fmt.Errorf("configure engine: %w", err))
	}
}

// handleInfo parses one telemetry line and, when complete, replaces that
// rank's entry and emits one aggregated update. Malformed lines are
// dropped silently.
func (s *Session) handleInfo(line string) {
	rec, ok := parseInfo(line)
	if !ok {
		return
	}

	s.mu.Lock()
	if s.state != StateAnalyzing {
		s.mu.Unlock()
		return
	}
	s.lines[rec.rank] = Line{
		Rank:   rec.rank,
		Score:  rec.score,
		PV:     rec.pv,
		Depth:  rec.depth,
		Nodes:  rec.nodes,
		TimeMS: rec.timeMS,
	}
	snapshot := copyLines(s.lines)
	s.mu.Unlock()

	s.emit(Event{Kind: EventUpdate, Update: &Update{
		Lines:  snapshot,
		Depth:  rec.depth,
		Nodes:  rec.nodes,
		TimeMS: rec.timeMS,
	}})
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	if s.state == StateFailed || s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateFailed
	s.mu.Unlock()

	obslog.L().Error("uci_session_failed", zap.Error(err))
	s.emit(Event{Kind: EventError, Err: err})
}

func (s *Session) emit(ev Event) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.eventsClosed {
		return
	}
	select {
	case s.events <- ev:
	default:
		obslog.L().Warn("uci_event_dropped", zap.Int("kind", int(ev.Kind)))
	}
}

func (s *Session) closeEvents() {
	s.emitMu.Lock()
	if !s.eventsClosed {
		s.eventsClosed = true
		close(s.events)
	}
	s.emitMu.Unlock()
}

func (s *Session) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

func (s *Session) writeLocked(msg string) error {
	_, err := io.WriteString(s.stdin, msg)
	return err
}

func buildPositionCommand(fen string) string {
	if strings.TrimSpace(fen) == "" || fen == "startpos" {
		return "position startpos\n"
	}
	return "position fen " + fen + "\n"
}

func copyLines(in map[int]Line) map[int]Line {
	out := make(map[int]Line, len(in))
	for rank, line := range in {
		out[rank] = line
	}
	return out
}
