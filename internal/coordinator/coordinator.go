// Package coordinator wires the interaction controller to the analysis
// session: every accepted position change re-triggers analysis, and
// session output is fanned out as typed events. Persistence and cloud
// lookups are optional attachments.
package coordinator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/deskchess/deskchess/internal/archive"
	"github.com/deskchess/deskchess/internal/board"
	"github.com/deskchess/deskchess/internal/cloudeval"
	"github.com/deskchess/deskchess/internal/obslog"
	"github.com/deskchess/deskchess/internal/store"
	"github.com/deskchess/deskchess/internal/uci"
)

const (
	eventBuffer = 128
	sideTimeout = 5 * time.Second
)

// AnalysisSession is the slice of the engine session the coordinator
// drives.
type AnalysisSession interface {
	Events() <-chan uci.Event
	RequestAnalysis(fen string)
	StopAnalysis()
	Ready() bool
}

// EventKind discriminates coordinator events.
type EventKind int

const (
	EventPosition EventKind = iota
	EventAnalysis
	EventEngineReady
	EventEngineError
	EventCloudEval
)

// Event is the merged notification stream the presentation layer
// consumes.
type Event struct {
	Kind     EventKind
	Position *board.PositionChange
	Analysis *uci.Update
	Cloud    *cloudeval.Eval
	Err      error
}

type Coordinator struct {
	ctrl    *board.Controller
	session AnalysisSession

	sessionID string
	profile   string
	snapshots *store.Store
	repo      archive.Repository
	cloud     *cloudeval.Client
	cloudPV   int

	mu       sync.Mutex
	lastFEN  string
	lastTurn string
	best     *uci.Line

	emitMu sync.Mutex
	events chan Event
	closed bool
}

type Option func(*Coordinator)

// WithStore persists session snapshots and position history.
func WithStore(s *store.Store, sessionID string) Option {
	return func(c *Coordinator) {
		c.snapshots = s
		c.sessionID = sessionID
	}
}

// WithArchive records the deepest line seen for each superseded position.
func WithArchive(repo archive.Repository) Option {
	return func(c *Coordinator) { c.repo = repo }
}

// WithCloudEval consults a cloud evaluation cache on each new position.
func WithCloudEval(client *cloudeval.Client, multiPV int) Option {
	return func(c *Coordinator) {
		c.cloud = client
		c.cloudPV = multiPV
	}
}

// WithProfile records the preset name in persisted snapshots.
func WithProfile(name string) Option {
	return func(c *Coordinator) { c.profile = name }
}

func New(ctrl *board.Controller, session AnalysisSession, opts ...Option) *Coordinator {
	c := &Coordinator{
		ctrl:    ctrl,
		session: session,
		events:  make(chan Event, eventBuffer),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.sessionID == "" {
		c.sessionID = store.NewSessionID()
	}
	// seeded before any goroutine can observe the coordinator; the
	// controller is never touched from the Run goroutine after this
	pos := ctrl.Position()
	c.lastFEN = pos.FEN
	c.lastTurn = pos.Turn.String()
	ctrl.OnPositionChanged(c.handlePositionChange)
	return c
}

// Events returns the coordinator's event stream. The channel closes when
// Run returns.
func (c *Coordinator) Events() <-chan Event { return c.events }

func (c *Coordinator) SessionID() string { return c.sessionID }

// Restore loads the persisted snapshot, if any, back into the board. The
// resulting position change re-triggers analysis through the usual path.
func (c *Coordinator) Restore(ctx context.Context) bool {
	if c.snapshots == nil {
		return false
	}
	snap, err := c.snapshots.Load(ctx, c.sessionID)
	if err != nil {
		obslog.L().Warn("coordinator_restore_failed", zap.Error(err))
		return false
	}
	if snap == nil || snap.FEN == "" {
		return false
	}
	return c.ctrl.LoadPosition(snap.FEN)
}

// Run consumes session events until the context ends or the session's
// stream closes.
func (c *Coordinator) Run(ctx context.Context) {
	defer c.closeEvents()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-c.session.Events():
			if !ok {
				return
			}
			c.handleSessionEvent(ev)
		}
	}
}

func (c *Coordinator) handleSessionEvent(ev uci.Event) {
	switch ev.Kind {
	case uci.EventReady:
		c.emit(Event{Kind: EventEngineReady})
		// the engine came up after the board; analyze what is on it
		c.mu.Lock()
		fen := c.lastFEN
		c.mu.Unlock()
		c.session.RequestAnalysis(fen)
	case uci.EventUpdate:
		if ev.Update != nil {
			if line, ok := ev.Update.Lines[1]; ok {
				c.mu.Lock()
				c.best = &line
				c.mu.Unlock()
			}
		}
		c.emit(Event{Kind: EventAnalysis, Analysis: ev.Update})
	case uci.EventError:
		c.emit(Event{Kind: EventEngineError, Err: ev.Err})
	}
}

func (c *Coordinator) handlePositionChange(ch board.PositionChange) {
	c.mu.Lock()
	prevFEN := c.lastFEN
	prevTurn := c.lastTurn
	best := c.best
	c.best = nil
	c.lastFEN = ch.FEN
	c.lastTurn = ch.Turn.String()
	c.mu.Unlock()

	c.session.RequestAnalysis(ch.FEN)
	c.emit(Event{Kind: EventPosition, Position: &ch})

	if c.repo != nil && prevFEN != "" && best != nil {
		go c.archiveLine(prevFEN, prevTurn, best)
	}
	if c.snapshots != nil {
		go c.persistSnapshot(ch, c.ctrl.Mode().String(), prevFEN)
	}
	if c.cloud != nil {
		go c.lookupCloud(ch.FEN)
	}
}

func (c *Coordinator) archiveLine(fen, turn string, line *uci.Line) {
	ctx, cancel := context.WithTimeout(context.Background(), sideTimeout)
	defer cancel()
	rec := &archive.Record{
		SessionID:  c.sessionID,
		FEN:        fen,
		Turn:       turn,
		ScoreType:  string(line.Score.Type),
		ScoreValue: line.Score.Value,
		Depth:      line.Depth,
		Nodes:      line.Nodes,
		TimeMS:     line.TimeMS,
		PV:         line.PV,
	}
	if err := c.repo.Upsert(ctx, rec); err != nil {
		obslog.L().Warn("coordinator_archive_failed", zap.Error(err))
	}
}

func (c *Coordinator) persistSnapshot(ch board.PositionChange, mode, prevFEN string) {
	ctx, cancel := context.WithTimeout(context.Background(), sideTimeout)
	defer cancel()
	snap := &store.Snapshot{
		ID:      c.sessionID,
		FEN:     ch.FEN,
		Turn:    ch.Turn.String(),
		Mode:    mode,
		Profile: c.profile,
	}
	if err := c.snapshots.Save(ctx, snap); err != nil {
		obslog.L().Warn("coordinator_snapshot_failed", zap.Error(err))
		return
	}
	if prevFEN != "" {
		if err := c.snapshots.AppendHistory(ctx, c.sessionID, prevFEN); err != nil {
			obslog.L().Warn("coordinator_history_failed", zap.Error(err))
		}
	}
}

func (c *Coordinator) lookupCloud(fen string) {
	ctx, cancel := context.WithTimeout(context.Background(), sideTimeout)
	defer cancel()
	eval, err := c.cloud.Lookup(ctx, fen, c.cloudPV)
	if err != nil {
		if !errors.Is(err, cloudeval.ErrNotFound) {
			obslog.L().Debug("coordinator_cloud_lookup_failed", zap.Error(err))
		}
		return
	}
	c.emit(Event{Kind: EventCloudEval, Cloud: eval})
}

func (c *Coordinator) emit(ev Event) {
	c.emitMu.Lock()
	defer c.emitMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
		obslog.L().Warn("coordinator_event_dropped", zap.Int("kind", int(ev.Kind)))
	}
}

func (c *Coordinator) closeEvents() {
	c.emitMu.Lock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	c.emitMu.Unlock()
}
