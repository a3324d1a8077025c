package coordinator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/deskchess/deskchess/internal/board"
	"github.com/deskchess/deskchess/internal/domain"
	"github.com/deskchess/deskchess/internal/rules"
	"github.com/deskchess/deskchess/internal/store"
	"github.com/deskchess/deskchess/internal/uci"
)

type fakeSession struct {
	events chan uci.Event

	mu       sync.Mutex
	requests []string
}

func newFakeSession() *fakeSession {
	return &fakeSession{events: make(chan uci.Event, 16)}
}

func (f *fakeSession) Events() <-chan uci.Event { return f.events }
func (f *fakeSession) StopAnalysis()            {}
func (f *fakeSession) Ready() bool              { return true }

func (f *fakeSession) RequestAnalysis(fen string) {
	f.mu.Lock()
	f.requests = append(f.requests, fen)
	f.mu.Unlock()
}

func (f *fakeSession) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.requests...)
}

type nopSurface struct{}

func (nopSurface) RenderSnapshot(domain.Occupancy)  {}
func (nopSurface) SetHighlight(domain.Square, bool) {}
func (nopSurface) Flip()                            {}

func mustSquare(t *testing.T, name string) domain.Square {
	t.Helper()
	s, ok := domain.ParseSquare(name)
	if !ok {
		t.Fatalf("bad square %q", name)
	}
	return s
}

func waitCoordEvent(t *testing.T, events <-chan Event, kind EventKind) Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				t.Fatalf("event stream closed while waiting for kind %d", kind)
			}
			if ev.Kind == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timeout waiting for event kind %d", kind)
		}
	}
}

func TestPositionChangeTriggersAnalysis(t *testing.T) {
	session := newFakeSession()
	ctrl := board.NewController(rules.NewChessEngine(), nopSurface{})
	coord := New(ctrl, session)

	ctrl.Drop(mustSquare(t, "e2"), mustSquare(t, "e4"))

	reqs := session.requested()
	if len(reqs) != 1 {
		t.Fatalf("analysis requests = %v, want one", reqs)
	}
	if reqs[0] != ctrl.Position().FEN {
		t.Fatalf("requested %q, board shows %q", reqs[0], ctrl.Position().FEN)
	}

	ev := waitCoordEvent(t, coord.Events(), EventPosition)
	if ev.Position == nil || ev.Position.FEN != reqs[0] {
		t.Fatalf("position event = %+v", ev.Position)
	}
}

func TestEngineReadyAnalyzesCurrentPosition(t *testing.T) {
	session := newFakeSession()
	ctrl := board.NewController(rules.NewChessEngine(), nopSurface{})
	coord := New(ctrl, session)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		coord.Run(ctx)
		close(done)
	}()

	session.events <- uci.Event{Kind: uci.EventReady}
	waitCoordEvent(t, coord.Events(), EventEngineReady)

	deadline := time.Now().Add(2 * time.Second)
	for len(session.requested()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("ready event did not trigger analysis")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := session.requested()[0]; got != ctrl.Position().FEN {
		t.Fatalf("requested %q, want current position", got)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop on context cancel")
	}
}

func TestSessionEventsForwarded(t *testing.T) {
	session := newFakeSession()
	ctrl := board.NewController(rules.NewChessEngine(), nopSurface{})
	coord := New(ctrl, session)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go coord.Run(ctx)

	update := &uci.Update{
		Lines: map[int]uci.Line{1: {Rank: 1, Depth: 12, PV: []string{"e2e4"}}},
		Depth: 12,
	}
	session.events <- uci.Event{Kind: uci.EventUpdate, Update: update}
	ev := waitCoordEvent(t, coord.Events(), EventAnalysis)
	if ev.Analysis == nil || ev.Analysis.Depth != 12 {
		t.Fatalf("analysis event = %+v", ev.Analysis)
	}

	session.events <- uci.Event{Kind: uci.EventError, Err: context.DeadlineExceeded}
	ev = waitCoordEvent(t, coord.Events(), EventEngineError)
	if ev.Err == nil {
		t.Fatalf("error event without error")
	}
}

func TestSnapshotPersistedOnChange(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	snapshots := store.NewStore(rdb)

	session := newFakeSession()
	ctrl := board.NewController(rules.NewChessEngine(), nopSurface{})
	coord := New(ctrl, session, WithStore(snapshots, "test-session"), WithProfile("default"))

	ctrl.Drop(mustSquare(t, "e2"), mustSquare(t, "e4"))
	first := ctrl.Position().FEN

	ctx := context.Background()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap, err := snapshots.Load(ctx, coord.SessionID())
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if snap != nil && snap.FEN == first {
			if snap.Profile != "default" || snap.Mode != "play" {
				t.Fatalf("snapshot = %+v", snap)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("snapshot never persisted")
		}
		time.Sleep(5 * time.Millisecond)
	}

	ctrl.Drop(mustSquare(t, "e7"), mustSquare(t, "e5"))
	deadline = time.Now().Add(2 * time.Second)
	for {
		hist, err := snapshots.History(ctx, coord.SessionID(), 10)
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if len(hist) > 0 && hist[0] == first {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("superseded position never archived to history")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRestoreLoadsPersistedPosition(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	snapshots := store.NewStore(rdb)

	ctx := context.Background()
	const fen = "4k3/8/8/8/8/8/4P3/4K3 w - - 0 1"
	if err := snapshots.Save(ctx, &store.Snapshot{ID: "restore-me", FEN: fen}); err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	session := newFakeSession()
	ctrl := board.NewController(rules.NewChessEngine(), nopSurface{})
	coord := New(ctrl, session, WithStore(snapshots, "restore-me"))

	if !coord.Restore(ctx) {
		t.Fatalf("restore failed")
	}
	if got := ctrl.Position().FEN; got != fen {
		t.Fatalf("position after restore = %q, want %q", got, fen)
	}
	if reqs := session.requested(); len(reqs) != 1 || reqs[0] != fen {
		t.Fatalf("restore analysis requests = %v", reqs)
	}
}
