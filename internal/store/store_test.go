package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis, context.Context) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return NewStore(rdb), mr, context.Background()
}

func TestSaveLoadRoundtrip(t *testing.T) {
	s, mr, ctx := newTestStore(t)
	id := NewSessionID()

	snap := &Snapshot{ID: id, FEN: "8/8/8/8/8/8/8/8 w - - 0 1", Turn: "white", Mode: "play", Profile: "default"}
	if err := s.Save(ctx, snap); err != nil {
		t.Fatalf("save: %v", err)
	}
	if snap.UpdatedAt.IsZero() {
		t.Fatalf("save did not stamp UpdatedAt")
	}

	got, err := s.Load(ctx, id)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got == nil || got.FEN != snap.FEN || got.Profile != "default" {
		t.Fatalf("loaded snapshot = %+v", got)
	}

	if ttl := mr.TTL(s.keySession(id)); ttl <= 0 {
		t.Fatalf("session key has no TTL")
	}
}

func TestLoadUnknownSession(t *testing.T) {
	s, _, ctx := newTestStore(t)
	got, err := s.Load(ctx, "nope")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got != nil {
		t.Fatalf("unknown session produced %+v", got)
	}
}

func TestHistoryNewestFirstAndBounded(t *testing.T) {
	s, _, ctx := newTestStore(t)
	id := NewSessionID()

	for i := 0; i < historyLimit+10; i++ {
		fen := fmt.Sprintf("8/8/8/8/8/8/8/8 w - - 0 %d", i+1)
		if err := s.AppendHistory(ctx, id, fen); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	got, err := s.History(ctx, id, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != historyLimit {
		t.Fatalf("history length = %d, want %d", len(got), historyLimit)
	}
	if got[0] != fmt.Sprintf("8/8/8/8/8/8/8/8 w - - 0 %d", historyLimit+10) {
		t.Fatalf("history[0] = %s, want newest entry", got[0])
	}
}

func TestDeleteRemovesEverything(t *testing.T) {
	s, _, ctx := newTestStore(t)
	id := NewSessionID()

	if err := s.Save(ctx, &Snapshot{ID: id, FEN: "x"}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.AppendHistory(ctx, id, "y"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := s.Load(ctx, id)
	if err != nil || got != nil {
		t.Fatalf("session survived delete: %+v %v", got, err)
	}
	hist, err := s.History(ctx, id, 10)
	if err != nil || len(hist) != 0 {
		t.Fatalf("history survived delete: %v %v", hist, err)
	}
}
