// Package store persists board-session snapshots in Redis so a session
// survives a process restart. Snapshots expire after a day of inactivity.
package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	ttlSession   = 24 * time.Hour
	historyLimit = 50
)

// Snapshot is the persisted view of one board session.
type Snapshot struct {
	ID        string    `json:"id"`
	FEN       string    `json:"fen"`
	Turn      string    `json:"turn"`
	Mode      string    `json:"mode"`
	Profile   string    `json:"profile"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Store struct{ rdb *redis.Client }

func NewStore(rdb *redis.Client) *Store { return &Store{rdb: rdb} }

// NewSessionID mints a fresh session identifier.
func NewSessionID() string { return uuid.NewString() }

func (s *Store) keySession(id string) string { return "board:session:" + strings.TrimSpace(id) }
func (s *Store) keyHistory(id string) string { return s.keySession(id) + ":history" }

// Save writes the snapshot and refreshes the session TTL.
func (s *Store) Save(ctx context.Context, snap *Snapshot) error {
	snap.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.keySession(snap.ID), raw, ttlSession).Err(); err != nil {
		return err
	}
	// keep the companion key on the same clock
	_ = s.rdb.Expire(ctx, s.keyHistory(snap.ID), ttlSession).Err()
	return nil
}

// Load returns the snapshot, or nil when the session is unknown or expired.
func (s *Store) Load(ctx context.Context, id string) (*Snapshot, error) {
	raw, err := s.rdb.Get(ctx, s.keySession(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// AppendHistory records a superseded position, newest first, bounded.
func (s *Store) AppendHistory(ctx context.Context, id, fen string) error {
	if strings.TrimSpace(fen) == "" {
		return nil
	}
	key := s.keyHistory(id)
	if err := s.rdb.LPush(ctx, key, fen).Err(); err != nil {
		return err
	}
	if err := s.rdb.LTrim(ctx, key, 0, historyLimit-1).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, key, ttlSession).Err()
}

// History returns up to limit recent positions, newest first.
func (s *Store) History(ctx context.Context, id string, limit int) ([]string, error) {
	if limit <= 0 || limit > historyLimit {
		limit = historyLimit
	}
	return s.rdb.LRange(ctx, s.keyHistory(id), 0, int64(limit)-1).Result()
}

// Delete drops the session and its history.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, s.keySession(id), s.keyHistory(id)).Err()
}
