// Package archive persists the best engine line seen for each analyzed
// position, keyed by session and position. Deeper results replace
// shallower ones.
package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Record is one archived analysis result.
type Record struct {
	ID         int64
	SessionID  string
	FEN        string
	Turn       string
	ScoreType  string
	ScoreValue float64
	Depth      int
	Nodes      int64
	TimeMS     int64
	PV         []string
	AnalyzedAt time.Time
}

type Repository interface {
	EnsureSchema(ctx context.Context) error
	Upsert(ctx context.Context, rec *Record) error
	Recent(ctx context.Context, sessionID string, limit int) ([]*Record, error)
	Best(ctx context.Context, fen string) (*Record, error)
}

type repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repository{db: db}
}

func (r *repository) EnsureSchema(ctx context.Context) error {
	const query = `
		CREATE TABLE IF NOT EXISTS analysis_lines (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL,
			fen TEXT NOT NULL,
			turn TEXT NOT NULL,
			score_type TEXT NOT NULL,
			score_value DOUBLE PRECISION NOT NULL,
			depth INT NOT NULL,
			nodes BIGINT NOT NULL,
			time_ms BIGINT NOT NULL,
			pv JSONB NOT NULL,
			analyzed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (session_id, fen)
		)`
	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("create analysis_lines: %w", err)
	}
	return nil
}

func (r *repository) Upsert(ctx context.Context, rec *Record) error {
	if rec == nil {
		return fmt.Errorf("nil analysis record payload")
	}
	pv, err := json.Marshal(rec.PV)
	if err != nil {
		return fmt.Errorf("marshal pv: %w", err)
	}

	const query = `
		INSERT INTO analysis_lines (
			session_id,
			fen,
			turn,
			score_type,
			score_value,
			depth,
			nodes,
			time_ms,
			pv
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)
		ON CONFLICT (session_id, fen)
		DO UPDATE SET
			score_type = EXCLUDED.score_type,
			score_value = EXCLUDED.score_value,
			depth = EXCLUDED.depth,
			nodes = EXCLUDED.nodes,
			time_ms = EXCLUDED.time_ms,
			pv = EXCLUDED.pv,
			analyzed_at = NOW()
		WHERE EXCLUDED.depth >= analysis_lines.depth`

	_, err = r.db.ExecContext(
		ctx,
		query,
		rec.SessionID,
		rec.FEN,
		rec.Turn,
		rec.ScoreType,
		rec.ScoreValue,
		rec.Depth,
		rec.Nodes,
		rec.TimeMS,
		pv,
	)
	if err != nil {
		return fmt.Errorf("upsert analysis line: %w", err)
	}
	return nil
}

func (r *repository) Recent(ctx context.Context, sessionID string, limit int) ([]*Record, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `
		SELECT
			id,
			session_id,
			fen,
			turn,
			score_type,
			score_value,
			depth,
			nodes,
			time_ms,
			pv,
			analyzed_at
		FROM analysis_lines
		WHERE session_id = $1
		ORDER BY analyzed_at DESC
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("select analysis lines: %w", err)
	}
	defer rows.Close()

	records := make([]*Record, 0, limit)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (r *repository) Best(ctx context.Context, fen string) (*Record, error) {
	const query = `
		SELECT
			id,
			session_id,
			fen,
			turn,
			score_type,
			score_value,
			depth,
			nodes,
			time_ms,
			pv,
			analyzed_at
		FROM analysis_lines
		WHERE fen = $1
		ORDER BY depth DESC, analyzed_at DESC
		LIMIT 1`

	rec, err := scanRecord(r.db.QueryRowContext(ctx, query, fen))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select best analysis line: %w", err)
	}
	return rec, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec    Record
		pvJSON []byte
	)
	if err := row.Scan(
		&rec.ID,
		&rec.SessionID,
		&rec.FEN,
		&rec.Turn,
		&rec.ScoreType,
		&rec.ScoreValue,
		&rec.Depth,
		&rec.Nodes,
		&rec.TimeMS,
		&pvJSON,
		&rec.AnalyzedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan analysis line: %w", err)
	}
	if err := json.Unmarshal(pvJSON, &rec.PV); err != nil {
		return nil, fmt.Errorf("unmarshal pv: %w", err)
	}
	return &rec, nil
}
