package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/cheese-arena/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS arena_games (
	id           TEXT PRIMARY KEY,
	game_id      TEXT NOT NULL UNIQUE,
	white_id     TEXT NOT NULL,
	white_name   TEXT NOT NULL DEFAULT '',
	black_id     TEXT NOT NULL DEFAULT '',
	black_name   TEXT NOT NULL DEFAULT '',
	time_control TEXT NOT NULL,
	result       TEXT NOT NULL DEFAULT '',
	cause        TEXT NOT NULL,
	moves        JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at   TIMESTAMPTZ NOT NULL,
	started_at   TIMESTAMPTZ,
	ended_at     TIMESTAMPTZ NOT NULL,
	duration_ms  BIGINT NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS arena_games_ended_at_idx ON arena_games (ended_at DESC);`

type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Open connects with lib/pq, applies pool limits and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*Postgres, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (r *Postgres) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// EnsureSchema creates the results table when missing.
func (r *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (r *Postgres) SaveResult(ctx context.Context, sum *session.Summary) error {
	if r == nil || r.db == nil || sum == nil {
		return nil
	}
	moves, err := json.Marshal(sum.Moves)
	if err != nil {
		return fmt.Errorf("marshal moves: %w", err)
	}
	duration := int64(0)
	if !sum.StartedAt.IsZero() {
		if d := sum.EndedAt.Sub(sum.StartedAt).Milliseconds(); d > 0 {
			duration = d
		}
	}

	const q = `INSERT INTO arena_games (
		id, game_id, white_id, white_name, black_id, black_name,
		time_control, result, cause, moves,
		created_at, started_at, ended_at, duration_ms
	) VALUES (
		$1,$2,$3,$4,$5,$6,$7,$8,$9,$10::jsonb,$11,$12,$13,$14
	) ON CONFLICT (game_id) DO UPDATE SET
		black_id=EXCLUDED.black_id,
		black_name=EXCLUDED.black_name,
		result=EXCLUDED.result,
		cause=EXCLUDED.cause,
		moves=EXCLUDED.moves,
		started_at=EXCLUDED.started_at,
		ended_at=EXCLUDED.ended_at,
		duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, q,
		sum.ID, sum.GameID,
		sum.White.ID, sum.White.Name,
		sum.Black.ID, sum.Black.Name,
		sum.TimeControl, sum.Winner, string(sum.Cause), string(moves),
		sum.CreatedAt, nullTime(sum.StartedAt), sum.EndedAt, duration,
	)
	if err != nil {
		return fmt.Errorf("upsert arena game %s: %w", sum.GameID, err)
	}
	return nil
}

const selectColumns = `id, game_id, white_id, white_name, black_id, black_name,
	time_control, result, cause, moves, created_at, started_at, ended_at`

func (r *Postgres) Get(ctx context.Context, gameID string) (*session.Summary, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM arena_games WHERE game_id = $1`, gameID)
	sum, err := scanSummary(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select arena game: %w", err)
	}
	return sum, nil
}

func (r *Postgres) Recent(ctx context.Context, limit int) ([]*session.Summary, error) {
	limit = clampLimit(limit)
	rows, err := r.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM arena_games ORDER BY ended_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select arena games: %w", err)
	}
	defer rows.Close()

	out := make([]*session.Summary, 0, limit)
	for rows.Next() {
		sum, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("scan arena game: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSummary(s scanner) (*session.Summary, error) {
	var (
		sum       session.Summary
		cause     string
		movesJSON []byte
		startedAt sql.NullTime
	)
	if err := s.Scan(
		&sum.ID, &sum.GameID,
		&sum.White.ID, &sum.White.Name,
		&sum.Black.ID, &sum.Black.Name,
		&sum.TimeControl, &sum.Winner, &cause, &movesJSON,
		&sum.CreatedAt, &startedAt, &sum.EndedAt,
	); err != nil {
		return nil, err
	}
	sum.Cause = session.Cause(cause)
	if startedAt.Valid {
		sum.StartedAt = startedAt.Time
	}
	if err := json.Unmarshal(movesJSON, &sum.Moves); err != nil {
		return nil, fmt.Errorf("unmarshal moves: %w", err)
	}
	return &sum, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
