// internal/database/database.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sc420/pygame-rl/engine/trajectory"
)

// DB is the shared pool. It stays nil when no database URL is configured.
var DB *pgxpool.Pool

// ErrNoPool is returned when DB is nil.
var ErrNoPool = errors.New("database: pool not connected")

// Connect opens the pool, pings it and installs it as DB.
func Connect(ctx context.Context, url string) error {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return fmt.Errorf("database: open: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("database: ping: %w", err)
	}
	DB = pool
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS episode_summaries (
	episode_id   UUID PRIMARY KEY,
	session_id   UUID NOT NULL,
	scenario     TEXT NOT NULL,
	seed         BIGINT NOT NULL,
	length       INTEGER NOT NULL,
	total_reward DOUBLE PRECISION NOT NULL,
	terminal     BOOLEAN NOT NULL,
	winner       TEXT,
	captured     INTEGER NOT NULL,
	final_digest TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS episode_summaries_session_idx ON episode_summaries (session_id);
`

// Migrate creates the tables used by the service.
func Migrate(ctx context.Context) error {
	if DB == nil {
		return ErrNoPool
	}
	if _, err := DB.Exec(ctx, schema); err != nil {
		return fmt.Errorf("database: migrate: %w", err)
	}
	return nil
}

const insertSummary = `
INSERT INTO episode_summaries
	(episode_id, session_id, scenario, seed, length, total_reward, terminal, winner, captured, final_digest)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (episode_id) DO NOTHING`

// summaryArgs returns the insert arguments for s in column order.
func summaryArgs(sessionID uuid.UUID, s trajectory.Summary) []any {
	var winner *string
	if s.Winner != "" {
		winner = &s.Winner
	}
	return []any{
		s.EpisodeID.String(),
		sessionID.String(),
		s.Scenario,
		int64(s.Seed),
		s.Length,
		s.TotalReward,
		s.Terminal,
		winner,
		s.Captured,
		s.FinalDigest,
	}
}

// StoreEpisodeSummary records a finished episode. Storing the same episode
// twice is a no-op.
func StoreEpisodeSummary(ctx context.Context, sessionID uuid.UUID, s trajectory.Summary) error {
	if DB == nil {
		return ErrNoPool
	}
	if _, err := DB.Exec(ctx, insertSummary, summaryArgs(sessionID, s)...); err != nil {
		return fmt.Errorf("database: store episode %s: %w", s.EpisodeID, err)
	}
	return nil
}

// EpisodeSummaries lists the stored episodes of a session, oldest first.
func EpisodeSummaries(ctx context.Context, sessionID uuid.UUID) ([]trajectory.Summary, error) {
	if DB == nil {
		return nil, ErrNoPool
	}
	rows, err := DB.Query(ctx, `
SELECT episode_id, scenario, seed, length, total_reward, terminal, COALESCE(winner, ''), captured, final_digest
FROM episode_summaries WHERE session_id = $1 ORDER BY created_at`, sessionID.String())
	if err != nil {
		return nil, fmt.Errorf("database: query summaries: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (trajectory.Summary, error) {
		var (
			s    trajectory.Summary
			id   string
			seed int64
		)
		if err := row.Scan(&id, &s.Scenario, &seed, &s.Length, &s.TotalReward, &s.Terminal, &s.Winner, &s.Captured, &s.FinalDigest); err != nil {
			return s, err
		}
		parsed, err := uuid.Parse(id)
		if err != nil {
			return s, err
		}
		s.EpisodeID = parsed
		s.Seed = uint64(seed)
		return s, nil
	})
}
