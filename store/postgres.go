package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	createGameStates = `
CREATE TABLE IF NOT EXISTS game_states (
	session_id TEXT PRIMARY KEY,
	state      JSONB NOT NULL CHECK (jsonb_typeof(state) = 'object'),
	saved_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`

	upsertGameState = `
INSERT INTO game_states (session_id, state, saved_at)
VALUES ($1, $2, NOW())
ON CONFLICT (session_id) DO UPDATE SET state = EXCLUDED.state, saved_at = EXCLUDED.saved_at`

	selectGameStates = `SELECT session_id, state FROM game_states`

	deleteGameState = `DELETE FROM game_states WHERE session_id = $1`
)

// Postgres stores each session's game state as a JSONB object in game_states.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Snapshotter = (*Postgres)(nil)

type gameStateRow struct {
	SessionID string `db:"session_id"`
	State     []byte `db:"state"`
}

// NewPostgres opens a pool on connStr and makes sure game_states exists.
func NewPostgres(ctx context.Context, connStr string) (*Postgres, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if _, err := pool.Exec(ctx, createGameStates); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: create game_states: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) SaveSnapshot(ctx context.Context, sessionID string, state []byte) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := p.pool.Exec(ctx, upsertGameState, sessionID, state); err != nil {
		return fmt.Errorf("postgres: save session %s: %w", sessionID, err)
	}
	return nil
}

func (p *Postgres) LoadAllSnapshots(ctx context.Context) (map[string][]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	rows, err := p.pool.Query(ctx, selectGameStates)
	if err != nil {
		return nil, fmt.Errorf("postgres: load sessions: %w", err)
	}
	states, err := pgx.CollectRows(rows, pgx.RowToStructByName[gameStateRow])
	if err != nil {
		return nil, fmt.Errorf("postgres: read sessions: %w", err)
	}
	snapshots := make(map[string][]byte, len(states))
	for _, row := range states {
		snapshots[row.SessionID] = row.State
	}
	return snapshots, nil
}

func (p *Postgres) DeleteSnapshot(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if _, err := p.pool.Exec(ctx, deleteGameState, sessionID); err != nil {
		return fmt.Errorf("postgres: delete session %s: %w", sessionID, err)
	}
	return nil
}

func (p *Postgres) Close() {
	p.pool.Close()
}
