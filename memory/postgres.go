package memory

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nathoo/simcore/types"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS simcore_episodes (
	id          TEXT PRIMARY KEY,
	recorded_at TEXT NOT NULL,
	input       TEXT NOT NULL,
	outcomes    JSONB NOT NULL DEFAULT '[]',
	stats       JSONB NOT NULL DEFAULT '{}',
	termination JSONB NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_simcore_episodes_recorded_at ON simcore_episodes (recorded_at);
`

// PostgresStore keeps episodes in a Postgres table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgres connects to dsn and ensures the schema exists.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Record(ctx context.Context, ep types.Episode) error {
	r, err := toRow(ep)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
	INSERT INTO simcore_episodes (id, recorded_at, input, outcomes, stats, termination)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET
		recorded_at = EXCLUDED.recorded_at,
		input       = EXCLUDED.input,
		outcomes    = EXCLUDED.outcomes,
		stats       = EXCLUDED.stats,
		termination = EXCLUDED.termination
	`, r.id, r.recordedAt, r.input, string(r.outcomes), string(r.stats), string(r.termination))
	if err != nil {
		return fmt.Errorf("recording episode %s: %w", ep.ID, err)
	}
	return nil
}

func (s *PostgresStore) List(ctx context.Context, limit int) ([]types.Episode, error) {
	query := `
	SELECT id, recorded_at, input, outcomes::text, stats::text, termination::text
	FROM simcore_episodes
	ORDER BY recorded_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing episodes: %w", err)
	}
	defer rows.Close()

	var out []types.Episode
	for rows.Next() {
		ep, err := scanPostgres(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating episodes: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (types.Episode, error) {
	ep, err := scanPostgres(s.pool.QueryRow(ctx, `
	SELECT id, recorded_at, input, outcomes::text, stats::text, termination::text
	FROM simcore_episodes WHERE id = $1
	`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return types.Episode{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return ep, err
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func scanPostgres(sc pgx.Row) (types.Episode, error) {
	var r row
	var outcomes, stats, term string
	if err := sc.Scan(&r.id, &r.recordedAt, &r.input, &outcomes, &stats, &term); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return types.Episode{}, err
		}
		return types.Episode{}, fmt.Errorf("scanning episode: %w", err)
	}
	r.outcomes, r.stats, r.termination = []byte(outcomes), []byte(stats), []byte(term)
	return r.episode()
}
