package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/nathoo/simcore/types"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS episodes (
	id          TEXT PRIMARY KEY,
	recorded_at TEXT NOT NULL,
	input       TEXT NOT NULL,
	outcomes    TEXT NOT NULL DEFAULT '[]',
	stats       TEXT NOT NULL DEFAULT '{}',
	termination TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_episodes_recorded_at ON episodes (recorded_at);
`

// SQLiteStore keeps episodes in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens (creating if needed) the database at path. ":memory:"
// gives a private in-memory database.
func NewSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}
	// One connection keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA busy_timeout = 30000;",
		"PRAGMA journal_mode = WAL;",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Record inserts ep, replacing any episode with the same ID.
func (s *SQLiteStore) Record(ctx context.Context, ep types.Episode) error {
	r, err := toRow(ep)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
	INSERT INTO episodes (id, recorded_at, input, outcomes, stats, termination)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET
		recorded_at = excluded.recorded_at,
		input       = excluded.input,
		outcomes    = excluded.outcomes,
		stats       = excluded.stats,
		termination = excluded.termination
	`, r.id, r.recordedAt, r.input, string(r.outcomes), string(r.stats), string(r.termination))
	if err != nil {
		return fmt.Errorf("recording episode %s: %w", ep.ID, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, limit int) ([]types.Episode, error) {
	if limit <= 0 {
		limit = -1 // no limit
	}
	rows, err := s.db.QueryContext(ctx, `
	SELECT id, recorded_at, input, outcomes, stats, termination
	FROM episodes
	ORDER BY recorded_at DESC, id DESC
	LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing episodes: %w", err)
	}
	defer rows.Close()

	var out []types.Episode
	for rows.Next() {
		var r row
		var outcomes, stats, term string
		if err := rows.Scan(&r.id, &r.recordedAt, &r.input, &outcomes, &stats, &term); err != nil {
			return nil, fmt.Errorf("scanning episode: %w", err)
		}
		r.outcomes, r.stats, r.termination = []byte(outcomes), []byte(stats), []byte(term)
		ep, err := r.episode()
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

func (s *SQLiteStore) Get(ctx context.Context, id string) (types.Episode, error) {
	var r row
	var outcomes, stats, term string
	err := s.db.QueryRowContext(ctx, `
	SELECT id, recorded_at, input, outcomes, stats, termination
	FROM episodes WHERE id = ?
	`, id).Scan(&r.id, &r.recordedAt, &r.input, &outcomes, &stats, &term)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Episode{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return types.Episode{}, fmt.Errorf("getting episode %s: %w", id, err)
	}
	r.outcomes, r.stats, r.termination = []byte(outcomes), []byte(stats), []byte(term)
	return r.episode()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
