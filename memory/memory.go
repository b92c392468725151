// Package memory records finished simulation runs as episodes and reads
// them back. Stores implement engine.EpisodeSink.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/nathoo/simcore/config"
	"github.com/nathoo/simcore/engine"
	"github.com/nathoo/simcore/types"
)

// ErrNotFound is returned by Get for an unknown episode ID.
var ErrNotFound = errors.New("episode not found")

// timeLayout sorts lexically in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Store is an episode sink that can list what it recorded.
type Store interface {
	engine.EpisodeSink
	// List returns up to limit episodes, newest first. A limit of zero or
	// less returns all of them.
	List(ctx context.Context, limit int) ([]types.Episode, error)
	Get(ctx context.Context, id string) (types.Episode, error)
	Close() error
}

// Open returns the store cfg selects, or nil for the "none" driver.
func Open(ctx context.Context, cfg config.MemoryConfig) (Store, error) {
	switch cfg.Driver {
	case config.DriverNone, "":
		return nil, nil
	case config.DriverJSONL:
		return NewJSONL(afero.NewOsFs(), cfg.Path)
	case config.DriverSQLite:
		return NewSQLite(ctx, cfg.Path)
	case config.DriverPostgres:
		return NewPostgres(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown memory driver %q", cfg.Driver)
	}
}

// row is the column form shared by the SQL stores.
type row struct {
	id          string
	recordedAt  string
	input       string
	outcomes    []byte
	stats       []byte
	termination []byte
}

func toRow(ep types.Episode) (row, error) {
	outcomes, err := json.Marshal(ep.Outcomes)
	if err != nil {
		return row{}, fmt.Errorf("encoding outcomes: %w", err)
	}
	stats, err := json.Marshal(ep.Stats)
	if err != nil {
		return row{}, fmt.Errorf("encoding stats: %w", err)
	}
	term, err := json.Marshal(ep.Termination)
	if err != nil {
		return row{}, fmt.Errorf("encoding termination: %w", err)
	}
	return row{
		id:          ep.ID,
		recordedAt:  ep.RecordedAt.UTC().Format(timeLayout),
		input:       ep.Input,
		outcomes:    outcomes,
		stats:       stats,
		termination: term,
	}, nil
}

func (r row) episode() (types.Episode, error) {
	ep := types.Episode{ID: r.id, Input: r.input}
	t, err := time.Parse(timeLayout, r.recordedAt)
	if err != nil {
		return types.Episode{}, fmt.Errorf("episode %s: parsing time: %w", r.id, err)
	}
	ep.RecordedAt = t
	if err := json.Unmarshal(r.outcomes, &ep.Outcomes); err != nil {
		return types.Episode{}, fmt.Errorf("episode %s: decoding outcomes: %w", r.id, err)
	}
	if err := json.Unmarshal(r.stats, &ep.Stats); err != nil {
		return types.Episode{}, fmt.Errorf("episode %s: decoding stats: %w", r.id, err)
	}
	if err := json.Unmarshal(r.termination, &ep.Termination); err != nil {
		return types.Episode{}, fmt.Errorf("episode %s: decoding termination: %w", r.id, err)
	}
	return ep, nil
}
