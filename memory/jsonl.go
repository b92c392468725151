package memory

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/afero"

	"github.com/nathoo/simcore/types"
)

// JSONLStore appends one episode per line to a file. It is safe for
// concurrent use.
type JSONLStore struct {
	mu   sync.Mutex
	fs   afero.Fs
	path string
}

var _ Store = (*JSONLStore)(nil)

// NewJSONL creates the file's directory if needed.
func NewJSONL(fsys afero.Fs, path string) (*JSONLStore, error) {
	if err := fsys.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating episode directory: %w", err)
	}
	return &JSONLStore{fs: fsys, path: path}, nil
}

// Record appends ep as a single line.
func (s *JSONLStore) Record(_ context.Context, ep types.Episode) error {
	data, err := json.Marshal(ep)
	if err != nil {
		return fmt.Errorf("encoding episode: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.fs.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening %s: %w", s.path, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("writing episode: %w", err)
	}
	return f.Close()
}

// List reads the file back, newest line first.
func (s *JSONLStore) List(ctx context.Context, limit int) ([]types.Episode, error) {
	all, err := s.readAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]types.Episode, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		out = append(out, all[i])
	}
	return out, nil
}

// Get returns the last episode recorded with id.
func (s *JSONLStore) Get(ctx context.Context, id string) (types.Episode, error) {
	all, err := s.readAll(ctx)
	if err != nil {
		return types.Episode{}, err
	}
	for i := len(all) - 1; i >= 0; i-- {
		if all[i].ID == id {
			return all[i], nil
		}
	}
	return types.Episode{}, fmt.Errorf("%w: %s", ErrNotFound, id)
}

func (s *JSONLStore) Close() error { return nil }

func (s *JSONLStore) readAll(ctx context.Context) ([]types.Episode, error) {
	s.mu.Lock()
	data, err := afero.ReadFile(s.fs, s.path)
	s.mu.Unlock()
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}

	var out []types.Episode
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for line := 1; sc.Scan(); line++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var ep types.Episode
		if err := json.Unmarshal(sc.Bytes(), &ep); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", s.path, line, err)
		}
		out = append(out, ep)
	}
	return out, sc.Err()
}
