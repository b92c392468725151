package loader

import (
	"context"
	"sync"

	"github.com/nathoo/simcore/engine/resolve"
	"github.com/nathoo/simcore/engine/rules"
	"github.com/nathoo/simcore/types"
)

// Pack is a loaded, validated rule pack. It supplies rules, entity hints
// and default constraints, and is immutable once loaded.
type Pack struct {
	Name        string
	Description string
	Dir         string
	Warnings    []string

	rules       []types.Rule
	hints       resolve.Hints
	hintList    []types.EntityHint
	constraints []types.Constraint
}

var (
	_ rules.Source       = (*Pack)(nil)
	_ resolve.HintSource = (*Pack)(nil)
)

func (p *Pack) addHint(h types.EntityHint) {
	p.hintList = append(p.hintList, h)
	p.hints.Add(h)
}

// Rules returns the pack rules relevant to scenario.
func (p *Pack) Rules(_ context.Context, scenario string) ([]types.Rule, error) {
	return rules.ForScenario(p.rules, scenario), nil
}

// All returns every rule in load order.
func (p *Pack) All() []types.Rule {
	out := make([]types.Rule, len(p.rules))
	copy(out, p.rules)
	return out
}

// ResolveEntity looks up a hinted name or alias.
func (p *Pack) ResolveEntity(name string) (types.EntityHint, bool) {
	return p.hints.ResolveEntity(name)
}

// Hints returns the pack's entity hints in load order.
func (p *Pack) Hints() []types.EntityHint {
	out := make([]types.EntityHint, len(p.hintList))
	copy(out, p.hintList)
	return out
}

// Constraints returns the pack's default constraints.
func (p *Pack) Constraints() []types.Constraint {
	out := make([]types.Constraint, len(p.constraints))
	copy(out, p.constraints)
	return out
}

// Live holds the current pack of a watched directory. It serves rules and
// hints from whichever pack was loaded last.
type Live struct {
	mu   sync.RWMutex
	pack *Pack
}

var (
	_ rules.Source       = (*Live)(nil)
	_ resolve.HintSource = (*Live)(nil)
)

// NewLive wraps an initial pack.
func NewLive(p *Pack) *Live {
	return &Live{pack: p}
}

// Pack returns the current pack.
func (l *Live) Pack() *Pack {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.pack
}

// Set replaces the current pack.
func (l *Live) Set(p *Pack) {
	l.mu.Lock()
	l.pack = p
	l.mu.Unlock()
}

func (l *Live) Rules(ctx context.Context, scenario string) ([]types.Rule, error) {
	return l.Pack().Rules(ctx, scenario)
}

func (l *Live) ResolveEntity(name string) (types.EntityHint, bool) {
	return l.Pack().ResolveEntity(name)
}

// All returns every rule of the current pack.
func (l *Live) All() []types.Rule {
	return l.Pack().All()
}
