// Package engine provides the Run orchestrator that wires together
// parsing, rule matching, transitions, scoring and pruning into a
// bounded search over possible futures.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/nathoo/simcore/engine/branch"
	"github.com/nathoo/simcore/engine/confidence"
	"github.com/nathoo/simcore/engine/events"
	"github.com/nathoo/simcore/engine/narrate"
	"github.com/nathoo/simcore/engine/parser"
	"github.com/nathoo/simcore/engine/prune"
	"github.com/nathoo/simcore/engine/resolve"
	"github.com/nathoo/simcore/engine/rules"
	"github.com/nathoo/simcore/engine/state"
	"github.com/nathoo/simcore/engine/transition"
	"github.com/nathoo/simcore/logging"
	"github.com/nathoo/simcore/types"
)

// Phase is the stage of a run.
type Phase string

const (
	PhaseInitialized Phase = "initialized"
	PhaseExpanding   Phase = "expanding"
	PhasePruning     Phase = "pruning"
	PhaseTerminated  Phase = "terminated"
)

// episodeOutcomes caps how many ranked branches an episode records.
const episodeOutcomes = 5

// EpisodeSink receives a summary of every finished run. Errors are
// logged and otherwise ignored.
type EpisodeSink interface {
	Record(ctx context.Context, ep types.Episode) error
}

// Engine runs simulations against a rule source. It holds no per-run
// state and is safe for concurrent use.
type Engine struct {
	rules rules.Source
	hints resolve.HintSource
	log   *slog.Logger
	sink  EpisodeSink
	now   func() time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithHints supplies entity hints to the parser.
func WithHints(h resolve.HintSource) Option {
	return func(e *Engine) { e.hints = h }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithEpisodes sets where run summaries are recorded.
func WithEpisodes(s EpisodeSink) Option {
	return func(e *Engine) { e.sink = s }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// New creates an engine that draws rules from src.
func New(src rules.Source, opts ...Option) *Engine {
	e := &Engine{
		rules: src,
		log:   logging.Discard(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DefaultConfig returns the default run configuration.
func DefaultConfig() types.Config {
	return types.Config{
		MaxDepth:               5,
		DecayRate:              confidence.DefaultDecayRate,
		MinConfidence:          0.05,
		MaxActiveBranches:      16,
		MaxBranches:            1024,
		MaxSteps:               64,
		Policy:                 types.AllBranches,
		Sampling:               types.SampleTop,
		Workers:                1,
		MaxEntities:            64,
		MaxPropertiesPerEntity: 8,
	}
}

// Normalize fills zero fields of cfg from DefaultConfig. MinConfidence,
// MaxChildren, Seed and Timeout keep their zero value, which disables
// them.
func Normalize(cfg types.Config) types.Config {
	def := DefaultConfig()
	if cfg.MaxDepth <= 0 {
		cfg.MaxDepth = def.MaxDepth
	}
	if cfg.DecayRate <= 0 || cfg.DecayRate > 1 {
		cfg.DecayRate = def.DecayRate
	}
	if cfg.MaxActiveBranches <= 0 {
		cfg.MaxActiveBranches = def.MaxActiveBranches
	}
	if cfg.MaxBranches <= 0 {
		cfg.MaxBranches = def.MaxBranches
	}
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = def.MaxSteps
	}
	if cfg.Policy == "" {
		cfg.Policy = def.Policy
	}
	if cfg.Sampling == "" {
		cfg.Sampling = def.Sampling
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.MaxEntities <= 0 {
		cfg.MaxEntities = def.MaxEntities
	}
	if cfg.MaxPropertiesPerEntity <= 0 {
		cfg.MaxPropertiesPerEntity = def.MaxPropertiesPerEntity
	}
	return cfg
}

// Run parses text into a state and simulates it. Parse errors and
// unsupported policies fail the call; everything that goes wrong inside
// the search is recorded in the result instead.
func (e *Engine) Run(ctx context.Context, text string, cs []types.Constraint, cfg types.Config) (*types.SimulationResult, error) {
	cfg = Normalize(cfg)
	if err := transition.CheckPolicy(cfg.Policy); err != nil {
		return nil, err
	}
	s, err := parser.Parse(text, parser.Options{Hints: e.hints, Limits: state.LimitsFrom(cfg)})
	if err != nil {
		return nil, err
	}
	return e.simulate(ctx, text, s, cs, cfg)
}

// RunState simulates from a copy of an already-built state. Only untagged
// rules apply, since there is no scenario text to match tags against.
func (e *Engine) RunState(ctx context.Context, s *types.State, cs []types.Constraint, cfg types.Config) (*types.SimulationResult, error) {
	if s == nil {
		return nil, errors.New("initial state is nil")
	}
	cfg = Normalize(cfg)
	if err := transition.CheckPolicy(cfg.Policy); err != nil {
		return nil, err
	}
	s = state.Clone(s)
	if err := state.Validate(s, state.LimitsFrom(cfg)); err != nil {
		return nil, fmt.Errorf("initial state: %w", err)
	}
	return e.simulate(ctx, "", s, cs, cfg)
}

func (e *Engine) simulate(ctx context.Context, text string, s *types.State, cs []types.Constraint, cfg types.Config) (*types.SimulationResult, error) {
	rs, err := e.rules.Rules(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}

	r := &run{
		cfg:    cfg,
		cs:     cs,
		rules:  rs,
		limits: state.LimitsFrom(cfg),
		tree:   branch.New(),
		rec:    events.NewRecorder(e.log),
		scorer: confidence.New(cfg.DecayRate),
		pruner: prune.Pruner{MinConfidence: cfg.MinConfidence, MaxActive: cfg.MaxActiveBranches},
		rng:    NewRNG(cfg.Seed),
		log:    e.log,
	}

	start := e.now()
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	term := r.loop(ctx, s)

	res := &types.SimulationResult{
		Input:       text,
		Constraints: cs,
		Config:      cfg,
		Branches:    r.tree.Snapshot(),
		Ranked:      r.tree.Ranked(),
		Termination: term,
		Events:      r.rec.Events(),
	}
	res.Stats = r.stats
	res.Stats.Explored = r.tree.Len()
	res.Stats.Pruned = r.tree.Count(types.StatusPruned)
	res.Stats.RNGDraws = r.rng.Position()
	if res.Stats.Explored > 0 {
		res.Stats.PruningEfficiency = float64(res.Stats.Pruned) / float64(res.Stats.Explored)
	}
	res.Stats.Elapsed = e.now().Sub(start)

	e.log.Debug("run finished",
		"reason", term.Reason,
		"by_budget", term.ByBudget,
		"explored", res.Stats.Explored,
		"pruned", res.Stats.Pruned,
		"rounds", res.Stats.Rounds,
	)

	e.record(ctx, res)
	return res, nil
}

// record hands an episode to the sink. Failures never reach the caller.
func (e *Engine) record(ctx context.Context, res *types.SimulationResult) {
	if e.sink == nil {
		return
	}
	ep := types.Episode{
		ID:          uuid.NewString(),
		RecordedAt:  e.now().UTC(),
		Input:       res.Input,
		Stats:       res.Stats,
		Termination: res.Termination,
	}
	for i, id := range res.Ranked {
		if i == episodeOutcomes {
			break
		}
		b := res.Branches[id]
		ep.Outcomes = append(ep.Outcomes, types.EpisodeOutcome{
			BranchID:   b.ID,
			Depth:      b.Depth,
			Confidence: b.Confidence,
			Rules:      narrate.Rules(res.Branches, id),
			Summary:    narrate.Path(res.Branches, id),
		})
	}
	if err := e.sink.Record(context.WithoutCancel(ctx), ep); err != nil {
		e.log.Warn("episode not recorded", "episode", ep.ID, "error", err)
	}
}

// run is the state of one simulation. It is never shared between calls.
type run struct {
	cfg    types.Config
	cs     []types.Constraint
	rules  []types.Rule
	limits state.Limits
	tree   *branch.Tree
	rec    *events.Recorder
	scorer confidence.Scorer
	pruner prune.Pruner
	rng    *RNG
	log    *slog.Logger

	phase    Phase
	stats    types.Stats
	full     bool // tree reached MaxBranches
	depthHit bool // a branch stopped at MaxDepth in the last round
}

func (r *run) setPhase(p Phase) {
	if r.phase == p {
		return
	}
	r.phase = p
	r.log.Debug("phase", "phase", string(p), "round", r.stats.Rounds)
	r.rec.Emit(events.PhaseChanged, map[string]any{"phase": string(p), "round": r.stats.Rounds})
}

// loop seeds the root and alternates expansion and pruning until the
// search ends. It returns why.
func (r *run) loop(ctx context.Context, s *types.State) types.Termination {
	r.setPhase(PhaseInitialized)
	root := r.scorer.Root(s, r.cs)
	id := r.tree.AddRoot(s, root.Confidence, root.Satisfied, root.Violated)
	r.rec.Emit(events.BranchAdded, map[string]any{"branch": id, "parent": types.NoParent, "depth": 0, "confidence": root.Confidence})

	var term types.Termination
	for {
		frontier := r.tree.Frontier()
		if len(frontier) == 0 {
			term.Reason = types.EndExhausted
			if r.depthHit {
				term.Reason = types.EndMaxDepth
			}
			break
		}
		if t, stop := r.budget(ctx); stop {
			term = t
			break
		}

		r.setPhase(PhaseExpanding)
		if err := r.expand(ctx, frontier); err != nil {
			// The partial round is dropped.
			t, stop := r.budget(ctx)
			if !stop {
				r.log.Error("expansion failed", "error", err)
				t = types.Termination{Reason: types.EndCancelled}
			}
			term = t
			break
		}
		r.stats.Rounds++

		r.setPhase(PhasePruning)
		r.prune()
		r.rec.Emit(events.RoundCompleted, map[string]any{
			"round":    r.stats.Rounds,
			"branches": r.tree.Len(),
			"active":   len(r.tree.Frontier()),
		})
	}

	r.setPhase(PhaseTerminated)
	for _, id := range r.tree.Frontier() {
		r.tree.SetStatus(id, types.StatusTerminal, term.Reason)
	}
	r.rec.Emit(events.RunTerminated, map[string]any{"reason": term.Reason, "by_budget": term.ByBudget})
	return term
}

// budget reports whether a budget or the context stops the run.
func (r *run) budget(ctx context.Context) (types.Termination, bool) {
	switch err := ctx.Err(); {
	case errors.Is(err, context.DeadlineExceeded):
		return types.Termination{Reason: types.EndTimeout, ByBudget: true}, true
	case err != nil:
		return types.Termination{Reason: types.EndCancelled}, true
	}
	if r.stats.Rounds >= r.cfg.MaxSteps {
		return types.Termination{Reason: types.EndStepBudget, ByBudget: true}, true
	}
	if r.full || r.tree.Len() >= r.cfg.MaxBranches {
		return types.Termination{Reason: types.EndBranchBudget, ByBudget: true}, true
	}
	return types.Termination{}, false
}

type candidate struct {
	state  *types.State
	action types.Action
	score  confidence.Scored
}

type rejection struct {
	rule  string
	codes []string
}

// expansion is what one frontier branch produced in a round.
type expansion struct {
	end      string // terminal reason when nothing was produced
	kids     []candidate
	rejected []rejection
	noops    []string
}

// expand grows every frontier branch, then inserts the results in
// frontier order. With more than one worker the per-branch work runs
// concurrently; insertion stays sequential.
func (r *run) expand(ctx context.Context, frontier []int) error {
	results := make([]expansion, len(frontier))

	if r.cfg.Workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.cfg.Workers)
		for i, id := range frontier {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				var err error
				results[i], err = r.grow(id)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
	} else {
		for i, id := range frontier {
			if err := ctx.Err(); err != nil {
				return err
			}
			var err error
			if results[i], err = r.grow(id); err != nil {
				return err
			}
		}
	}

	r.depthHit = false
	for i, id := range frontier {
		r.insert(id, results[i])
	}
	return nil
}

// grow computes the children of one branch without touching the tree.
func (r *run) grow(id int) (expansion, error) {
	var x expansion
	b, _ := r.tree.Get(id)
	if b.Depth >= r.cfg.MaxDepth {
		x.end = types.EndMaxDepth
		return x, nil
	}

	actions := rules.ApplicableRules(b.State, r.rules)
	if len(actions) == 0 {
		x.end = types.EndNoRules
		return x, nil
	}

	succ, err := transition.Apply(b.State, actions, r.cfg.Policy)
	if err != nil {
		return x, err
	}
	for _, sc := range succ {
		if !sc.Changed {
			x.noops = append(x.noops, sc.Action.RuleID)
			continue
		}
		if err := state.Validate(sc.State, r.limits); err != nil {
			rej := rejection{rule: sc.Action.RuleID}
			var ve *state.ValidationError
			if errors.As(err, &ve) {
				rej.codes = ve.Codes()
			}
			x.rejected = append(x.rejected, rej)
			continue
		}
		x.kids = append(x.kids, candidate{
			state:  sc.State,
			action: sc.Action,
			score:  r.scorer.Score(b, sc.Action, sc.State, r.cs),
		})
	}
	if len(x.kids) == 0 {
		x.end = types.EndExhausted
	}
	return x, nil
}

func (r *run) insert(parent int, x expansion) {
	for _, rej := range x.rejected {
		r.stats.Rejected++
		r.rec.Emit(events.TransitionRejected, map[string]any{"branch": parent, "rule": rej.rule, "codes": rej.codes})
	}
	for _, rule := range x.noops {
		r.stats.NoOps++
		r.rec.Emit(events.NoOpSkipped, map[string]any{"branch": parent, "rule": rule})
	}

	if x.end != "" {
		if x.end == types.EndMaxDepth {
			r.depthHit = true
		}
		r.tree.SetStatus(parent, types.StatusTerminal, x.end)
		r.rec.Emit(events.BranchTerminal, map[string]any{"branch": parent, "reason": x.end})
		return
	}

	added := 0
	for _, c := range r.cap(x.kids) {
		if r.tree.Len() >= r.cfg.MaxBranches {
			r.full = true
			break
		}
		id := r.tree.AddChild(parent, c.state, c.action, c.score.Confidence, c.score.Satisfied, c.score.Violated)
		added++
		b, _ := r.tree.Get(id)
		if b.Depth > r.stats.MaxDepthReached {
			r.stats.MaxDepthReached = b.Depth
		}
		r.rec.Emit(events.BranchAdded, map[string]any{
			"branch":     id,
			"parent":     parent,
			"depth":      b.Depth,
			"rule":       c.action.RuleID,
			"confidence": c.score.Confidence,
		})
	}
	if added > 0 {
		r.tree.SetStatus(parent, types.StatusExpanded, "")
	}
}

// cap limits the children of one branch to MaxChildren, keeping the
// survivors in their original order.
func (r *run) cap(kids []candidate) []candidate {
	if r.cfg.MaxChildren <= 0 || len(kids) <= r.cfg.MaxChildren {
		return kids
	}

	var keep []int
	switch r.cfg.Sampling {
	case types.SampleSeeded:
		weights := make([]float64, len(kids))
		for i, c := range kids {
			weights[i] = c.score.Confidence
		}
		keep = r.rng.Sample(weights, r.cfg.MaxChildren)
	default:
		order := make([]int, len(kids))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(i, j int) bool {
			return kids[order[i]].score.Confidence > kids[order[j]].score.Confidence
		})
		keep = order[:r.cfg.MaxChildren]
	}
	sort.Ints(keep)

	out := make([]candidate, len(keep))
	for i, k := range keep {
		out[i] = kids[k]
	}
	r.log.Debug("children capped", "produced", len(kids), "kept", len(out))
	return out
}

func (r *run) prune() {
	rep := r.pruner.Prune(r.tree)
	r.stats.PrunedByThreshold += len(rep.Threshold)
	r.stats.PrunedByBudget += len(rep.Budget)
	for _, id := range rep.Threshold {
		r.rec.Emit(events.BranchPruned, map[string]any{"branch": id, "reason": prune.ReasonThreshold})
	}
	for _, id := range rep.Budget {
		r.rec.Emit(events.BranchPruned, map[string]any{"branch": id, "reason": prune.ReasonBudget})
	}
	if rep.Survivor >= 0 {
		r.stats.SurvivorsKept++
		r.rec.Emit(events.SurvivorKept, map[string]any{"branch": rep.Survivor})
	}
	r.log.Debug("pruned",
		"round", r.stats.Rounds,
		"threshold", len(rep.Threshold),
		"budget", len(rep.Budget),
		"remaining", rep.Remaining,
	)
}
