// Package confidence scores branches: parent confidence times rule
// confidence, decayed by depth, adjusted by constraint weights.
package confidence

import (
	"math"

	"github.com/nathoo/simcore/engine/constraints"
	"github.com/nathoo/simcore/types"
)

// DefaultDecayRate gives roughly 0.33 at depth 5.
const DefaultDecayRate = 0.8

// Scorer computes branch confidence.
type Scorer struct {
	DecayRate float64 // in (0, 1]
}

// Scored is a confidence together with the constraint evaluation behind it.
type Scored struct {
	Confidence float64
	Base       float64 // before constraint adjustment
	Bonus      float64
	constraints.Evaluation
}

// New returns a scorer, falling back to DefaultDecayRate for rates
// outside (0, 1].
func New(decay float64) Scorer {
	if decay <= 0 || decay > 1 {
		decay = DefaultDecayRate
	}
	return Scorer{DecayRate: decay}
}

// Score returns the confidence of a child created from parent by action:
//
//	clamp(parent * action * decay^(parent.Depth+1) + bonus, 0, 1)
//
// The result is not monotonic in depth when achieve weights apply.
func (sc Scorer) Score(parent types.Branch, action types.Action, child *types.State, cs []types.Constraint) Scored {
	depth := parent.Depth + 1
	base := parent.Confidence * action.Confidence * math.Pow(sc.DecayRate, float64(depth))
	ev := constraints.Evaluate(child, cs)
	bonus := constraints.Bonus(cs, ev)
	return Scored{
		Confidence: Clamp(base+bonus, 0, 1),
		Base:       base,
		Bonus:      bonus,
		Evaluation: ev,
	}
}

// Root returns the score of a root branch: always 1.0. Constraints are
// evaluated and reported but do not adjust depth 0.
func (sc Scorer) Root(s *types.State, cs []types.Constraint) Scored {
	return Scored{
		Confidence: 1.0,
		Base:       1.0,
		Evaluation: constraints.Evaluate(s, cs),
	}
}

// Clamp limits x to [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
