// Package types defines the shared data structures for the simcore engine.
// This package holds only type definitions: no logic, no methods.
package types

import "time"

// PropertyKind classifies an entity property. An entity holds at most one
// value per kind.
type PropertyKind string

const (
	Physical     PropertyKind = "physical"
	Location     PropertyKind = "location"
	Temporal     PropertyKind = "temporal"
	Emotional    PropertyKind = "emotional"
	Relational   PropertyKind = "relational"
	Quantitative PropertyKind = "quantitative"
	Categorical  PropertyKind = "categorical"
	Custom       PropertyKind = "custom"
)

// Value is a typed property value. Numeric values carry Number; all others
// carry Text. Values are comparable with ==.
type Value struct {
	Text    string  `json:"text,omitempty" yaml:"text,omitempty"`
	Number  float64 `json:"number,omitempty" yaml:"number,omitempty"`
	Numeric bool    `json:"numeric,omitempty" yaml:"numeric,omitempty"`
}

// Entity is an identified object in a simulated world.
type Entity struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Props     map[PropertyKind]Value `json:"props"`
	CreatedAt int                    `json:"created_at"` // logical step
}

// Relationship is a directed, typed edge between two entities.
type Relationship struct {
	From     string  `json:"from"`
	Type     string  `json:"type"`
	To       string  `json:"to"`
	Strength float64 `json:"strength"`
}

// State is a complete world snapshot. Relationships are kept sorted by
// (From, Type, To) with no duplicates.
type State struct {
	Entities      map[string]Entity `json:"entities"`
	Relationships []Relationship    `json:"relationships"`
	Step          int               `json:"step"`
	Valid         bool              `json:"valid"`
}

// PredicateType tags a Predicate variant.
type PredicateType string

const (
	PredProperty      PredicateType = "property"
	PredQuantityAbove PredicateType = "quantity_above"
	PredQuantityBelow PredicateType = "quantity_below"
	PredRelation      PredicateType = "relation"
	PredEntityType    PredicateType = "entity_type"
	PredExists        PredicateType = "exists"
	PredNot           PredicateType = "not"
	PredAll           PredicateType = "all"
	PredAny           PredicateType = "any"
)

// Predicate is a condition over a state. Subject and Object are entity IDs
// or variables ("?x"). An empty Subject means "?x".
type Predicate struct {
	Type     PredicateType `json:"type" yaml:"type"`
	Subject  string        `json:"subject,omitempty" yaml:"subject,omitempty"`
	Kind     PropertyKind  `json:"kind,omitempty" yaml:"kind,omitempty"`
	Value    Value         `json:"value,omitzero" yaml:"value,omitempty"`
	Relation string        `json:"relation,omitempty" yaml:"relation,omitempty"`
	Object   string        `json:"object,omitempty" yaml:"object,omitempty"`
	Inner    []Predicate   `json:"inner,omitempty" yaml:"inner,omitempty"`
}

// EffectType tags an Effect variant.
type EffectType string

const (
	EffSetProperty        EffectType = "set_property"
	EffRemoveProperty     EffectType = "remove_property"
	EffAdjustQuantity     EffectType = "adjust_quantity"
	EffAddRelationship    EffectType = "add_relationship"
	EffRemoveRelationship EffectType = "remove_relationship"
	EffCreateEntity       EffectType = "create_entity"
)

// Effect is a single atomic state mutation. An empty Target means "?x".
type Effect struct {
	Type       EffectType   `json:"type" yaml:"type"`
	Target     string       `json:"target,omitempty" yaml:"target,omitempty"`
	Kind       PropertyKind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Value      Value        `json:"value,omitzero" yaml:"value,omitempty"`
	Delta      float64      `json:"delta,omitempty" yaml:"delta,omitempty"`
	Relation   string       `json:"relation,omitempty" yaml:"relation,omitempty"`
	Object     string       `json:"object,omitempty" yaml:"object,omitempty"`
	Strength   float64      `json:"strength,omitempty" yaml:"strength,omitempty"`
	EntityType string       `json:"entity_type,omitempty" yaml:"entity_type,omitempty"`
}

// Rule maps a conjunction of predicates to a list of effects.
type Rule struct {
	ID         string      `json:"id"`
	Pattern    []Predicate `json:"pattern"`
	Outcome    []Effect    `json:"outcome"`
	Confidence float64     `json:"confidence"`
	Tags       []string    `json:"tags,omitempty"`
	Source     string      `json:"source,omitempty"` // file the rule was loaded from
}

// Action is a rule instantiated against a specific state.
type Action struct {
	RuleID     string            `json:"rule_id"`
	Bindings   map[string]string `json:"bindings,omitempty"`
	Matched    []Predicate       `json:"matched"`
	Effects    []Effect          `json:"effects"`
	Confidence float64           `json:"confidence"`
}

// ConstraintKind is either avoid or achieve.
type ConstraintKind string

const (
	Avoid   ConstraintKind = "avoid"
	Achieve ConstraintKind = "achieve"
)

// Constraint is a per-run goal or avoidance.
type Constraint struct {
	ID     string         `json:"id"`
	Kind   ConstraintKind `json:"kind"`
	Target Predicate      `json:"target"`
	Weight float64        `json:"weight"`
}

// Policy selects how competing actions produce successors.
type Policy string

const (
	AllBranches       Policy = "all_branches"
	HighestConfidence Policy = "highest_confidence"
	Merge             Policy = "merge"
)

// BranchStatus is the lifecycle position of a branch.
type BranchStatus string

const (
	StatusActive   BranchStatus = "active"
	StatusExpanded BranchStatus = "expanded"
	StatusTerminal BranchStatus = "terminal"
	StatusPruned   BranchStatus = "pruned"
)

// NoParent is the parent ID of a root branch.
const NoParent = -1

// Branch is one node of the explored tree.
type Branch struct {
	ID         int          `json:"id"`
	Parent     int          `json:"parent"`
	Children   []int        `json:"children,omitempty"`
	State      *State       `json:"state"`
	Depth      int          `json:"depth"`
	Confidence float64      `json:"confidence"`
	Action     *Action      `json:"action,omitempty"` // edge from parent
	Satisfied  []string     `json:"satisfied,omitempty"`
	Violated   []string     `json:"violated,omitempty"`
	Status     BranchStatus `json:"status"`
	Active     bool         `json:"active"`
	EndReason  string       `json:"end_reason,omitempty"`
}

// Sampling selects which children survive a per-branch cap.
type Sampling string

const (
	SampleTop    Sampling = "top"
	SampleSeeded Sampling = "seeded"
)

// Config holds per-run tunables.
type Config struct {
	MaxDepth               int           `json:"max_depth" yaml:"max_depth" mapstructure:"max_depth" validate:"gte=1"`
	DecayRate              float64       `json:"decay_rate" yaml:"decay_rate" mapstructure:"decay_rate" validate:"gt=0,lte=1"`
	MinConfidence          float64       `json:"min_confidence" yaml:"min_confidence" mapstructure:"min_confidence" validate:"gte=0,lte=1"`
	MaxActiveBranches      int           `json:"max_active_branches" yaml:"max_active_branches" mapstructure:"max_active_branches" validate:"gte=1"`
	MaxBranches            int           `json:"max_branches" yaml:"max_branches" mapstructure:"max_branches" validate:"gte=1"`
	MaxSteps               int           `json:"max_steps" yaml:"max_steps" mapstructure:"max_steps" validate:"gte=1"`
	Timeout                time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout" validate:"gte=0"`
	Policy                 Policy        `json:"policy" yaml:"policy" mapstructure:"policy" validate:"oneof=all_branches highest_confidence merge"`
	MaxChildren            int           `json:"max_children" yaml:"max_children" mapstructure:"max_children" validate:"gte=0"`
	Sampling               Sampling      `json:"sampling" yaml:"sampling" mapstructure:"sampling" validate:"oneof=top seeded"`
	Seed                   int64         `json:"seed" yaml:"seed" mapstructure:"seed"`
	Workers                int           `json:"workers" yaml:"workers" mapstructure:"workers" validate:"gte=1,lte=64"`
	MaxEntities            int           `json:"max_entities" yaml:"max_entities" mapstructure:"max_entities" validate:"gte=1"`
	MaxPropertiesPerEntity int           `json:"max_properties_per_entity" yaml:"max_properties_per_entity" mapstructure:"max_properties_per_entity" validate:"gte=1"`
}

// Stats summarizes a run.
type Stats struct {
	Explored          int           `json:"explored"`
	Pruned            int           `json:"pruned"`
	PrunedByThreshold int           `json:"pruned_by_threshold"`
	PrunedByBudget    int           `json:"pruned_by_budget"`
	SurvivorsKept     int           `json:"survivors_kept"`
	Rejected          int           `json:"rejected"`
	NoOps             int           `json:"no_ops"`
	Rounds            int           `json:"rounds"`
	MaxDepthReached   int           `json:"max_depth_reached"`
	RNGDraws          int64         `json:"rng_draws"`
	PruningEfficiency float64       `json:"pruning_efficiency"`
	Elapsed           time.Duration `json:"elapsed"`
}

// Termination reasons.
const (
	EndMaxDepth     = "max_depth"
	EndExhausted    = "exhausted"
	EndNoRules      = "no_rules"
	EndStepBudget   = "step_budget"
	EndBranchBudget = "branch_budget"
	EndTimeout      = "timeout"
	EndCancelled    = "cancelled"
)

// Termination records why a run stopped. ByBudget distinguishes budget or
// deadline stops from natural ones.
type Termination struct {
	Reason   string `json:"reason"`
	ByBudget bool   `json:"by_budget"`
}

// Event is a notable occurrence during a run.
type Event struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

// SimulationResult is the output of one run.
type SimulationResult struct {
	Input       string       `json:"input"`
	Constraints []Constraint `json:"constraints,omitempty"`
	Config      Config       `json:"config"`
	Branches    []Branch     `json:"branches"` // index == Branch.ID
	Ranked      []int        `json:"ranked"`
	Stats       Stats        `json:"stats"`
	Termination Termination  `json:"termination"`
	Events      []Event      `json:"events,omitempty"`
}

// EntityHint is background knowledge about a name, supplied by a
// collaborator to guide parsing.
type EntityHint struct {
	Name     string                 `json:"name" yaml:"name"`
	ID       string                 `json:"id,omitempty" yaml:"id,omitempty"`
	Type     string                 `json:"type,omitempty" yaml:"type,omitempty"`
	Aliases  []string               `json:"aliases,omitempty" yaml:"aliases,omitempty"`
	Pronouns []string               `json:"pronouns,omitempty" yaml:"pronouns,omitempty"`
	Props    map[PropertyKind]Value `json:"props,omitempty" yaml:"props,omitempty"`
}

// EpisodeOutcome is one ranked branch in an episode summary.
type EpisodeOutcome struct {
	BranchID   int      `json:"branch_id"`
	Depth      int      `json:"depth"`
	Confidence float64  `json:"confidence"`
	Rules      []string `json:"rules"` // rule IDs from root to branch
	Summary    string   `json:"summary"`
}

// Episode is the record emitted after each run.
type Episode struct {
	ID          string           `json:"id"`
	RecordedAt  time.Time        `json:"recorded_at"`
	Input       string           `json:"input"`
	Outcomes    []EpisodeOutcome `json:"outcomes"`
	Stats       Stats            `json:"stats"`
	Termination Termination      `json:"termination"`
}
