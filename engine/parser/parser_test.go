package parser

import (
	"errors"
	"testing"

	"github.com/nathoo/simcore/engine/resolve"
	"github.com/nathoo/simcore/engine/state"
	"github.com/nathoo/simcore/types"
)

func mustParse(t *testing.T, text string, opts Options) *types.State {
	t.Helper()
	s, err := Parse(text, opts)
	if err != nil {
		t.Fatalf("Parse(%q) failed: %v", text, err)
	}
	return s
}

func propText(s *types.State, id string, kind types.PropertyKind) string {
	v, _ := state.GetProp(s, id, kind)
	return v.Text
}

func TestParse_ForestScenario(t *testing.T) {
	s := mustParse(t, "Alice walks into a dark forest feeling anxious", Options{})

	if len(s.Entities) != 2 {
		t.Fatalf("got %d entities, want 2: %v", len(s.Entities), state.EntityIDs(s))
	}
	if s.Entities["alice"].Type != "Person" {
		t.Errorf("alice type = %q, want Person", s.Entities["alice"].Type)
	}
	if s.Entities["forest"].Type != "Location" {
		t.Errorf("forest type = %q, want Location", s.Entities["forest"].Type)
	}
	if got := propText(s, "alice", types.Emotional); got != "anxious" {
		t.Errorf("alice emotional = %q, want anxious", got)
	}
	if got := propText(s, "alice", types.Location); got != "forest" {
		t.Errorf("alice location = %q, want forest", got)
	}
	if got := propText(s, "forest", types.Physical); got != "dark" {
		t.Errorf("forest physical = %q, want dark", got)
	}
	if _, ok := state.GetProp(s, "forest", types.Location); ok {
		t.Error("forest should not have a location property")
	}
	if !state.HasRelationship(s, "alice", "LOCATED_IN", "forest") {
		t.Error("expected alice LOCATED_IN forest")
	}
	if !s.Valid {
		t.Error("parsed state should be valid")
	}
}

func TestParse_Patterns(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		check func(t *testing.T, s *types.State)
	}{
		{
			name: "possession",
			text: "Bob has 3 coins.",
			check: func(t *testing.T, s *types.State) {
				v, _ := state.GetProp(s, "coins", types.Quantitative)
				if !v.Numeric || v.Number != 3 {
					t.Errorf("coins quantity = %+v, want 3", v)
				}
				if !state.HasRelationship(s, "bob", "HAS", "coins") {
					t.Error("expected bob HAS coins")
				}
			},
		},
		{
			name: "pronoun subject",
			text: "Alice walks into the park. She feels happy.",
			check: func(t *testing.T, s *types.State) {
				if got := propText(s, "alice", types.Emotional); got != "happy" {
					t.Errorf("alice emotional = %q, want happy", got)
				}
			},
		},
		{
			name: "social verb",
			text: "Alice meets Bob.",
			check: func(t *testing.T, s *types.State) {
				if !state.HasRelationship(s, "alice", "MEETS", "bob") {
					t.Errorf("relationships = %v", s.Relationships)
				}
			},
		},
		{
			name: "object pronoun skips subject",
			text: "Alice walks into the forest. Bob follows her.",
			check: func(t *testing.T, s *types.State) {
				if !state.HasRelationship(s, "bob", "FOLLOWS", "alice") {
					t.Errorf("relationships = %v", s.Relationships)
				}
			},
		},
		{
			name: "walking in the rain",
			text: "Alice walks in the rain.",
			check: func(t *testing.T, s *types.State) {
				if got := propText(s, "alice", types.Location); got != "rain" {
					t.Errorf("alice location = %q, want rain", got)
				}
			},
		},
		{
			name: "weather on place",
			text: "Alice walks into the forest. It is raining.",
			check: func(t *testing.T, s *types.State) {
				if got := propText(s, "forest", types.Physical); got != "rain" {
					t.Errorf("forest physical = %q, want rain", got)
				}
			},
		},
		{
			name: "time before subject",
			text: "At night, Alice walks into the forest.",
			check: func(t *testing.T, s *types.State) {
				if got := propText(s, "alice", types.Temporal); got != "night" {
					t.Errorf("alice temporal = %q, want night", got)
				}
			},
		},
		{
			name: "category",
			text: "Alice is a doctor.",
			check: func(t *testing.T, s *types.State) {
				if got := propText(s, "alice", types.Categorical); got != "doctor" {
					t.Errorf("alice categorical = %q, want doctor", got)
				}
			},
		},
		{
			name: "joint subjects",
			text: "Alice and Bob walk into the park.",
			check: func(t *testing.T, s *types.State) {
				for _, id := range []string{"alice", "bob"} {
					if got := propText(s, id, types.Location); got != "park" {
						t.Errorf("%s location = %q, want park", id, got)
					}
				}
			},
		},
		{
			name: "adjective before common noun",
			text: "The old man sees Alice.",
			check: func(t *testing.T, s *types.State) {
				if got := propText(s, "man", types.Physical); got != "old" {
					t.Errorf("man physical = %q, want old", got)
				}
				if !state.HasRelationship(s, "man", "SEES", "alice") {
					t.Errorf("relationships = %v", s.Relationships)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, mustParse(t, tt.text, Options{}))
		})
	}
}

func TestParse_Hints(t *testing.T) {
	hints := resolve.NewHints(types.EntityHint{
		Name:     "Rex",
		ID:       "rex_the_dog",
		Type:     "Animal",
		Pronouns: []string{"he", "him"},
		Props:    map[types.PropertyKind]types.Value{types.Categorical: state.Text("dog")},
	})
	s := mustParse(t, "Rex runs into the park. He feels happy.", Options{Hints: hints})

	rex, ok := s.Entities["rex_the_dog"]
	if !ok {
		t.Fatalf("expected hinted ID, got %v", state.EntityIDs(s))
	}
	if rex.Type != "Animal" {
		t.Errorf("type = %q, want Animal", rex.Type)
	}
	if got := propText(s, "rex_the_dog", types.Categorical); got != "dog" {
		t.Errorf("categorical = %q, want dog", got)
	}
	if got := propText(s, "rex_the_dog", types.Emotional); got != "happy" {
		t.Errorf("emotional = %q, want happy", got)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
		kind string
	}{
		{"no entities", "the rain falls quietly", ErrNoEntitiesFound, NoEntitiesFound},
		{"empty", "", ErrNoEntitiesFound, NoEntitiesFound},
		{"unresolved pronoun", "She walks into the forest.", ErrAmbiguousReference, AmbiguousReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.text, Options{})
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var pe *ParseError
			if !errors.As(err, &pe) || pe.Kind != tt.kind {
				t.Errorf("expected *ParseError of kind %q, got %v", tt.kind, err)
			}
		})
	}
}

func TestParse_Validates(t *testing.T) {
	_, err := Parse("Alice meets Bob.", Options{Limits: state.Limits{MaxEntities: 1}})
	if !errors.Is(err, state.ErrComplexityExceeded) {
		t.Errorf("err = %v, want ErrComplexityExceeded", err)
	}
}
