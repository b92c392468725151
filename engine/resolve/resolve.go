// Package resolve maps names and pronouns in narrative text to entity IDs.
package resolve

import (
	"fmt"
	"strings"

	"github.com/nathoo/simcore/types"
)

// HintSource supplies background knowledge about names. Absence of a hint
// is not an error; callers fall back to heuristics.
type HintSource interface {
	ResolveEntity(name string) (types.EntityHint, bool)
}

// Hints is an in-memory HintSource keyed by lowercase name and alias.
type Hints map[string]types.EntityHint

// NewHints indexes hints by name and aliases.
func NewHints(hs ...types.EntityHint) Hints {
	m := Hints{}
	for _, h := range hs {
		m.Add(h)
	}
	return m
}

// Add indexes one hint, replacing any previous hint for the same names.
func (m Hints) Add(h types.EntityHint) {
	m[strings.ToLower(h.Name)] = h
	for _, a := range h.Aliases {
		m[strings.ToLower(a)] = h
	}
}

// ResolveEntity looks up a name case-insensitively.
func (m Hints) ResolveEntity(name string) (types.EntityHint, bool) {
	h, ok := m[strings.ToLower(strings.TrimSpace(name))]
	return h, ok
}

// Lookup queries src, treating a nil source as empty.
func Lookup(src HintSource, name string) (types.EntityHint, bool) {
	if src == nil {
		return types.EntityHint{}, false
	}
	return src.ResolveEntity(name)
}

// ID normalizes a surface name to an entity ID: "New York" -> "new_york".
func ID(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
}

// HintID returns the entity ID for a hinted name.
func HintID(h types.EntityHint, name string) string {
	if h.ID != "" {
		return h.ID
	}
	return ID(name)
}

// NotFoundError indicates no antecedent matched a pronoun.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("nothing %q can refer to", e.Name)
}

// Pronoun groups. Each pronoun maps to its subject form.
var pronounGroups = map[string]string{
	"he": "he", "him": "he", "his": "he", "himself": "he",
	"she": "she", "her": "she", "hers": "she", "herself": "she",
	"they": "they", "them": "they", "their": "they", "themselves": "they",
	"it": "it", "its": "it", "itself": "it",
}

// IsPronoun reports whether word (lowercase) is a third-person pronoun.
func IsPronoun(word string) bool {
	_, ok := pronounGroups[word]
	return ok
}

type mention struct {
	id       string
	typ      string
	pronouns []string
}

// Tracker remembers entity mentions in order so pronouns can resolve to
// the most recent matching entity.
type Tracker struct {
	mentions []mention
}

// Mention records that id was referenced. pronouns come from a hint and
// may be empty.
func (t *Tracker) Mention(id, typ string, pronouns []string) {
	for i, m := range t.mentions {
		if m.id == id {
			t.mentions = append(t.mentions[:i], t.mentions[i+1:]...)
			break
		}
	}
	t.mentions = append(t.mentions, mention{id: id, typ: typ, pronouns: pronouns})
}

// Pronoun resolves a pronoun to the most recently mentioned matching
// entity, skipping any IDs in exclude. Hinted pronouns take precedence;
// otherwise he, she and they match Person entities and it matches
// anything else.
func (t *Tracker) Pronoun(word string, exclude ...string) (string, error) {
	group, ok := pronounGroups[strings.ToLower(word)]
	if !ok {
		return "", &NotFoundError{Name: word}
	}
next:
	for i := len(t.mentions) - 1; i >= 0; i-- {
		for _, x := range exclude {
			if t.mentions[i].id == x {
				continue next
			}
		}
		if matches(t.mentions[i], group) {
			return t.mentions[i].id, nil
		}
	}
	return "", &NotFoundError{Name: word}
}

func matches(m mention, group string) bool {
	if len(m.pronouns) > 0 {
		for _, p := range m.pronouns {
			if pronounGroups[strings.ToLower(p)] == group {
				return true
			}
		}
		return false
	}
	person := strings.EqualFold(m.typ, "Person")
	if group == "it" {
		return !person
	}
	return person
}
