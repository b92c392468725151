// Package parser builds an initial world state from a short narrative.
// Intentionally dumb: no NLP, just word lists and pattern matching.
package parser

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/nathoo/simcore/engine/resolve"
	"github.com/nathoo/simcore/engine/state"
	"github.com/nathoo/simcore/types"
)

// Parse error kinds.
const (
	NoEntitiesFound    = "no_entities_found"
	AmbiguousReference = "ambiguous_reference"
)

var (
	ErrNoEntitiesFound    = errors.New("no entities found")
	ErrAmbiguousReference = errors.New("ambiguous reference")
)

// ParseError reports why a narrative could not be turned into a state.
// Both kinds are recoverable by rephrasing the input.
type ParseError struct {
	Kind     string
	Word     string // offending pronoun for AmbiguousReference
	Sentence int    // zero-based
	Err      error
}

func (e *ParseError) Error() string {
	if e.Kind == AmbiguousReference {
		return fmt.Sprintf("parse: cannot tell who %q refers to in sentence %d", e.Word, e.Sentence+1)
	}
	return "parse: " + e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// Options configures Parse.
type Options struct {
	Hints  resolve.HintSource // optional
	Limits state.Limits
}

type word struct {
	raw   string
	lower string
}

type parser struct {
	opts      Options
	s         *types.State
	tr        resolve.Tracker
	subjects  []string
	first     string // first subject ever seen
	lastPlace string
	temporal  string // time word seen before any subject
	sentence  int
}

// Parse converts text into a validated state. It returns a *ParseError
// wrapping ErrNoEntitiesFound or ErrAmbiguousReference, or a
// *state.ValidationError if the result is out of bounds.
func Parse(text string, opts Options) (*types.State, error) {
	p := &parser{opts: opts, s: state.New()}

	for i, sent := range sentences(text) {
		p.sentence = i
		if err := p.clause(sent); err != nil {
			return nil, err
		}
	}

	if len(p.s.Entities) == 0 {
		return nil, &ParseError{Kind: NoEntitiesFound, Err: ErrNoEntitiesFound}
	}

	if p.temporal != "" {
		target := p.first
		if target == "" {
			target = state.EntityIDs(p.s)[0]
		}
		state.SetProp(p.s, target, types.Temporal, state.Text(p.temporal))
	}

	if err := state.Validate(p.s, opts.Limits); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return p.s, nil
}

// sentences splits text on terminal punctuation and tokenizes each
// sentence into words with surrounding punctuation removed.
func sentences(text string) [][]word {
	var out [][]word
	for _, chunk := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?' || r == ';' || r == '\n'
	}) {
		var ws []word
		for _, f := range strings.Fields(chunk) {
			f = strings.TrimFunc(f, func(r rune) bool {
				return !unicode.IsLetter(r) && !unicode.IsDigit(r)
			})
			f = strings.TrimSuffix(strings.TrimSuffix(f, "'s"), "’s")
			if f == "" {
				continue
			}
			ws = append(ws, word{raw: f, lower: strings.ToLower(f)})
		}
		if len(ws) > 0 {
			out = append(out, ws)
		}
	}
	return out
}

func (p *parser) clause(ws []word) error {
	sawVerb := false
	scene := false // after "it is": descriptors apply to the scene
	var pendingAdj []string

	for i := 0; i < len(ws); i++ {
		w := ws[i].lower
		prev := ""
		if i > 0 {
			prev = ws[i-1].lower
		}

		switch {
		case w == "it" && expletive(ws, i):
			scene = true
			sawVerb = true
			if weather[ws[i+1].lower] == "" {
				i++ // skip the copula
			}

		case isDeterminer(ws, i):
			// "her key": possessive, not a reference

		case resolve.IsPronoun(w):
			id, err := p.tr.Pronoun(w, p.excluded(sawVerb)...)
			if err != nil {
				return &ParseError{Kind: AmbiguousReference, Word: ws[i].raw, Sentence: p.sentence, Err: ErrAmbiguousReference}
			}
			if !sawVerb {
				p.setSubject(id, prev == "and")
			}

		case possessionVerbs[w] && len(p.subjects) > 0:
			sawVerb = true
			i = p.possession(ws, i+1) - 1

		case emotionNouns[w] != "" && (prev == "in" || prev == "with" || prev == "of"):
			adj := emotionNouns[w]
			p.each(func(id string) { state.SetProp(p.s, id, types.Emotional, state.Text(adj)) })

		case socialVerbs[w] != "" && len(p.subjects) > 0:
			sawVerb = true
			next, err := p.relate(ws, i+1, socialVerbs[w])
			if err != nil {
				return err
			}
			i = next - 1

		case w == "with" && len(p.subjects) > 0:
			next, err := p.relate(ws, i+1, "NEAR")
			if err != nil {
				return err
			}
			i = next - 1

		case movementVerbs[w] && p.placeAhead(ws, i+1):
			sawVerb = true
			i = p.move(ws, i+1) - 1

		case copulas[w]:
			sawVerb = true
			i = p.describe(ws, i+1, scene) - 1

		case emotions[w]:
			p.each(func(id string) { state.SetProp(p.s, id, types.Emotional, state.Text(w)) })

		case weather[w] != "":
			p.weather(weather[w])

		case timeWords[w]:
			p.time(w)

		case physicalAdjectives[w]:
			j := i + 1
			for j < len(ws) && physicalAdjectives[ws[j].lower] {
				j++
			}
			if j < len(ws) {
				if _, _, _, ok := p.mention(ws, j); ok {
					pendingAdj = append(pendingAdj, w)
					continue
				}
			}
			if scene && p.lastPlace != "" {
				state.SetProp(p.s, p.lastPlace, types.Physical, state.Text(w))
			} else {
				p.each(func(id string) { state.SetProp(p.s, id, types.Physical, state.Text(w)) })
			}

		default:
			id, typ, n, ok := p.mention(ws, i)
			if !ok {
				if len(p.subjects) > 0 && looksVerbal(ws[i]) {
					sawVerb = true
				}
				continue
			}
			switch {
			case typ != "":
			case spatialPrepositions[prev]:
				typ = "Location"
			default:
				typ = "Person"
			}
			id = p.entity(id, typ, ws[i:i+n], pendingAdj)
			pendingAdj = nil
			if p.s.Entities[id].Type == "Location" {
				p.lastPlace = id
			}
			if !sawVerb && !spatialPrepositions[prev] {
				p.setSubject(id, prev == "and")
			}
			i += n - 1
		}
	}
	return nil
}

// excluded returns IDs an object pronoun may not refer to.
func (p *parser) excluded(sawVerb bool) []string {
	if sawVerb {
		return p.subjects
	}
	return nil
}

func (p *parser) setSubject(id string, join bool) {
	if join {
		for _, s := range p.subjects {
			if s == id {
				return
			}
		}
		p.subjects = append(p.subjects, id)
	} else {
		p.subjects = []string{id}
	}
	if p.first == "" {
		p.first = id
	}
	if p.temporal != "" {
		state.SetProp(p.s, id, types.Temporal, state.Text(p.temporal))
		p.temporal = ""
	}
}

func (p *parser) each(fn func(id string)) {
	for _, id := range p.subjects {
		fn(id)
	}
}

// mention recognizes an entity reference at ws[i]. It returns the entity
// ID, its type (empty when unknown), and how many words it spans.
func (p *parser) mention(ws []word, i int) (id, typ string, n int, ok bool) {
	if i+1 < len(ws) {
		two := ws[i].lower + " " + ws[i+1].lower
		if h, found := resolve.Lookup(p.opts.Hints, two); found {
			return resolve.HintID(h, two), h.Type, 2, true
		}
	}
	if h, found := resolve.Lookup(p.opts.Hints, ws[i].lower); found {
		return resolve.HintID(h, ws[i].lower), h.Type, 1, true
	}
	if t, found := nounTypes[ws[i].lower]; found {
		return ws[i].lower, t, 1, true
	}
	if !properNoun(ws[i]) {
		return "", "", 0, false
	}
	j := i + 1
	for j < len(ws) && properNoun(ws[j]) {
		j++
	}
	parts := make([]string, 0, j-i)
	for _, w := range ws[i:j] {
		parts = append(parts, w.raw)
	}
	name := strings.Join(parts, " ")
	if h, found := resolve.Lookup(p.opts.Hints, name); found {
		return resolve.HintID(h, name), h.Type, j - i, true
	}
	return resolve.ID(name), "", j - i, true
}

func properNoun(w word) bool {
	r := []rune(w.raw)
	if len(r) == 0 || !unicode.IsUpper(r[0]) {
		return false
	}
	if known(w.lower) || strings.HasSuffix(w.lower, "ly") {
		return false
	}
	if _, err := strconv.ParseFloat(w.lower, 64); err == nil {
		return false
	}
	return true
}

// entity ensures an entity exists, applying hint properties and pending
// adjectives, and records the mention for pronoun resolution.
func (p *parser) entity(id, typ string, surface []word, adjs []string) string {
	name := make([]string, len(surface))
	for i, w := range surface {
		name[i] = w.lower
	}
	h, hinted := resolve.Lookup(p.opts.Hints, strings.Join(name, " "))
	if state.AddEntity(p.s, id, typ) && hinted {
		for k, v := range h.Props {
			state.SetProp(p.s, id, k, v)
		}
	}
	for _, a := range adjs {
		state.SetProp(p.s, id, types.Physical, state.Text(a))
	}
	p.tr.Mention(id, p.s.Entities[id].Type, h.Pronouns)
	return id
}

// placeAhead reports whether ws[i:] starts with a spatial preposition.
func (p *parser) placeAhead(ws []word, i int) bool {
	for i < len(ws) && intensifiers[ws[i].lower] && ws[i].lower != "a" {
		i++
	}
	return i < len(ws) && spatialPrepositions[ws[i].lower]
}

// move handles "<verb> into the dark forest". It returns the index after
// the consumed phrase.
func (p *parser) move(ws []word, i int) int {
	for i < len(ws) && !spatialPrepositions[ws[i].lower] {
		i++
	}
	i++ // preposition
	var adjs []string
	for i < len(ws) {
		w := ws[i].lower
		switch {
		case articles[w]:
			i++
			continue
		case physicalAdjectives[w]:
			adjs = append(adjs, w)
			i++
			continue
		}
		break
	}
	if i >= len(ws) {
		return i
	}

	w := ws[i].lower
	if c := weather[w]; c != "" {
		p.each(func(id string) { state.SetProp(p.s, id, types.Location, state.Text(c)) })
		return i + 1
	}
	if adj := emotionNouns[w]; adj != "" {
		p.each(func(id string) { state.SetProp(p.s, id, types.Emotional, state.Text(adj)) })
		return i + 1
	}
	if timeWords[w] {
		p.time(w)
		return i + 1
	}

	id, typ, n, ok := p.mention(ws, i)
	if !ok {
		return i
	}
	if typ == "" {
		typ = "Location"
	}
	id = p.entity(id, typ, ws[i:i+n], adjs)
	if t := p.s.Entities[id].Type; t == "Person" || t == "Animal" {
		p.link(id, "NEAR")
		return i + n
	}
	p.lastPlace = id
	for _, subj := range p.subjects {
		if subj == id {
			continue
		}
		state.SetProp(p.s, subj, types.Location, state.Text(id))
		state.AddRelationship(p.s, types.Relationship{From: subj, Type: "LOCATED_IN", To: id, Strength: state.DefaultStrength})
	}
	return i + n
}

// describe handles what follows a copula: an emotion, a physical
// condition, weather, a time, or "a/an <category>".
func (p *parser) describe(ws []word, i int, scene bool) int {
	if i < len(ws) && (ws[i].lower == "a" || ws[i].lower == "an") && i+1 < len(ws) {
		noun := ws[i+1].lower
		if !physicalAdjectives[noun] && !emotions[noun] && !intensifiers[noun] {
			p.each(func(id string) { state.SetProp(p.s, id, types.Categorical, state.Text(noun)) })
			return i + 2
		}
	}
	for i < len(ws) && intensifiers[ws[i].lower] {
		i++
	}
	if i >= len(ws) {
		return i
	}
	w := ws[i].lower
	switch {
	case emotions[w]:
		p.each(func(id string) { state.SetProp(p.s, id, types.Emotional, state.Text(w)) })
	case weather[w] != "":
		p.weather(weather[w])
	case timeWords[w]:
		p.time(w)
	case physicalAdjectives[w]:
		if scene && p.lastPlace != "" {
			state.SetProp(p.s, p.lastPlace, types.Physical, state.Text(w))
		} else {
			p.each(func(id string) { state.SetProp(p.s, id, types.Physical, state.Text(w)) })
		}
	default:
		return i
	}
	return i + 1
}

// relate links every subject to the entities following ws[i] with rel.
func (p *parser) relate(ws []word, i int, rel string) (int, error) {
	for i < len(ws) {
		w := ws[i].lower
		switch {
		case articles[w] && !(resolve.IsPronoun(w) && !isDeterminer(ws, i)), physicalAdjectives[w], w == "and":
			i++
			continue
		case resolve.IsPronoun(w):
			id, err := p.tr.Pronoun(w, p.subjects...)
			if err != nil {
				return i, &ParseError{Kind: AmbiguousReference, Word: ws[i].raw, Sentence: p.sentence, Err: ErrAmbiguousReference}
			}
			p.link(id, rel)
			i++
			continue
		}
		id, typ, n, ok := p.mention(ws, i)
		if !ok {
			return i, nil
		}
		if typ == "" {
			typ = "Person"
		}
		id = p.entity(id, typ, ws[i:i+n], nil)
		if p.s.Entities[id].Type == "Location" {
			p.lastPlace = id
		}
		p.link(id, rel)
		i += n
		if i >= len(ws) || ws[i].lower != "and" {
			return i, nil
		}
	}
	return i, nil
}

func (p *parser) link(obj, rel string) {
	for _, subj := range p.subjects {
		if subj != obj {
			state.AddRelationship(p.s, types.Relationship{From: subj, Type: rel, To: obj, Strength: state.DefaultStrength})
		}
	}
}

// possession handles "has three coins": a quantitative object entity and
// a HAS relationship from each subject.
func (p *parser) possession(ws []word, i int) int {
	qty := 1.0
	if i < len(ws) {
		if n, err := strconv.ParseFloat(ws[i].lower, 64); err == nil {
			qty = n
			i++
		} else if n, ok := numberWords[ws[i].lower]; ok {
			qty = n
			i++
		}
	}
	var adjs []string
	for i < len(ws) && (articles[ws[i].lower] || physicalAdjectives[ws[i].lower]) {
		if physicalAdjectives[ws[i].lower] {
			adjs = append(adjs, ws[i].lower)
		}
		i++
	}
	if i >= len(ws) {
		return i
	}
	noun := ws[i].lower
	typ := "Object"
	if t, ok := nounTypes[noun]; ok {
		typ = t
	}
	id := p.entity(noun, typ, ws[i:i+1], adjs)
	state.SetProp(p.s, id, types.Quantitative, state.Number(qty))
	p.link(id, "HAS")
	return i + 1
}

func (p *parser) weather(cond string) {
	if p.lastPlace != "" {
		state.SetProp(p.s, p.lastPlace, types.Physical, state.Text(cond))
		return
	}
	p.each(func(id string) { state.SetProp(p.s, id, types.Physical, state.Text(cond)) })
}

func (p *parser) time(w string) {
	if len(p.subjects) == 0 {
		p.temporal = w
		return
	}
	p.each(func(id string) { state.SetProp(p.s, id, types.Temporal, state.Text(w)) })
}

// expletive reports whether "it" at ws[i] is a dummy subject, as in
// "it is raining" or "it snows".
func expletive(ws []word, i int) bool {
	if i+1 >= len(ws) {
		return false
	}
	next := ws[i+1].lower
	if weather[next] != "" {
		return true
	}
	if next != "is" && next != "was" && next != "gets" && next != "got" {
		return false
	}
	j := i + 2
	for j < len(ws) && intensifiers[ws[j].lower] {
		j++
	}
	if j >= len(ws) {
		return false
	}
	w := ws[j].lower
	return weather[w] != "" || timeWords[w] || physicalAdjectives[w]
}

// isDeterminer reports whether a possessive pronoun at ws[i] introduces
// a noun ("her key") rather than standing alone ("follows her").
func isDeterminer(ws []word, i int) bool {
	switch ws[i].lower {
	case "his", "her", "its", "their":
	default:
		return false
	}
	if i+1 >= len(ws) {
		return false
	}
	next := ws[i+1].lower
	if _, ok := nounTypes[next]; ok {
		return true
	}
	if physicalAdjectives[next] {
		return true
	}
	r := []rune(ws[i+1].raw)
	return !known(next) && len(r) > 0 && unicode.IsLower(r[0])
}

func looksVerbal(w word) bool {
	if known(w.lower) {
		return false
	}
	return strings.HasSuffix(w.lower, "s") || strings.HasSuffix(w.lower, "ed") || strings.HasSuffix(w.lower, "ing")
}
