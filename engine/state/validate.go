package state

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nathoo/simcore/types"
)

// Validation error codes.
const (
	DanglingRelationship = "dangling_relationship"
	ComplexityExceeded   = "complexity_exceeded"
)

var (
	ErrDanglingRelationship = errors.New("relationship endpoint does not exist")
	ErrComplexityExceeded   = errors.New("state exceeds complexity bounds")
)

// Limits bounds the size of a valid state. Zero fields are unlimited.
type Limits struct {
	MaxEntities            int
	MaxPropertiesPerEntity int
}

// LimitsFrom extracts validation limits from a run config.
func LimitsFrom(cfg types.Config) Limits {
	return Limits{
		MaxEntities:            cfg.MaxEntities,
		MaxPropertiesPerEntity: cfg.MaxPropertiesPerEntity,
	}
}

// Issue is one validation finding.
type Issue struct {
	Code    string
	Element string // entity ID or "from-TYPE->to"
	Message string
}

// ValidationError collects every issue found in a state.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "invalid state: " + e.Issues[0].Message
	}
	msgs := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		msgs[i] = "  - " + is.Message
	}
	return fmt.Sprintf("invalid state: %d issues:\n%s", len(e.Issues), strings.Join(msgs, "\n"))
}

// Is matches the sentinel for any contained code.
func (e *ValidationError) Is(target error) bool {
	for _, is := range e.Issues {
		switch {
		case target == ErrDanglingRelationship && is.Code == DanglingRelationship:
			return true
		case target == ErrComplexityExceeded && is.Code == ComplexityExceeded:
			return true
		}
	}
	return false
}

// Codes returns the distinct issue codes in first-seen order.
func (e *ValidationError) Codes() []string {
	var codes []string
	seen := map[string]bool{}
	for _, is := range e.Issues {
		if !seen[is.Code] {
			seen[is.Code] = true
			codes = append(codes, is.Code)
		}
	}
	return codes
}

// Validate checks that every relationship endpoint exists and that the
// state is within lim. It sets s.Valid and returns a *ValidationError
// listing all issues, or nil.
func Validate(s *types.State, lim Limits) error {
	var issues []Issue

	for _, r := range s.Relationships {
		for _, end := range []string{r.From, r.To} {
			if _, ok := s.Entities[end]; ok {
				continue
			}
			issues = append(issues, Issue{
				Code:    DanglingRelationship,
				Element: fmt.Sprintf("%s-%s->%s", r.From, r.Type, r.To),
				Message: fmt.Sprintf("relationship %s-%s->%s references missing entity %q", r.From, r.Type, r.To, end),
			})
		}
	}

	if lim.MaxEntities > 0 && len(s.Entities) > lim.MaxEntities {
		issues = append(issues, Issue{
			Code:    ComplexityExceeded,
			Message: fmt.Sprintf("%d entities exceeds limit of %d", len(s.Entities), lim.MaxEntities),
		})
	}

	if lim.MaxPropertiesPerEntity > 0 {
		for _, id := range EntityIDs(s) {
			n := len(s.Entities[id].Props)
			if n > lim.MaxPropertiesPerEntity {
				issues = append(issues, Issue{
					Code:    ComplexityExceeded,
					Element: id,
					Message: fmt.Sprintf("entity %q has %d properties, limit is %d", id, n, lim.MaxPropertiesPerEntity),
				})
			}
		}
	}

	s.Valid = len(issues) == 0
	if len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}
	return nil
}
