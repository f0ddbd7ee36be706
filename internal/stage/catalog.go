// Package stage defines the immutable catalog of clearance stages and the
// gating rule deciding when a submission to a stage is admissible.
package stage

import (
	"fmt"

	id "clearance/pkg/domain"
)

// Stage is one independently-owned approval step.
//
// Order is for display only; admissibility is governed solely by
// Prerequisites. ScopeRequired marks stages whose reviewer must match the
// person's organizational scope (e.g. a department head).
type Stage struct {
	ID            id.StageID   `json:"id"`
	DisplayName   string       `json:"display_name"`
	Order         int          `json:"order"`
	Prerequisites []id.StageID `json:"prerequisites,omitempty"`
	ScopeRequired bool         `json:"scope_required,omitempty"`
}

// Catalog is the ordered, immutable list of stage definitions. Built once
// at startup and shared by reference; never mutated at runtime.
type Catalog struct {
	stages []Stage
	byID   map[id.StageID]Stage
}

// NewCatalog validates the definitions: ids unique and well-formed, every
// prerequisite resolves, and the prerequisite graph is acyclic.
func NewCatalog(stages ...Stage) (*Catalog, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("catalog requires at least one stage")
	}
	byID := make(map[id.StageID]Stage, len(stages))
	for _, s := range stages {
		if _, err := id.ParseStageID(s.ID.String()); err != nil {
			return nil, fmt.Errorf("stage %q: %w", s.ID, err)
		}
		if s.DisplayName == "" {
			return nil, fmt.Errorf("stage %q: display name is required", s.ID)
		}
		if _, dup := byID[s.ID]; dup {
			return nil, fmt.Errorf("duplicate stage id %q", s.ID)
		}
		byID[s.ID] = s
	}
	for _, s := range stages {
		for _, p := range s.Prerequisites {
			if _, ok := byID[p]; !ok {
				return nil, fmt.Errorf("stage %q: unknown prerequisite %q", s.ID, p)
			}
			if p == s.ID {
				return nil, fmt.Errorf("stage %q: cannot be its own prerequisite", s.ID)
			}
		}
	}
	c := &Catalog{stages: append([]Stage(nil), stages...), byID: byID}
	if err := c.checkAcyclic(); err != nil {
		return nil, err
	}
	return c, nil
}

// Stages returns the stage definitions in catalog order.
func (c *Catalog) Stages() []Stage {
	return append([]Stage(nil), c.stages...)
}

// ByID looks up one stage definition.
func (c *Catalog) ByID(stageID id.StageID) (Stage, bool) {
	s, ok := c.byID[stageID]
	return s, ok
}

// Len returns the number of stages in the catalog.
func (c *Catalog) Len() int {
	return len(c.stages)
}

func (c *Catalog) checkAcyclic() error {
	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[id.StageID]int, len(c.stages))
	var visit func(id.StageID) error
	visit = func(sid id.StageID) error {
		switch state[sid] {
		case visiting:
			return fmt.Errorf("prerequisite cycle involving stage %q", sid)
		case done:
			return nil
		}
		state[sid] = visiting
		for _, p := range c.byID[sid].Prerequisites {
			if err := visit(p); err != nil {
				return err
			}
		}
		state[sid] = done
		return nil
	}
	for _, s := range c.stages {
		if err := visit(s.ID); err != nil {
			return err
		}
	}
	return nil
}

// Chain builds a catalog where each stage's only prerequisite is its
// immediate predecessor, the strict sequential shape.
func Chain(stages ...Stage) (*Catalog, error) {
	chained := make([]Stage, len(stages))
	for i, s := range stages {
		s.Order = i + 1
		if i == 0 {
			s.Prerequisites = nil
		} else {
			s.Prerequisites = []id.StageID{stages[i-1].ID}
		}
		chained[i] = s
	}
	return NewCatalog(chained...)
}

// FanOut builds a catalog where every later stage's sole prerequisite is
// one designated first stage, the office fan-out shape.
func FanOut(first Stage, rest ...Stage) (*Catalog, error) {
	first.Order = 1
	first.Prerequisites = nil
	stages := make([]Stage, 0, len(rest)+1)
	stages = append(stages, first)
	for i, s := range rest {
		s.Order = i + 2
		s.Prerequisites = []id.StageID{first.ID}
		stages = append(stages, s)
	}
	return NewCatalog(stages...)
}
