package experiment

import (
	"errors"
	"fmt"
	"slices"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusActive, StatusPaused, StatusCompleted:
		return true
	}
	return false
}

type Variant struct {
	ID     string  `json:"id"`
	Weight float64 `json:"weight"` // relative allocation
}

type Experiment struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	Status   Status    `json:"status"`
	Variants []Variant `json:"variants"`
}

func (e Experiment) TotalWeight() float64 {
	total := 0.0
	for _, v := range e.Variants {
		total += v.Weight
	}
	return total
}

func (e Experiment) HasVariant(id string) bool {
	for _, v := range e.Variants {
		if v.ID == id {
			return true
		}
	}
	return false
}

func (e Experiment) clone() Experiment {
	e.Variants = slices.Clone(e.Variants)
	return e
}

var ErrInvalidRegistry = errors.New("invalid experiment registry")

// Registry is the load-time catalog of experiments. It is immutable once
// built; lookups hand out copies.
type Registry struct {
	experiments []Experiment
	byID        map[string]int
}

func NewRegistry(experiments []Experiment) (*Registry, error) {
	r := &Registry{byID: make(map[string]int, len(experiments))}

	for _, e := range experiments {
		if err := validate(e); err != nil {
			return nil, err
		}
		if _, dup := r.byID[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate experiment id %q", ErrInvalidRegistry, e.ID)
		}
		r.byID[e.ID] = len(r.experiments)
		r.experiments = append(r.experiments, e.clone())
	}

	return r, nil
}

func validate(e Experiment) error {
	if e.ID == "" {
		return fmt.Errorf("%w: experiment without id", ErrInvalidRegistry)
	}
	if !e.Status.Valid() {
		return fmt.Errorf("%w: experiment %q has unknown status %q", ErrInvalidRegistry, e.ID, e.Status)
	}
	if len(e.Variants) == 0 {
		return fmt.Errorf("%w: experiment %q has no variants", ErrInvalidRegistry, e.ID)
	}

	seen := make(map[string]bool, len(e.Variants))
	for _, v := range e.Variants {
		if v.ID == "" {
			return fmt.Errorf("%w: experiment %q has a variant without id", ErrInvalidRegistry, e.ID)
		}
		if seen[v.ID] {
			return fmt.Errorf("%w: experiment %q repeats variant %q", ErrInvalidRegistry, e.ID, v.ID)
		}
		seen[v.ID] = true
		if v.Weight <= 0 {
			return fmt.Errorf("%w: variant %q of %q needs a positive weight", ErrInvalidRegistry, v.ID, e.ID)
		}
	}
	return nil
}

func (r *Registry) Get(id string) (Experiment, bool) {
	i, ok := r.byID[id]
	if !ok {
		return Experiment{}, false
	}
	return r.experiments[i].clone(), true
}

// List returns every experiment in registry order.
func (r *Registry) List() []Experiment {
	out := make([]Experiment, len(r.experiments))
	for i, e := range r.experiments {
		out[i] = e.clone()
	}
	return out
}

func (r *Registry) IDs() []string {
	ids := make([]string, len(r.experiments))
	for i, e := range r.experiments {
		ids[i] = e.ID
	}
	return ids
}

func (r *Registry) Len() int {
	return len(r.experiments)
}
