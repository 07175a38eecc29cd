package experiment

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/headline-goat/funnel-goat/internal/kv"
)

var (
	ErrUnknownExperiment  = errors.New("unknown experiment")
	ErrInactiveExperiment = errors.New("experiment is not active")
	ErrMissingVisitor     = errors.New("visitor id is required")
)

// assignmentsKey holds every assignment as experiment -> visitor -> variant,
// so clearing it drops assignments of experiments no longer configured too.
const assignmentsKey = "fg:assignments"

type assignmentTable map[string]map[string]storedAssignment

// RandomSource yields uniform draws in [0, 1).
type RandomSource interface {
	Float64() float64
}

type globalSource struct{}

func (globalSource) Float64() float64 { return rand.Float64() }

// NewSeededSource returns a deterministic source for reproducible bucketing.
func NewSeededSource(seed uint64) RandomSource {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

type Assignment struct {
	ExperimentID string    `json:"experiment_id"`
	VisitorID    string    `json:"visitor_id"`
	VariantID    string    `json:"variant_id"`
	AssignedAt   time.Time `json:"assigned_at"`

	// Fresh is true only on the call that created the assignment.
	Fresh bool `json:"-"`
}

type storedAssignment struct {
	VariantID  string    `json:"variant_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// Engine buckets visitors into variants. An assignment is made once per
// (experiment, visitor) and never re-bucketed, even if weights change later.
type Engine struct {
	registry *Registry
	store    *kv.Guard
	counters *Counters
	rand     RandomSource
	now      func() time.Time
	logger   *zap.Logger
}

type EngineOption func(*Engine)

func WithRandomSource(src RandomSource) EngineOption {
	return func(e *Engine) { e.rand = src }
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

func NewEngine(registry *Registry, store *kv.Guard, counters *Counters, opts ...EngineOption) *Engine {
	e := &Engine{
		registry: registry,
		store:    store,
		counters: counters,
		rand:     globalSource{},
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Assign returns the visitor's variant, creating the assignment and counting
// one impression the first time. Unknown and inactive experiments never get
// assignments.
func (e *Engine) Assign(ctx context.Context, experimentID, visitorID string) (Assignment, error) {
	exp, ok := e.registry.Get(experimentID)
	if !ok {
		return Assignment{}, ErrUnknownExperiment
	}
	if exp.Status != StatusActive {
		return Assignment{}, ErrInactiveExperiment
	}
	if visitorID == "" {
		return Assignment{}, ErrMissingVisitor
	}

	all := e.load(ctx)
	table := all[experimentID]
	if existing, ok := table[visitorID]; ok {
		return Assignment{
			ExperimentID: experimentID,
			VisitorID:    visitorID,
			VariantID:    existing.VariantID,
			AssignedAt:   existing.AssignedAt,
		}, nil
	}

	variantID := pick(exp.Variants, e.rand.Float64()*exp.TotalWeight())
	stored := storedAssignment{VariantID: variantID, AssignedAt: e.now().UTC()}
	if table == nil {
		table = map[string]storedAssignment{}
		all[experimentID] = table
	}
	table[visitorID] = stored
	e.store.SetJSON(ctx, assignmentsKey, all)

	e.counters.RecordImpression(ctx, experimentID, variantID)

	e.logger.Debug("assigned visitor",
		zap.String("experiment", experimentID),
		zap.String("visitor", visitorID),
		zap.String("variant", variantID))

	return Assignment{
		ExperimentID: experimentID,
		VisitorID:    visitorID,
		VariantID:    variantID,
		AssignedAt:   stored.AssignedAt,
		Fresh:        true,
	}, nil
}

// Lookup returns an existing assignment without creating one.
func (e *Engine) Lookup(ctx context.Context, experimentID, visitorID string) (Assignment, bool) {
	stored, ok := e.load(ctx)[experimentID][visitorID]
	if !ok {
		return Assignment{}, false
	}
	return Assignment{
		ExperimentID: experimentID,
		VisitorID:    visitorID,
		VariantID:    stored.VariantID,
		AssignedAt:   stored.AssignedAt,
	}, true
}

// Clear drops every assignment, including those of experiments that are no
// longer in the registry.
func (e *Engine) Clear(ctx context.Context) {
	e.store.Remove(ctx, assignmentsKey)
}

func (e *Engine) load(ctx context.Context) assignmentTable {
	table := assignmentTable{}
	if !e.store.GetJSON(ctx, assignmentsKey, &table) || table == nil {
		return assignmentTable{}
	}
	return table
}

// pick walks variants in registry order and returns the first whose
// cumulative weight exceeds r, so P(i) = weight_i / total.
func pick(variants []Variant, r float64) string {
	cumulative := 0.0
	for _, v := range variants {
		cumulative += v.Weight
		if r < cumulative {
			return v.ID
		}
	}
	// r can land on the total through float rounding.
	return variants[len(variants)-1].ID
}
