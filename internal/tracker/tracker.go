// Package tracker is the process-wide analytics context: it owns the store,
// the experiment engine, the funnel recorder and the report generator, and is
// built once and handed to the CLI and HTTP server.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/headline-goat/funnel-goat/internal/emitter"
	"github.com/headline-goat/funnel-goat/internal/experiment"
	"github.com/headline-goat/funnel-goat/internal/funnel"
	"github.com/headline-goat/funnel-goat/internal/kv"
	"github.com/headline-goat/funnel-goat/internal/report"
)

const sessionKey = "fg:session"

type Options struct {
	Store    kv.Store
	Registry *experiment.Registry
	Emitter  emitter.Emitter
	Logger   *zap.Logger
	Random   experiment.RandomSource
	Clock    func() time.Time

	// ClickValue is the default value of an affiliate click; nil means
	// funnel.DefaultClickValue.
	ClickValue *float64
	TopHelmets int
}

// Session identifies the current browsing session.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
}

// Tracker serializes every operation so repeated or concurrent calls within
// one process see each other's writes. Writers in other processes sharing the
// same store are last-write-wins.
type Tracker struct {
	mu       sync.Mutex
	store    *kv.Guard
	registry *experiment.Registry
	counters *experiment.Counters
	engine   *experiment.Engine
	recorder *funnel.Recorder
	reports  *report.Generator
	emitter  emitter.Emitter
	logger   *zap.Logger
	now      func() time.Time
	session  Session
}

func New(opts Options) (*Tracker, error) {
	if opts.Store == nil {
		return nil, errors.New("tracker needs a store")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Registry == nil {
		reg, err := experiment.NewRegistry(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to build empty registry: %w", err)
		}
		opts.Registry = reg
	}
	if opts.Emitter == nil {
		opts.Emitter = emitter.Nop{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	clickValue := funnel.DefaultClickValue
	if opts.ClickValue != nil {
		clickValue = *opts.ClickValue
	}

	store := kv.NewGuard(opts.Store, opts.Logger.Named("store"))
	counters := experiment.NewCounters(store, opts.Registry, opts.Logger.Named("counters"))

	engineOpts := []experiment.EngineOption{
		experiment.WithClock(opts.Clock),
		experiment.WithLogger(opts.Logger.Named("assign")),
	}
	if opts.Random != nil {
		engineOpts = append(engineOpts, experiment.WithRandomSource(opts.Random))
	}

	recorder := funnel.NewRecorder(store,
		funnel.WithClock(opts.Clock),
		funnel.WithClickValue(clickValue),
		funnel.WithLogger(opts.Logger.Named("funnel")))

	return &Tracker{
		store:    store,
		registry: opts.Registry,
		counters: counters,
		engine:   experiment.NewEngine(opts.Registry, store, counters, engineOpts...),
		recorder: recorder,
		reports: report.NewGenerator(recorder,
			report.WithClock(opts.Clock),
			report.WithTopHelmets(opts.TopHelmets),
			report.WithExperiments(opts.Registry, counters),
			report.WithLogger(opts.Logger.Named("report"))),
		emitter: opts.Emitter,
		logger:  opts.Logger,
		now:     opts.Clock,
	}, nil
}

// Init loads the persisted current session, starting a new one if none exists.
func (t *Tracker) Init(ctx context.Context) Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	var s Session
	if t.store.GetJSON(ctx, sessionKey, &s) && s.ID != "" {
		t.session = s
		return s
	}
	return t.startSession(ctx)
}

// Reset wipes all analytics state and starts a new session.
func (t *Tracker) Reset(ctx context.Context) Session {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.clearAll(ctx)
	return t.startSession(ctx)
}

func (t *Tracker) startSession(ctx context.Context) Session {
	t.session = Session{ID: uuid.New().String(), StartedAt: t.now().UTC()}
	t.store.SetJSON(ctx, sessionKey, t.session)
	return t.session
}

func (t *Tracker) Session() Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.session
}

func (t *Tracker) Registry() *experiment.Registry {
	return t.registry
}

// StoreAvailable is false once the store has failed and analytics are off.
func (t *Tracker) StoreAvailable() bool {
	return t.store.Available()
}

// Assign returns the visitor's variant, or false for unknown and inactive
// experiments.
func (t *Tracker) Assign(ctx context.Context, experimentID, visitorID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, err := t.engine.Assign(ctx, experimentID, visitorID)
	if err != nil {
		t.logger.Debug("no assignment",
			zap.String("experiment", experimentID),
			zap.String("visitor", visitorID),
			zap.Error(err))
		return "", false
	}
	if a.Fresh {
		t.emit(ctx, emitter.Hit{Category: "experiment", Action: "impression", Label: experimentID + ":" + a.VariantID, ClientID: visitorID})
	}
	return a.VariantID, true
}

// AssignedVariant reads an existing assignment without creating one.
func (t *Tracker) AssignedVariant(ctx context.Context, experimentID, visitorID string) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, ok := t.engine.Lookup(ctx, experimentID, visitorID)
	return a.VariantID, ok
}

func (t *Tracker) RecordImpression(ctx context.Context, experimentID, variantID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.counters.RecordImpression(ctx, experimentID, variantID) {
		t.emit(ctx, emitter.Hit{Category: "experiment", Action: "impression", Label: experimentID + ":" + variantID})
	}
}

func (t *Tracker) RecordClick(ctx context.Context, experimentID, variantID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.counters.RecordClick(ctx, experimentID, variantID) {
		t.emit(ctx, emitter.Hit{Category: "experiment", Action: "click", Label: experimentID + ":" + variantID})
	}
}

func (t *Tracker) RecordConversion(ctx context.Context, experimentID, variantID string, revenue decimal.Decimal) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.counters.RecordConversion(ctx, experimentID, variantID, revenue) {
		value, _ := revenue.Float64()
		t.emit(ctx, emitter.Hit{Category: "experiment", Action: "conversion", Label: experimentID + ":" + variantID, Value: value})
	}
}

func (t *Tracker) Results(ctx context.Context, experimentID string) map[string]experiment.VariantResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.counters.Results(ctx, experimentID)
}

// RecordFunnelEvent appends ev to the funnel log; malformed events are dropped.
func (t *Tracker) RecordFunnelEvent(ctx context.Context, ev funnel.Event) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	stored, ok := t.recorder.Record(ctx, ev)
	if !ok {
		return false
	}
	label := stored.HelmetID
	if stored.Stage == funnel.StageAffiliateClick && stored.Network != "" {
		label = stored.Network + ":" + stored.HelmetID
	}
	t.emit(ctx, emitter.Hit{
		Category: "funnel",
		Action:   string(stored.Stage),
		Label:    label,
		Value:    stored.Weight(t.recorder.ClickValue()),
		ClientID: stored.SessionID,
	})
	return true
}

// ClickValue is the value credited to affiliate clicks that carry none.
func (t *Tracker) ClickValue() float64 {
	return t.recorder.ClickValue()
}

// FunnelEvents returns the raw log in append order.
func (t *Tracker) FunnelEvents(ctx context.Context) []funnel.Event {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.recorder.Events(ctx)
}

// ReconstructFunnels rebuilds funnels for one session, or all when sessionID
// is empty.
func (t *Tracker) ReconstructFunnels(ctx context.Context, sessionID string) []funnel.SessionFunnel {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.recorder.Reconstruct(ctx, sessionID)
}

// GenerateReport reports on the tracker's current session. Nil means there is
// not enough data yet.
func (t *Tracker) GenerateReport(ctx context.Context) *report.ConversionReport {
	t.mu.Lock()
	session := t.session.ID
	t.mu.Unlock()

	return t.GenerateReportFor(ctx, session)
}

// GenerateReportFor reports with sessionID as the current session.
func (t *Tracker) GenerateReportFor(ctx context.Context, sessionID string) *report.ConversionReport {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.reports.Generate(ctx, sessionID)
}

// Prune drops funnel events older than before.
func (t *Tracker) Prune(ctx context.Context, before time.Time) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.recorder.Prune(ctx, before)
}

// ClearAll wipes assignments, counters, the funnel log and the session.
func (t *Tracker) ClearAll(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.clearAll(ctx)
}

func (t *Tracker) clearAll(ctx context.Context) {
	t.engine.Clear(ctx)
	t.counters.Clear(ctx)
	t.recorder.Clear(ctx)
	t.store.Remove(ctx, sessionKey)
	t.session = Session{}
	t.logger.Info("cleared analytics state")
}

func (t *Tracker) emit(ctx context.Context, hit emitter.Hit) {
	if hit.Time.IsZero() {
		hit.Time = t.now().UTC()
	}
	if err := t.emitter.Emit(ctx, hit); err != nil {
		t.logger.Debug("emitter failed", zap.String("action", hit.Action), zap.Error(err))
	}
}

func (t *Tracker) Close() error {
	return errors.Join(t.emitter.Close(), t.store.Close())
}
