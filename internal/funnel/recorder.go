package funnel

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/headline-goat/funnel-goat/internal/kv"
)

const logKey = "fg:funnel_log"

// Recorder appends funnel events to a single log in the store.
type Recorder struct {
	store      *kv.Guard
	now        func() time.Time
	clickValue float64
	logger     *zap.Logger
}

type Option func(*Recorder)

func WithClock(now func() time.Time) Option {
	return func(r *Recorder) { r.now = now }
}

func WithClickValue(v float64) Option {
	return func(r *Recorder) { r.clickValue = v }
}

func WithLogger(logger *zap.Logger) Option {
	return func(r *Recorder) { r.logger = logger }
}

func NewRecorder(store *kv.Guard, opts ...Option) *Recorder {
	r := &Recorder{
		store:      store,
		now:        time.Now,
		clickValue: DefaultClickValue,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Recorder) ClickValue() float64 {
	return r.clickValue
}

// Record appends ev and reports whether it was kept. Malformed events are
// dropped with a warning; a missing timestamp is filled from the clock and a
// missing value from the stage default.
func (r *Recorder) Record(ctx context.Context, ev Event) (Event, bool) {
	if err := ev.Validate(); err != nil {
		r.logger.Warn("dropping funnel event",
			zap.String("session", ev.SessionID),
			zap.String("stage", string(ev.Stage)),
			zap.Error(err))
		return ev, false
	}

	if ev.Timestamp.IsZero() {
		ev.Timestamp = r.now()
	}
	ev.Timestamp = ev.Timestamp.UTC()
	if ev.Value == nil {
		ev.Value = Float(ev.Weight(r.clickValue))
	}

	events := r.Events(ctx)
	events = append(events, ev)
	if !r.store.SetJSON(ctx, logKey, events) {
		return ev, false
	}
	return ev, true
}

// Events returns the full log in append order.
func (r *Recorder) Events(ctx context.Context) []Event {
	var events []Event
	if !r.store.GetJSON(ctx, logKey, &events) {
		return nil
	}
	return events
}

// Prune removes every event older than before and returns how many went.
func (r *Recorder) Prune(ctx context.Context, before time.Time) int {
	events := r.Events(ctx)
	kept := events[:0]
	for _, ev := range events {
		if !ev.Timestamp.Before(before) {
			kept = append(kept, ev)
		}
	}

	removed := len(events) - len(kept)
	if removed == 0 {
		return 0
	}
	if len(kept) == 0 {
		r.store.Remove(ctx, logKey)
	} else {
		r.store.SetJSON(ctx, logKey, kept)
	}

	r.logger.Info("pruned funnel log", zap.Int("removed", removed), zap.Time("before", before))
	return removed
}

func (r *Recorder) Clear(ctx context.Context) {
	r.store.Remove(ctx, logKey)
}

// Reconstruct rebuilds session funnels from the current log.
func (r *Recorder) Reconstruct(ctx context.Context, sessionID string) []SessionFunnel {
	return Reconstruct(r.Events(ctx), sessionID, r.clickValue)
}
