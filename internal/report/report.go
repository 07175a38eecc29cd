// Package report composes point-in-time conversion reports from the funnel
// log and experiment counters. Nothing here writes to the store.
package report

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/headline-goat/funnel-goat/internal/attribution"
	"github.com/headline-goat/funnel-goat/internal/experiment"
	"github.com/headline-goat/funnel-goat/internal/funnel"
	"github.com/headline-goat/funnel-goat/internal/stats"
)

// SessionSummary describes the session the report was requested for.
type SessionSummary struct {
	SessionID       string         `json:"session_id"`
	Events          int            `json:"events"`
	ConversionPath  []funnel.Stage `json:"conversion_path"`
	HelmetsViewed   int            `json:"helmets_viewed"`
	AffiliateClicks int            `json:"affiliate_clicks"`
	TotalValue      float64        `json:"total_value"`
	StartedAt       *time.Time     `json:"started_at,omitempty"`
	LastSeenAt      *time.Time     `json:"last_seen_at,omitempty"`
}

type PerformanceMetrics struct {
	TotalSessions     int     `json:"total_sessions"`
	ConvertedSessions int     `json:"converted_sessions"`
	ConversionRate    float64 `json:"conversion_rate"`
	// AvgTimeToClick is in seconds, from first homepage_visit to first
	// affiliate_click, over sessions that have both. Nil when none do.
	AvgTimeToClick *float64 `json:"avg_time_to_click"`
	// MostEffectivePath is the most frequent conversion path among converted
	// sessions. Nil when nothing converted.
	MostEffectivePath *string `json:"most_effective_path"`
}

type ConversionReport struct {
	GeneratedAt        time.Time                                      `json:"generated_at"`
	SessionData        SessionSummary                                 `json:"session_data"`
	AttributionSummary attribution.Summary                            `json:"attribution_summary"`
	FunnelAnalysis     []funnel.SessionFunnel                         `json:"funnel_analysis"`
	Performance        PerformanceMetrics                             `json:"performance_metrics"`
	Experiments        map[string]map[string]experiment.VariantResult `json:"experiments,omitempty"`
}

type Generator struct {
	recorder   *funnel.Recorder
	counters   *experiment.Counters
	registry   *experiment.Registry
	now        func() time.Time
	topHelmets int
	logger     *zap.Logger
}

type Option func(*Generator)

func WithClock(now func() time.Time) Option {
	return func(g *Generator) { g.now = now }
}

// WithTopHelmets caps the helmet ranking; 0 keeps every helmet.
func WithTopHelmets(n int) Option {
	return func(g *Generator) { g.topHelmets = n }
}

func WithLogger(logger *zap.Logger) Option {
	return func(g *Generator) { g.logger = logger }
}

// WithExperiments adds per-variant results for every registry experiment.
func WithExperiments(registry *experiment.Registry, counters *experiment.Counters) Option {
	return func(g *Generator) {
		g.registry = registry
		g.counters = counters
	}
}

func NewGenerator(recorder *funnel.Recorder, opts ...Option) *Generator {
	g := &Generator{
		recorder: recorder,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate builds a report for currentSession. It returns nil when the log
// is empty: no data is not the same as zero activity.
func (g *Generator) Generate(ctx context.Context, currentSession string) *ConversionReport {
	start := g.now()

	events := g.recorder.Events(ctx)
	if len(events) == 0 {
		return nil
	}
	clickValue := g.recorder.ClickValue()
	funnels := funnel.Reconstruct(events, "", clickValue)

	r := &ConversionReport{
		GeneratedAt:        start.UTC(),
		SessionData:        summarizeSession(currentSession, events, funnels),
		AttributionSummary: attribution.Summarize(events, clickValue).Top(g.topHelmets),
		FunnelAnalysis:     funnels,
		Performance:        Metrics(funnels),
	}

	if g.registry != nil && g.counters != nil && g.registry.Len() > 0 {
		r.Experiments = make(map[string]map[string]experiment.VariantResult, g.registry.Len())
		for _, id := range g.registry.IDs() {
			r.Experiments[id] = g.counters.Results(ctx, id)
		}
	}

	g.logger.Debug("generated conversion report",
		zap.Int("events", len(events)),
		zap.Int("sessions", len(funnels)),
		zap.Duration("took", g.now().Sub(start)))
	return r
}

func summarizeSession(sessionID string, events []funnel.Event, funnels []funnel.SessionFunnel) SessionSummary {
	s := SessionSummary{SessionID: sessionID, ConversionPath: []funnel.Stage{}}
	if sessionID == "" {
		return s
	}

	helmets := make(map[string]bool)
	for _, ev := range events {
		if ev.SessionID != sessionID {
			continue
		}
		switch ev.Stage {
		case funnel.StageHelmetView:
			if ev.HelmetID != "" {
				helmets[ev.HelmetID] = true
			}
		case funnel.StageAffiliateClick:
			s.AffiliateClicks++
		}
	}
	s.HelmetsViewed = len(helmets)

	for _, f := range funnels {
		if f.SessionID != sessionID {
			continue
		}
		s.Events = f.EventCount
		s.ConversionPath = f.ConversionPath
		s.TotalValue = f.TotalValue
		started, last := f.StartedAt, f.LastSeenAt
		s.StartedAt, s.LastSeenAt = &started, &last
		break
	}
	return s
}

// Metrics derives the aggregate performance figures from session funnels.
func Metrics(funnels []funnel.SessionFunnel) PerformanceMetrics {
	m := PerformanceMetrics{TotalSessions: len(funnels)}

	var clickTimes []float64
	type pathStat struct {
		key   string
		count int
		value float64
	}
	var paths []*pathStat
	byKey := make(map[string]*pathStat)

	for _, f := range funnels {
		clickAt, converted := f.Stages[funnel.StageAffiliateClick]
		if !converted {
			continue
		}
		m.ConvertedSessions++

		if homeAt, ok := f.Stages[funnel.StageHomepageVisit]; ok {
			clickTimes = append(clickTimes, clickAt.Sub(homeAt).Seconds())
		}

		key := f.PathKey()
		ps, ok := byKey[key]
		if !ok {
			ps = &pathStat{key: key}
			byKey[key] = ps
			paths = append(paths, ps)
		}
		ps.count++
		ps.value += f.TotalValue
	}

	m.ConversionRate = stats.Rate(int64(m.ConvertedSessions), int64(m.TotalSessions))

	if mean, ok := stats.Mean(clickTimes); ok {
		m.AvgTimeToClick = &mean
	}

	var best *pathStat
	for _, ps := range paths {
		if best == nil || ps.count > best.count || (ps.count == best.count && ps.value > best.value) {
			best = ps
		}
	}
	if best != nil {
		key := best.key
		m.MostEffectivePath = &key
	}
	return m
}
