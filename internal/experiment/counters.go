package experiment

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/headline-goat/funnel-goat/internal/kv"
	"github.com/headline-goat/funnel-goat/internal/stats"
)

const countersKey = "fg:counters"

// VariantCounters are the raw, increment-only tallies for one variant.
type VariantCounters struct {
	Impressions  int64           `json:"impressions"`
	Clicks       int64           `json:"clicks"`
	Conversions  int64           `json:"conversions"`
	RevenueTotal decimal.Decimal `json:"revenue_total"`
}

// VariantResult is VariantCounters plus rates derived on read.
type VariantResult struct {
	Impressions    int64           `json:"impressions"`
	Clicks         int64           `json:"clicks"`
	ClickRate      float64         `json:"click_rate"`
	Conversions    int64           `json:"conversions"`
	ConversionRate float64         `json:"conversion_rate"`
	RevenueTotal   decimal.Decimal `json:"revenue_total"`
	// Anomaly marks a numerator recorded without its denominator, e.g. clicks
	// with no impressions. The affected rate is reported as 0.
	Anomaly bool `json:"anomaly,omitempty"`
}

// experimentID -> variantID -> counters
type counterTable map[string]map[string]VariantCounters

// Counters maintains per-variant counters in the store.
type Counters struct {
	store    *kv.Guard
	registry *Registry
	logger   *zap.Logger
}

func NewCounters(store *kv.Guard, registry *Registry, logger *zap.Logger) *Counters {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Counters{store: store, registry: registry, logger: logger}
}

func (c *Counters) RecordImpression(ctx context.Context, experimentID, variantID string) bool {
	return c.update(ctx, experimentID, variantID, func(vc *VariantCounters) {
		vc.Impressions++
	})
}

func (c *Counters) RecordClick(ctx context.Context, experimentID, variantID string) bool {
	return c.update(ctx, experimentID, variantID, func(vc *VariantCounters) {
		vc.Clicks++
	})
}

// RecordConversion counts a conversion and adds revenue to the total. Negative
// revenue is ignored; the conversion still counts.
func (c *Counters) RecordConversion(ctx context.Context, experimentID, variantID string, revenue decimal.Decimal) bool {
	if revenue.IsNegative() {
		c.logger.Warn("ignoring negative conversion revenue",
			zap.String("experiment", experimentID),
			zap.String("variant", variantID),
			zap.String("revenue", revenue.String()))
		revenue = decimal.Zero
	}
	return c.update(ctx, experimentID, variantID, func(vc *VariantCounters) {
		vc.Conversions++
		vc.RevenueTotal = vc.RevenueTotal.Add(revenue)
	})
}

func (c *Counters) update(ctx context.Context, experimentID, variantID string, fn func(*VariantCounters)) bool {
	if experimentID == "" || variantID == "" {
		c.logger.Warn("dropping counter update without experiment or variant",
			zap.String("experiment", experimentID),
			zap.String("variant", variantID))
		return false
	}

	table := c.load(ctx)
	variants, ok := table[experimentID]
	if !ok {
		variants = make(map[string]VariantCounters)
		table[experimentID] = variants
	}
	vc := variants[variantID]
	fn(&vc)
	variants[variantID] = vc

	c.store.SetJSON(ctx, countersKey, table)
	return true
}

func (c *Counters) load(ctx context.Context) counterTable {
	table := counterTable{}
	if !c.store.GetJSON(ctx, countersKey, &table) || table == nil {
		return counterTable{}
	}
	return table
}

// Raw returns the stored counters for one experiment.
func (c *Counters) Raw(ctx context.Context, experimentID string) map[string]VariantCounters {
	out := make(map[string]VariantCounters)
	for id, vc := range c.load(ctx)[experimentID] {
		out[id] = vc
	}
	return out
}

// Results recomputes derived rates from the raw counters. Every registry
// variant of the experiment is present, zero-filled when nothing was recorded.
func (c *Counters) Results(ctx context.Context, experimentID string) map[string]VariantResult {
	raw := c.Raw(ctx, experimentID)

	if c.registry != nil {
		if e, ok := c.registry.Get(experimentID); ok {
			for _, v := range e.Variants {
				if _, seen := raw[v.ID]; !seen {
					raw[v.ID] = VariantCounters{}
				}
			}
		}
	}

	results := make(map[string]VariantResult, len(raw))
	for id, vc := range raw {
		results[id] = derive(vc)
	}
	return results
}

func derive(vc VariantCounters) VariantResult {
	return VariantResult{
		Impressions:    vc.Impressions,
		Clicks:         vc.Clicks,
		ClickRate:      stats.Rate(vc.Clicks, vc.Impressions),
		Conversions:    vc.Conversions,
		ConversionRate: stats.Rate(vc.Conversions, vc.Clicks),
		RevenueTotal:   vc.RevenueTotal,
		Anomaly:        (vc.Clicks > 0 && vc.Impressions == 0) || (vc.Conversions > 0 && vc.Clicks == 0),
	}
}

// Clear removes every counter.
func (c *Counters) Clear(ctx context.Context) {
	c.store.Remove(ctx, countersKey)
}
