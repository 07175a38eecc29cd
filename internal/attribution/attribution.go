// Package attribution credits affiliate clicks to the network and helmet
// that produced them.
package attribution

import (
	"sort"

	"github.com/headline-goat/funnel-goat/internal/funnel"
	"github.com/headline-goat/funnel-goat/internal/stats"
)

// UnknownNetwork groups clicks that arrived without a network.
const UnknownNetwork = "unknown"

type NetworkSummary struct {
	Network    string  `json:"network"`
	Clicks     int     `json:"clicks"`
	TotalValue float64 `json:"total_value"`
	AvgValue   float64 `json:"avg_value"`
}

type HelmetClicks struct {
	HelmetID string `json:"helmet_id"`
	Clicks   int    `json:"clicks"`
}

type Summary struct {
	TotalClicks int              `json:"total_clicks"`
	Networks    []NetworkSummary `json:"networks"`
	TopHelmets  []HelmetClicks   `json:"top_helmets"`
}

// Summarize aggregates affiliate_click events across all sessions. Networks
// keep first-encountered order; helmets are ranked by clicks, ties keeping
// first-encountered order.
func Summarize(events []funnel.Event, clickValue float64) Summary {
	summary := Summary{
		Networks:   []NetworkSummary{},
		TopHelmets: []HelmetClicks{},
	}
	networkIdx := make(map[string]int)
	helmetIdx := make(map[string]int)

	for _, ev := range events {
		if ev.Stage != funnel.StageAffiliateClick {
			continue
		}
		summary.TotalClicks++

		network := ev.Network
		if network == "" {
			network = UnknownNetwork
		}
		i, ok := networkIdx[network]
		if !ok {
			i = len(summary.Networks)
			networkIdx[network] = i
			summary.Networks = append(summary.Networks, NetworkSummary{Network: network})
		}
		summary.Networks[i].Clicks++
		summary.Networks[i].TotalValue += ev.Weight(clickValue)

		if ev.HelmetID == "" {
			continue
		}
		j, ok := helmetIdx[ev.HelmetID]
		if !ok {
			j = len(summary.TopHelmets)
			helmetIdx[ev.HelmetID] = j
			summary.TopHelmets = append(summary.TopHelmets, HelmetClicks{HelmetID: ev.HelmetID})
		}
		summary.TopHelmets[j].Clicks++
	}

	for i := range summary.Networks {
		n := &summary.Networks[i]
		n.AvgValue = stats.Ratio(n.TotalValue, float64(n.Clicks))
	}

	sort.SliceStable(summary.TopHelmets, func(a, b int) bool {
		return summary.TopHelmets[a].Clicks > summary.TopHelmets[b].Clicks
	})
	return summary
}

// Top truncates the helmet ranking to n entries; n <= 0 keeps all.
func (s Summary) Top(n int) Summary {
	if n > 0 && len(s.TopHelmets) > n {
		s.TopHelmets = s.TopHelmets[:n]
	}
	return s
}
