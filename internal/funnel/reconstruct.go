package funnel

import (
	"sort"
	"strings"
	"time"
)

// PathSeparator joins stage names when a conversion path is used as a key.
const PathSeparator = " > "

// SessionFunnel is derived from the log on every request; it is never stored.
type SessionFunnel struct {
	SessionID string `json:"session_id"`
	// Stages maps each observed stage to its earliest timestamp.
	Stages map[Stage]time.Time `json:"stages"`
	// ConversionPath lists distinct stages by first occurrence.
	ConversionPath []Stage   `json:"conversion_path"`
	TotalValue     float64   `json:"total_value"`
	EventCount     int       `json:"event_count"`
	StartedAt      time.Time `json:"started_at"`
	LastSeenAt     time.Time `json:"last_seen_at"`
}

func (f SessionFunnel) Reached(s Stage) bool {
	_, ok := f.Stages[s]
	return ok
}

// PathKey is the conversion path joined into a single string.
func (f SessionFunnel) PathKey() string {
	names := make([]string, len(f.ConversionPath))
	for i, s := range f.ConversionPath {
		names[i] = string(s)
	}
	return strings.Join(names, PathSeparator)
}

// Reconstruct groups events by session and derives each session's funnel.
// An empty sessionID selects every session. Sessions come back ordered by
// their first event, ties broken by id.
func Reconstruct(events []Event, sessionID string, clickValue float64) []SessionFunnel {
	grouped := make(map[string][]Event)
	var order []string
	for _, ev := range events {
		if ev.SessionID == "" || (sessionID != "" && ev.SessionID != sessionID) {
			continue
		}
		if _, seen := grouped[ev.SessionID]; !seen {
			order = append(order, ev.SessionID)
		}
		grouped[ev.SessionID] = append(grouped[ev.SessionID], ev)
	}

	funnels := make([]SessionFunnel, 0, len(order))
	for _, id := range order {
		funnels = append(funnels, build(id, grouped[id], clickValue))
	}

	sort.SliceStable(funnels, func(i, j int) bool {
		if !funnels[i].StartedAt.Equal(funnels[j].StartedAt) {
			return funnels[i].StartedAt.Before(funnels[j].StartedAt)
		}
		return funnels[i].SessionID < funnels[j].SessionID
	})
	return funnels
}

func build(sessionID string, events []Event, clickValue float64) SessionFunnel {
	// The log is append-ordered, not time-ordered.
	sorted := make([]Event, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	f := SessionFunnel{
		SessionID:      sessionID,
		Stages:         make(map[Stage]time.Time),
		ConversionPath: []Stage{},
		EventCount:     len(sorted),
	}
	for _, ev := range sorted {
		if _, seen := f.Stages[ev.Stage]; !seen {
			f.Stages[ev.Stage] = ev.Timestamp
			f.ConversionPath = append(f.ConversionPath, ev.Stage)
		}
		f.TotalValue += ev.Weight(clickValue)
	}
	if len(sorted) > 0 {
		f.StartedAt = sorted[0].Timestamp
		f.LastSeenAt = sorted[len(sorted)-1].Timestamp
	}
	return f
}
