package testutil

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/headline-goat/funnel-goat/internal/experiment"
	"github.com/headline-goat/funnel-goat/internal/kv"
	"github.com/headline-goat/funnel-goat/internal/tracker"
)

// SetupTestStore creates a SQLite store in t.TempDir() that is closed when
// the test completes.
func SetupTestStore(t *testing.T) *kv.SQLiteStore {
	t.Helper()

	s, err := kv.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}

	t.Cleanup(func() {
		s.Close()
	})

	return s
}

// Clock is a manually advanced clock.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// HelmetExperiments is a small registry resembling production.
func HelmetExperiments() []experiment.Experiment {
	return []experiment.Experiment{
		{
			ID:     "grid-layout",
			Name:   "Helmet grid layout",
			Status: experiment.StatusActive,
			Variants: []experiment.Variant{
				{ID: "grid", Weight: 1},
				{ID: "list", Weight: 1},
			},
		},
		{
			ID:     "cta-copy",
			Name:   "Affiliate button copy",
			Status: experiment.StatusActive,
			Variants: []experiment.Variant{
				{ID: "check-price", Weight: 2},
				{ID: "buy-now", Weight: 1},
			},
		},
		{
			ID:       "wizard",
			Name:     "Fit wizard",
			Status:   experiment.StatusDraft,
			Variants: []experiment.Variant{{ID: "off", Weight: 1}, {ID: "on", Weight: 1}},
		},
	}
}

// NewTracker builds a tracker over opts.Store (an in-memory store when nil)
// with the helmet registry, a seeded random source and clock.
func NewTracker(t *testing.T, clock *Clock, opts tracker.Options) *tracker.Tracker {
	t.Helper()

	if opts.Store == nil {
		opts.Store = kv.NewMemoryStore()
	}
	if opts.Registry == nil {
		reg, err := experiment.NewRegistry(HelmetExperiments())
		if err != nil {
			t.Fatalf("failed to build registry: %v", err)
		}
		opts.Registry = reg
	}
	if opts.Random == nil {
		opts.Random = experiment.NewSeededSource(1)
	}
	if opts.Clock == nil && clock != nil {
		opts.Clock = clock.Now
	}

	tr, err := tracker.New(opts)
	if err != nil {
		t.Fatalf("failed to build tracker: %v", err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr
}
