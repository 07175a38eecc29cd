package funnel_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/headline-goat/funnel-goat/internal/funnel"
	"github.com/headline-goat/funnel-goat/internal/kv"
)

var t0 = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

func at(sec int) time.Time { return t0.Add(time.Duration(sec) * time.Second) }

func ev(session string, stage funnel.Stage, sec int) funnel.Event {
	return funnel.Event{SessionID: session, Stage: stage, Timestamp: at(sec)}
}

func TestReconstruct_FirstOccurrenceWins(t *testing.T) {
	events := []funnel.Event{
		ev("s1", funnel.StageHelmetView, 10),
		ev("s1", funnel.StageHelmetView, 20),
	}

	got := funnel.Reconstruct(events, "", funnel.DefaultClickValue)
	require.Len(t, got, 1)
	assert.Equal(t, at(10), got[0].Stages[funnel.StageHelmetView])
	assert.Equal(t, 2, got[0].EventCount)
}

func TestReconstruct_FirstOccurrenceWithUnorderedLog(t *testing.T) {
	events := []funnel.Event{
		ev("s1", funnel.StageHelmetView, 20),
		ev("s1", funnel.StageHomepageVisit, 5),
		ev("s1", funnel.StageHelmetView, 10),
	}

	got := funnel.Reconstruct(events, "s1", 0)
	require.Len(t, got, 1)
	assert.Equal(t, at(10), got[0].Stages[funnel.StageHelmetView])
	assert.Equal(t, []funnel.Stage{funnel.StageHomepageVisit, funnel.StageHelmetView}, got[0].ConversionPath)
	assert.Equal(t, at(5), got[0].StartedAt)
	assert.Equal(t, at(20), got[0].LastSeenAt)
}

func TestReconstruct_DistinctConversionPath(t *testing.T) {
	events := []funnel.Event{
		ev("s1", funnel.StageHomepageVisit, 1),
		ev("s1", funnel.StageHelmetSearch, 2),
		ev("s1", funnel.StageHomepageVisit, 3),
		ev("s1", funnel.StageHelmetView, 4),
		ev("s1", funnel.StageHelmetSearch, 5),
	}

	got := funnel.Reconstruct(events, "", 0)
	want := []funnel.Stage{funnel.StageHomepageVisit, funnel.StageHelmetSearch, funnel.StageHelmetView}
	if diff := cmp.Diff(want, got[0].ConversionPath); diff != "" {
		t.Errorf("conversion path mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "homepage_visit > helmet_search > helmet_view", got[0].PathKey())
}

func TestReconstruct_GroupsAndOrdersSessions(t *testing.T) {
	events := []funnel.Event{
		ev("late", funnel.StageHomepageVisit, 50),
		ev("early", funnel.StageHomepageVisit, 1),
		ev("late", funnel.StageAffiliateClick, 60),
		{Stage: funnel.StageHomepageVisit, Timestamp: at(0)}, // no session
	}

	got := funnel.Reconstruct(events, "", 10)
	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].SessionID)
	assert.Equal(t, "late", got[1].SessionID)
	assert.True(t, got[1].Reached(funnel.StageAffiliateClick))
	assert.False(t, got[0].Reached(funnel.StageAffiliateClick))

	only := funnel.Reconstruct(events, "late", 10)
	require.Len(t, only, 1)
	assert.Equal(t, "late", only[0].SessionID)

	assert.Empty(t, funnel.Reconstruct(events, "missing", 10))
}

func TestReconstruct_TotalValueDefaults(t *testing.T) {
	events := []funnel.Event{
		ev("s1", funnel.StageHomepageVisit, 1),
		{SessionID: "s1", Stage: funnel.StageHelmetView, Value: funnel.Float(2.5), Timestamp: at(2)},
		ev("s1", funnel.StageAffiliateClick, 3),
		{SessionID: "s1", Stage: funnel.StageAffiliateClick, Value: funnel.Float(4), Timestamp: at(4)},
	}

	got := funnel.Reconstruct(events, "", 10)
	assert.Equal(t, 16.5, got[0].TotalValue)
}

func newRecorder(t *testing.T, opts ...funnel.Option) (*funnel.Recorder, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.WarnLevel)
	opts = append([]funnel.Option{
		funnel.WithClock(func() time.Time { return at(100) }),
		funnel.WithLogger(zap.New(core)),
	}, opts...)
	return funnel.NewRecorder(kv.NewGuard(kv.NewMemoryStore(), nil), opts...), logs
}

func TestRecorder_AppendsAndFillsDefaults(t *testing.T) {
	r, _ := newRecorder(t, funnel.WithClickValue(7))
	ctx := context.Background()

	stored, ok := r.Record(ctx, funnel.Event{SessionID: "s1", Stage: funnel.StageAffiliateClick, Network: "amazon"})
	require.True(t, ok)
	assert.Equal(t, at(100), stored.Timestamp)
	require.NotNil(t, stored.Value)
	assert.Equal(t, 7.0, *stored.Value)

	_, ok = r.Record(ctx, ev("s1", funnel.StageHomepageVisit, 1))
	require.True(t, ok)

	events := r.Events(ctx)
	require.Len(t, events, 2)
	assert.Equal(t, funnel.StageAffiliateClick, events[0].Stage)
	assert.Equal(t, 0.0, *events[1].Value)
}

func TestRecorder_DropsMalformedEvents(t *testing.T) {
	r, logs := newRecorder(t)
	ctx := context.Background()

	_, ok := r.Record(ctx, funnel.Event{Stage: funnel.StageHelmetView})
	assert.False(t, ok)
	_, ok = r.Record(ctx, funnel.Event{SessionID: "s1"})
	assert.False(t, ok)
	_, ok = r.Record(ctx, funnel.Event{SessionID: "s1", Stage: "checkout"})
	assert.False(t, ok)

	assert.Empty(t, r.Events(ctx))
	assert.Equal(t, 3, logs.FilterMessage("dropping funnel event").Len())
}

func TestEvent_Validate(t *testing.T) {
	err := funnel.Event{Stage: funnel.StageHelmetView}.Validate()
	require.ErrorIs(t, err, funnel.ErrMalformedEvent)
	require.NoError(t, ev("s", funnel.StageExternalVisit, 0).Validate())

	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		bad := funnel.Event{SessionID: "s", Stage: funnel.StageAffiliateClick, Value: funnel.Float(v)}
		assert.ErrorIs(t, bad.Validate(), funnel.ErrMalformedEvent, "value %v", v)
	}
}

func TestRecorder_RejectsNonFiniteValues(t *testing.T) {
	r, logs := newRecorder(t)
	ctx := context.Background()

	_, ok := r.Record(ctx, ev("s1", funnel.StageHomepageVisit, 1))
	require.True(t, ok)

	_, ok = r.Record(ctx, funnel.Event{SessionID: "s1", Stage: funnel.StageAffiliateClick, Value: funnel.Float(math.NaN())})
	assert.False(t, ok)
	_, ok = r.Record(ctx, funnel.Event{SessionID: "s1", Stage: funnel.StageAffiliateClick, Value: funnel.Float(math.Inf(1))})
	assert.False(t, ok)

	// The earlier event is still there and the log still decodes.
	events := r.Events(ctx)
	require.Len(t, events, 1)
	assert.Equal(t, funnel.StageHomepageVisit, events[0].Stage)
	assert.Equal(t, 2, logs.FilterMessage("dropping funnel event").Len())
}

func TestRecorder_PruneAndClear(t *testing.T) {
	r, _ := newRecorder(t)
	ctx := context.Background()

	r.Record(ctx, ev("s1", funnel.StageHomepageVisit, 1))
	r.Record(ctx, ev("s1", funnel.StageHelmetView, 50))
	r.Record(ctx, ev("s2", funnel.StageHomepageVisit, 5))

	assert.Equal(t, 2, r.Prune(ctx, at(10)))
	events := r.Events(ctx)
	require.Len(t, events, 1)
	assert.Equal(t, funnel.StageHelmetView, events[0].Stage)

	assert.Equal(t, 0, r.Prune(ctx, at(10)))
	assert.Equal(t, 1, r.Prune(ctx, at(1000)))
	assert.Empty(t, r.Events(ctx))

	r.Record(ctx, ev("s3", funnel.StageHomepageVisit, 1))
	r.Clear(ctx)
	assert.Empty(t, r.Reconstruct(ctx, ""))
}

func TestRecorder_ReconstructIsStateless(t *testing.T) {
	r, _ := newRecorder(t)
	ctx := context.Background()

	r.Record(ctx, ev("s1", funnel.StageHomepageVisit, 1))
	first := r.Reconstruct(ctx, "")
	r.Record(ctx, ev("s1", funnel.StageAffiliateClick, 2))
	second := r.Reconstruct(ctx, "")

	assert.False(t, first[0].Reached(funnel.StageAffiliateClick))
	assert.True(t, second[0].Reached(funnel.StageAffiliateClick))
	assert.Equal(t, funnel.DefaultClickValue, second[0].TotalValue)
}
