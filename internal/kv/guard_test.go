package kv_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/headline-goat/funnel-goat/internal/kv"
)

// flakyStore fails every call once broken is set.
type flakyStore struct {
	*kv.MemoryStore
	broken bool
}

var errQuota = errors.New("quota exceeded")

func (f *flakyStore) Get(ctx context.Context, key string) (string, error) {
	if f.broken {
		return "", errQuota
	}
	return f.MemoryStore.Get(ctx, key)
}

func (f *flakyStore) Set(ctx context.Context, key, value string) error {
	if f.broken {
		return errQuota
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func TestGuard_PassesThrough(t *testing.T) {
	g := kv.NewGuard(kv.NewMemoryStore(), nil)
	ctx := context.Background()

	_, ok := g.Get(ctx, "k")
	assert.False(t, ok)

	g.Set(ctx, "k", "v")
	v, ok := g.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "v", v)

	g.Remove(ctx, "k")
	_, ok = g.Get(ctx, "k")
	assert.False(t, ok)
	assert.True(t, g.Available())
}

func TestGuard_DegradesToEmptyStore(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	inner := &flakyStore{MemoryStore: kv.NewMemoryStore()}
	g := kv.NewGuard(inner, zap.New(core))
	ctx := context.Background()

	g.Set(ctx, "k", "v")
	inner.broken = true

	g.Set(ctx, "other", "x")
	assert.False(t, g.Available())
	assert.Equal(t, 1, logs.FilterMessage("store unavailable, analytics disabled for this process").Len())

	// The backend recovering does not bring the data back for this process.
	inner.broken = false
	_, ok := g.Get(ctx, "k")
	assert.False(t, ok)

	g.Set(ctx, "k", "new")
	v, err := inner.MemoryStore.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)
}

func TestGuard_JSONRoundTripAndCorruption(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	g := kv.NewGuard(kv.NewMemoryStore(), zap.New(core))
	ctx := context.Background()

	require.True(t, g.SetJSON(ctx, "obj", map[string]int{"a": 1}))
	var got map[string]int
	require.True(t, g.GetJSON(ctx, "obj", &got))
	assert.Equal(t, 1, got["a"])

	// Unencodable values are reported and leave the stored value alone.
	assert.False(t, g.SetJSON(ctx, "obj", map[string]float64{"a": math.NaN()}))
	assert.Equal(t, 1, logs.FilterMessage("failed to encode value").Len())
	require.True(t, g.GetJSON(ctx, "obj", &got))
	assert.Equal(t, 1, got["a"])

	g.Set(ctx, "obj", "{not json")
	got = nil
	assert.False(t, g.GetJSON(ctx, "obj", &got))
	assert.Equal(t, 1, logs.FilterMessage("discarding undecodable value").Len())
	assert.True(t, g.Available())
}
