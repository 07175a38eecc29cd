package kv

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"

	"go.uber.org/zap"
)

// Guard wraps a Store so analytics failures never reach the caller. The first
// backend error marks the store unavailable; from then on reads behave as an
// empty store and writes are dropped until the process restarts.
type Guard struct {
	inner       Store
	logger      *zap.Logger
	unavailable atomic.Bool
}

func NewGuard(inner Store, logger *zap.Logger) *Guard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Guard{inner: inner, logger: logger}
}

// Available reports whether the backend is still being used.
func (g *Guard) Available() bool {
	return !g.unavailable.Load()
}

// Get returns the stored value and whether one was found.
func (g *Guard) Get(ctx context.Context, key string) (string, bool) {
	if g.unavailable.Load() {
		return "", false
	}
	v, err := g.inner.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", false
	}
	if err != nil {
		g.degrade("get", key, err)
		return "", false
	}
	return v, true
}

func (g *Guard) Set(ctx context.Context, key, value string) {
	if g.unavailable.Load() {
		return
	}
	if err := g.inner.Set(ctx, key, value); err != nil {
		g.degrade("set", key, err)
	}
}

func (g *Guard) Remove(ctx context.Context, key string) {
	if g.unavailable.Load() {
		return
	}
	if err := g.inner.Remove(ctx, key); err != nil {
		g.degrade("remove", key, err)
	}
}

// GetJSON decodes the value at key into v. An undecodable value is logged and
// treated as absent.
func (g *Guard) GetJSON(ctx context.Context, key string, v any) bool {
	raw, ok := g.Get(ctx, key)
	if !ok || raw == "" {
		return false
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		g.logger.Warn("discarding undecodable value", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// SetJSON encodes v and stores it. It reports false only when v cannot be
// encoded; writes dropped by an unavailable store still count as done.
func (g *Guard) SetJSON(ctx context.Context, key string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		g.logger.Warn("failed to encode value", zap.String("key", key), zap.Error(err))
		return false
	}
	g.Set(ctx, key, string(data))
	return true
}

func (g *Guard) Close() error {
	return g.inner.Close()
}

func (g *Guard) degrade(op, key string, err error) {
	if g.unavailable.CompareAndSwap(false, true) {
		g.logger.Warn("store unavailable, analytics disabled for this process",
			zap.String("op", op),
			zap.String("key", key),
			zap.Error(err))
	}
}
