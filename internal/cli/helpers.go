package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/headline-goat/funnel-goat/internal/config"
	"github.com/headline-goat/funnel-goat/internal/emitter"
	"github.com/headline-goat/funnel-goat/internal/kv"
	"github.com/headline-goat/funnel-goat/internal/logging"
	"github.com/headline-goat/funnel-goat/internal/tracker"
)

// env bundles what a command needs once configuration has been resolved.
type env struct {
	cfg     *config.Config
	logger  *zap.Logger
	tracker *tracker.Tracker
}

func (o *globalOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.dbPath != "" {
		cfg.Store.Backend = "sqlite"
		cfg.Store.SQLite.Path = o.dbPath
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	return cfg, nil
}

// withTracker resolves config, opens the store, builds the tracker,
// executes the function, and handles cleanup.
func (o *globalOptions) withTracker(ctx context.Context, fn func(*env) error) error {
	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	registry, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("failed to load experiments: %w", err)
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}

	em, err := emitter.New(emitter.Options{
		Kind:    cfg.Emitter.Kind,
		Brokers: cfg.Emitter.Kafka.Brokers,
		Topic:   cfg.Emitter.Kafka.Topic,
	}, logger)
	if err != nil {
		store.Close()
		return err
	}

	t, err := tracker.New(tracker.Options{
		Store:      store,
		Registry:   registry,
		Emitter:    em,
		Logger:     logger,
		ClickValue: &cfg.Funnel.ClickValue,
		TopHelmets: cfg.Report.TopHelmets,
	})
	if err != nil {
		em.Close()
		store.Close()
		return err
	}
	defer t.Close()

	return fn(&env{cfg: cfg, logger: logger, tracker: t})
}

func openStore(ctx context.Context, cfg *config.Config) (kv.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return kv.NewMemoryStore(), nil
	case "sqlite", "":
		return kv.Open(cfg.Store.SQLite.Path)
	case "redis":
		return kv.OpenRedis(ctx, kv.RedisOptions{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
			Prefix:   cfg.Store.Redis.Prefix,
		})
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// tokenFilePath keeps the token file alongside the database, or in the
// working directory for non-file backends.
func tokenFilePath(cfg *config.Config) string {
	if cfg.Store.Backend == "sqlite" || cfg.Store.Backend == "" {
		return filepath.Join(filepath.Dir(cfg.Store.SQLite.Path), ".fg-token")
	}
	return ".fg-token"
}

func formatNumber(n int64) string {
	if n < 0 {
		return "-" + formatNumber(-n)
	}
	if n < 1000 {
		return strconv.FormatInt(n, 10)
	}
	if n < 1000000 {
		return fmt.Sprintf("%d,%03d", n/1000, n%1000)
	}
	return fmt.Sprintf("%d,%03d,%03d", n/1000000, (n/1000)%1000, n%1000)
}

func formatPercent(rate float64) string {
	if rate == 0 {
		return "0%"
	}
	return fmt.Sprintf("%.2f%%", rate*100)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func joinOrDash(parts []string) string {
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}
