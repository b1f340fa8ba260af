package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/datagata/gata/pkg/approval"
	"github.com/datagata/gata/pkg/cache"
	"github.com/datagata/gata/pkg/catalog"
	"github.com/datagata/gata/pkg/config"
	"github.com/datagata/gata/pkg/flags"
	"github.com/datagata/gata/pkg/kv"
	"github.com/datagata/gata/pkg/kv/memory"
	kvredis "github.com/datagata/gata/pkg/kv/redis"
	kvsqlite "github.com/datagata/gata/pkg/kv/sqlite"
	"github.com/datagata/gata/pkg/logger"
	"github.com/datagata/gata/pkg/metrics"
	"github.com/datagata/gata/pkg/provider"
	"github.com/datagata/gata/pkg/router"
)

// app holds the components every subcommand builds from the config file.
type app struct {
	cfg   *config.Config
	log   *zap.Logger
	store kv.Store
}

// loadConfig reads path. The default path may be absent, in which case the
// built-in defaults apply.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, fmt.Errorf("load config: %w", err)
}

// newApp loads the config, builds the logger and opens the store.
// logOverride, when non-empty, replaces the configured log output.
func newApp(ctx context.Context, configPath string, explicit bool, logOverride string) (*app, error) {
	cfg, err := loadConfig(configPath, explicit)
	if err != nil {
		return nil, err
	}

	output := cfg.Log.Output
	if logOverride != "" {
		output = logOverride
	}
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, output)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := openStore(ctx, cfg.Storage, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return &app{cfg: cfg, log: log, store: store}, nil
}

func openStore(ctx context.Context, sc config.StorageConfig, log *zap.Logger) (kv.Store, error) {
	switch sc.Backend {
	case "redis":
		s, err := kvredis.New(ctx, kvredis.Options{
			Addr:      sc.Redis.Addr,
			Password:  sc.Redis.Password,
			DB:        sc.Redis.DB,
			Namespace: sc.Redis.Prefix,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		return s, nil
	case "memory":
		log.Warn("using in-memory store; cache and approvals are lost on exit")
		return memory.New(), nil
	default:
		s, err := kvsqlite.New(sc.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init store: %w", err)
		}
		log.Info("sqlite store opened", zap.String("path", sc.SQLitePath))
		return s, nil
	}
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("close store", zap.Error(err))
	}
	_ = a.log.Sync()
}

// cache returns nil when caching is disabled.
func (a *app) cache() *cache.Cache {
	if !a.cfg.Cache.Enabled {
		return nil
	}
	return cache.New(a.store, a.cfg.Cache.Retention, a.log.Named("cache"))
}

func (a *app) approvals() *approval.Store {
	return approval.New(a.store, a.log.Named("approval"))
}

func (a *app) catalog() *catalog.Catalog {
	return catalog.New(a.store, a.log.Named("catalog"))
}

// aggregator builds the outcome buffer, exporting to reg when Prometheus is
// enabled and reg is non-nil.
func (a *app) aggregator(reg prometheus.Registerer) (*metrics.Aggregator, error) {
	var obs []metrics.Observer
	if a.cfg.Metrics.Prometheus && reg != nil {
		p, err := metrics.NewPrometheusObserver(reg)
		if err != nil {
			return nil, fmt.Errorf("init prometheus: %w", err)
		}
		obs = append(obs, p)
	}
	return metrics.NewAggregator(a.cfg.Metrics.Capacity, obs...), nil
}

func (a *app) resolver() flags.Resolver {
	fc := a.cfg.Flags
	if fc.Source == "http" {
		return flags.NewHTTP(fc.URL, fc.Token, fc.Timeout)
	}
	return flags.NewStatic(fc.Default, fc.Rules)
}

// adapters registers a provider only when it has what it needs to be called.
func (a *app) adapters() map[provider.Kind]provider.Adapter {
	pc := a.cfg.Providers
	out := make(map[provider.Kind]provider.Adapter)
	if pc.MotherDuck.URL != "" {
		out[provider.MotherDuck] = provider.NewMotherDuck(pc.MotherDuck.URL, pc.MotherDuck.Token, nil)
	}
	if pc.WebLLM.URL != "" {
		out[provider.WebLLM] = provider.NewWebLLM(pc.WebLLM.URL, nil)
	}
	if pc.OpenAI.APIKey != "" {
		out[provider.OpenAI] = provider.NewOpenAI(pc.OpenAI.APIKey, pc.OpenAI.URL)
	}
	for k := range out {
		a.log.Info("provider registered", zap.String("provider", string(k)))
	}
	return out
}

func (a *app) pricing() (map[provider.Kind]float64, error) {
	out := make(map[provider.Kind]float64, len(a.cfg.Pricing))
	for name, price := range a.cfg.Pricing {
		k, ok := provider.ParseKind(name)
		if !ok {
			return nil, fmt.Errorf("pricing: unknown provider %q", name)
		}
		out[k] = price
	}
	return out, nil
}

func (a *app) router(rec router.Recorder) (*router.Router, error) {
	prices, err := a.pricing()
	if err != nil {
		return nil, err
	}
	return router.New(router.Options{
		Resolver: a.resolver(),
		Fallback: a.cfg.Router.Fallback,
		Adapters: a.adapters(),
		Recorder: rec,
		Tracker:  flags.NewLogTracker(a.log.Named("events")),
		Timeout:  a.cfg.Router.Timeout,
		Pricing:  prices,
		Logger:   a.log.Named("router"),
	}), nil
}
