package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/sells-group/consensus-cli/internal/config"
	"github.com/sells-group/consensus-cli/internal/feed"
	"github.com/sells-group/consensus-cli/internal/metrics"
	"github.com/sells-group/consensus-cli/internal/resilience"
	"github.com/sells-group/consensus-cli/internal/snapshot"
	"github.com/sells-group/consensus-cli/internal/store"
)

// serviceEnv holds the initialized dependencies shared by the query
// commands and the server.
type serviceEnv struct {
	Store    store.Store
	Cache    *snapshot.Cache
	Service  *feed.Service
	Registry *prometheus.Registry
	Metrics  *metrics.Metrics
}

// Close releases the store.
func (e *serviceEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initService validates config for mode, opens and migrates the configured
// store, and wires the feed service on top of it.
func initService(ctx context.Context, mode string) (*serviceEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := migrateStore(ctx, st); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	env, err := buildServiceEnv(st, cfg)
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return env, nil
}

// buildServiceEnv layers retries, the snapshot cache, metrics and the feed
// service over st.
func buildServiceEnv(st store.Store, c *config.Config) (*serviceEnv, error) {
	reg, m := metrics.NewRegistry()

	cache := snapshot.New(store.WithRetry(st, storeRetry(c)), snapshot.Options{
		Size: c.Feed.CacheSize,
		TTL:  time.Duration(c.Feed.CacheTTLSecs) * time.Second,
	}, m)

	svc, err := feed.NewService(cache, c, m)
	if err != nil {
		return nil, err
	}

	return &serviceEnv{
		Store:    st,
		Cache:    cache,
		Service:  svc,
		Registry: reg,
		Metrics:  m,
	}, nil
}

// storeRetry is the retry policy for store calls. RetrySource names each
// read in its retry logs.
func storeRetry(c *config.Config) resilience.RetryConfig {
	retry := resilience.DefaultRetryConfig()
	if c.Store.RetryAttempts > 0 {
		retry.MaxAttempts = c.Store.RetryAttempts
	}
	return retry
}

// migrateStore applies the schema, retrying while the database is still
// coming up.
func migrateStore(ctx context.Context, st store.Store) error {
	retry := storeRetry(cfg)
	retry.OnRetry = resilience.RetryLogger("store.migrate")
	return resilience.Do(ctx, retry, st.Migrate)
}
