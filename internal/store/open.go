package store

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/consensus-cli/internal/config"
)

// Open connects to the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	log := zap.L().With(zap.String("driver", cfg.Driver))
	switch cfg.Driver {
	case "postgres":
		st, err := NewPostgres(ctx, cfg.DatabaseURL, &PoolConfig{MaxConns: cfg.MaxConns, MinConns: cfg.MinConns})
		if err != nil {
			return nil, err
		}
		log.Debug("store: connected")
		return st, nil
	case "sqlite":
		st, err := NewSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		log.Debug("store: opened", zap.String("path", cfg.SQLitePath))
		return st, nil
	case "fixture":
		st, err := OpenFixture(cfg.FixturePath)
		if err != nil {
			return nil, err
		}
		log.Debug("store: loaded fixture", zap.String("path", cfg.FixturePath))
		return st, nil
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
