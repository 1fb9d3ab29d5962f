package cli

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/florakb/florakb/pkg/cache"
	"github.com/florakb/florakb/pkg/config"
	"github.com/florakb/florakb/pkg/fetch"
	"github.com/florakb/florakb/pkg/pipeline"
	"github.com/florakb/florakb/pkg/store"
)

// loadConfig resolves the config file path and loads it.
func loadConfig(cfgPath *string) (config.Config, error) {
	path := *cfgPath
	if path == "" {
		path = config.DefaultPath()
	}
	return config.Load(path)
}

// openStore opens the configured DuckDB database and ensures the schema.
func openStore(cfg config.Config) (*store.Store, error) {
	return store.Open(cfg.Database.Path)
}

// newRunner wires the import pipeline from the config.
func newRunner(cfg config.Config, st *store.Store, logger *log.Logger) *pipeline.Runner {
	fetcher := fetch.New(cfg.Data.Dir, fetch.WithURL(cfg.Data.DownloadURL))
	return pipeline.NewRunner(st, fetcher, logger)
}

// newCache builds the configured cache backend. Unknown backends fall back
// to the null cache rather than failing startup.
func newCache(ctx context.Context, cfg config.Config, logger *log.Logger) cache.Cache {
	switch cfg.Cache.Backend {
	case "file":
		c, err := cache.NewFileCache(cfg.Cache.Dir)
		if err != nil {
			logger.Warn("file cache unavailable, caching disabled", "err", err)
			return cache.NewNullCache()
		}
		return c
	case "redis":
		c, err := cache.NewRedisCacheURL(ctx, cfg.Cache.RedisURL)
		if err != nil {
			logger.Warn("redis unavailable, caching disabled", "err", err)
			return cache.NewNullCache()
		}
		return c
	default:
		return cache.NewNullCache()
	}
}
