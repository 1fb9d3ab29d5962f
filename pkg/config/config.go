// Package config loads runtime settings from an optional TOML file with
// environment overrides. Resolution order per setting: FLORAKB_* environment
// variable, then the TOML file, then the built-in default.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/florakb/florakb/pkg/errors"
	"github.com/florakb/florakb/pkg/fetch"
)

// Config is the full runtime configuration.
type Config struct {
	Data     DataConfig     `toml:"data"`
	Database DatabaseConfig `toml:"database"`
	Neo4j    Neo4jConfig    `toml:"neo4j"`
	API      APIConfig      `toml:"api"`
	Cache    CacheConfig    `toml:"cache"`
}

// DataConfig controls where the checklist files live.
type DataConfig struct {
	Dir         string `toml:"dir"`          // download/extract/export directory
	DownloadURL string `toml:"download_url"` // checklist zip URL
}

// DatabaseConfig controls the DuckDB store.
type DatabaseConfig struct {
	Path string `toml:"path"` // database file, empty for in-memory
}

// Neo4jConfig controls the graph loader target.
type Neo4jConfig struct {
	URI      string `toml:"uri"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
}

// APIConfig controls the HTTP server.
type APIConfig struct {
	Addr     string `toml:"addr"`
	User     string `toml:"user"`     // basic auth, empty disables auth
	Password string `toml:"password"`
}

// CacheConfig controls API response caching.
type CacheConfig struct {
	Backend  string   `toml:"backend"` // "file", "redis" or "none"
	Dir      string   `toml:"dir"`     // file backend directory
	RedisURL string   `toml:"redis_url"`
	TTL      Duration `toml:"ttl"`
}

// Duration wraps time.Duration so TOML can decode "1h30m" strings.
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// Default returns the built-in configuration, rooted under the user's home
// directory.
func Default() Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	base := filepath.Join(home, ".florakb")
	return Config{
		Data: DataConfig{
			Dir:         filepath.Join(base, "data"),
			DownloadURL: fetch.DefaultURL,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(base, "florakb.db"),
		},
		Neo4j: Neo4jConfig{
			URI:      "bolt://localhost:7687",
			User:     "neo4j",
			Database: "neo4j",
		},
		API: APIConfig{
			Addr: ":8000",
		},
		Cache: CacheConfig{
			Backend: "file",
			Dir:     filepath.Join(base, "cache"),
			TTL:     Duration{time.Hour},
		},
	}
}

// DefaultPath is the conventional config file location. Missing files are
// fine: Load falls back to defaults plus environment.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".florakb", "config.toml")
}

// Load reads the config file at path (if it exists) on top of the defaults,
// then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return cfg, errors.Wrap(errors.ErrCodeInvalidFormat, err, "parse config %s", path)
			}
		} else if !os.IsNotExist(err) {
			return cfg, errors.Wrap(errors.ErrCodeStorage, err, "read config %s", path)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	envStr("FLORAKB_DATA_DIR", &cfg.Data.Dir)
	envStr("FLORAKB_DOWNLOAD_URL", &cfg.Data.DownloadURL)
	envStr("FLORAKB_DB_PATH", &cfg.Database.Path)
	envStr("FLORAKB_NEO4J_URI", &cfg.Neo4j.URI)
	envStr("FLORAKB_NEO4J_USER", &cfg.Neo4j.User)
	envStr("FLORAKB_NEO4J_PASSWORD", &cfg.Neo4j.Password)
	envStr("FLORAKB_NEO4J_DATABASE", &cfg.Neo4j.Database)
	envStr("FLORAKB_API_ADDR", &cfg.API.Addr)
	envStr("FLORAKB_API_USER", &cfg.API.User)
	envStr("FLORAKB_API_PASSWORD", &cfg.API.Password)
	envStr("FLORAKB_CACHE_BACKEND", &cfg.Cache.Backend)
	envStr("FLORAKB_CACHE_DIR", &cfg.Cache.Dir)
	envStr("FLORAKB_REDIS_URL", &cfg.Cache.RedisURL)
	envDuration("FLORAKB_CACHE_TTL", &cfg.Cache.TTL)
}

func envStr(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envDuration(key string, dst *Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		} else if secs, err := strconv.Atoi(v); err == nil {
			dst.Duration = time.Duration(secs) * time.Second
		}
	}
}
