package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.NotEmpty(t, cfg.Data.Dir)
	assert.NotEmpty(t, cfg.Data.DownloadURL)
	assert.Equal(t, ":8000", cfg.API.Addr)
	assert.Equal(t, "file", cfg.Cache.Backend)
	assert.Equal(t, time.Hour, cfg.Cache.TTL.Duration)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default().API.Addr, cfg.API.Addr)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[database]
path = "/tmp/test.db"

[api]
addr = ":9999"
user = "admin"

[cache]
backend = "redis"
redis_url = "redis://localhost:6379/0"
ttl = "30m"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/test.db", cfg.Database.Path)
	assert.Equal(t, ":9999", cfg.API.Addr)
	assert.Equal(t, "admin", cfg.API.User)
	assert.Equal(t, "redis", cfg.Cache.Backend)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL.Duration)
	// Sections the file omits keep their defaults.
	assert.Equal(t, Default().Neo4j.URI, cfg.Neo4j.URI)
}

func TestLoadBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not [valid toml"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FLORAKB_DB_PATH", "/env/db.duckdb")
	t.Setenv("FLORAKB_API_ADDR", ":7070")
	t.Setenv("FLORAKB_CACHE_TTL", "90s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "/env/db.duckdb", cfg.Database.Path)
	assert.Equal(t, ":7070", cfg.API.Addr)
	assert.Equal(t, 90*time.Second, cfg.Cache.TTL.Duration)
}
