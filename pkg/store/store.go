// Package store provides DuckDB-backed persistence for the checklist.
//
// Three tables are managed: taxon (one row per WCVP name), distribution (one
// row per taxon/TDWG-unit occurrence) and taxon_tree (the nested-set encoding
// produced by pkg/tree, keyed by preorder position with a self-referencing
// nullable parent position). Imports always rebuild from scratch: the tables
// are dropped and recreated, then bulk-loaded from one checklist snapshot.
//
// DuckDB is embedded and analytical, which fits the workload: a rare
// million-row bulk import followed by read-mostly filtered scans.
package store

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/marcboeker/go-duckdb" // register driver

	"github.com/florakb/florakb/pkg/errors"
)

// Store wraps the embedded DuckDB database.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dsn. An empty dsn or ":memory:"
// opens an in-memory database.
func Open(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "open duckdb at %q", dsn)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(errors.ErrCodeStorage, err, "ping duckdb at %q", dsn)
	}

	// DuckDB is embedded; serialize writes through one connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	return &Store{db: db}, nil
}

// DB exposes the underlying handle for ad-hoc queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close releases database resources.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
