// Package cli implements the florakb command-line interface.
//
// This package provides commands for importing the World Checklist of
// Vascular Plants into the local store, serving it over HTTP, exporting it
// as RDF Turtle, loading it into Neo4j, and rendering taxonomy subtrees.
// The CLI is built using cobra and supports verbose logging via the
// charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - import: Download and import the checklist (names, distributions, tree)
//   - serve: Run the HTTP API
//   - turtle: Export the checklist as RDF Turtle files
//   - neo4j: Load the checklist graph into Neo4j
//   - tree: Render a taxonomy subtree as DOT/SVG/PNG
//   - cache: Manage the response cache
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context to allow structured progress tracking.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with
// elapsed duration. Safe for sequential use by a single goroutine.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time since progress was created.
// Example output: "Imported 1423634 names (31.2s)"
func (p *progress) done(msg string, args ...any) {
	p.logger.Infof(msg+" (%s)", append(args, time.Since(p.start).Round(time.Millisecond))...)
}

// ctxKey is the type for context keys used in this package.
type ctxKey int

const loggerKey ctxKey = 0

// withLogger returns a new context with the given logger attached.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext retrieves the logger from ctx.
// If no logger is attached, it returns log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
