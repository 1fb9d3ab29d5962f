// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard
// dependencies on specific observability backends. Consumers register hooks
// at startup to receive events about import runs, cache operations, and API
// requests; libraries call the accessors to emit events. Defaults are no-ops,
// so the core library stays free of observability frameworks and any backend
// (OpenTelemetry, Prometheus, DataDog, ...) can be plugged in by main.
package observability

import (
	"context"
	"sync"
	"time"
)

// ImportHooks receives events from the checklist import pipeline.
type ImportHooks interface {
	// Download events
	OnDownloadStart(ctx context.Context, url string)
	OnDownloadComplete(ctx context.Context, url string, bytes int64, duration time.Duration, err error)

	// Parse events
	OnParseComplete(ctx context.Context, file string, rows int, duration time.Duration, err error)

	// Tree build events
	OnTreeBuilt(ctx context.Context, nodes int, synthetic bool, duration time.Duration, err error)

	// Export events (turtle files, graph loads)
	OnExportComplete(ctx context.Context, target string, duration time.Duration, err error)
}

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// APIHooks receives events from the HTTP API.
type APIHooks interface {
	OnRequest(ctx context.Context, method, path string)
	OnResponse(ctx context.Context, method, path string, statusCode int, duration time.Duration)
}

// NoopImportHooks is a no-op implementation of ImportHooks.
type NoopImportHooks struct{}

func (NoopImportHooks) OnDownloadStart(context.Context, string) {}
func (NoopImportHooks) OnDownloadComplete(context.Context, string, int64, time.Duration, error) {
}
func (NoopImportHooks) OnParseComplete(context.Context, string, int, time.Duration, error) {}
func (NoopImportHooks) OnTreeBuilt(context.Context, int, bool, time.Duration, error)       {}
func (NoopImportHooks) OnExportComplete(context.Context, string, time.Duration, error)     {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopAPIHooks is a no-op implementation of APIHooks.
type NoopAPIHooks struct{}

func (NoopAPIHooks) OnRequest(context.Context, string, string)                      {}
func (NoopAPIHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

var (
	importHooks ImportHooks = NoopImportHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	apiHooks    APIHooks    = NoopAPIHooks{}
	hooksMu     sync.RWMutex
)

// SetImportHooks registers custom import hooks.
// Call once at application startup before any import runs.
func SetImportHooks(h ImportHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		importHooks = h
	}
}

// SetCacheHooks registers custom cache hooks.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetAPIHooks registers custom API hooks.
func SetAPIHooks(h APIHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		apiHooks = h
	}
}

// Import returns the registered import hooks.
func Import() ImportHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return importHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// API returns the registered API hooks.
func API() APIHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return apiHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	importHooks = NoopImportHooks{}
	cacheHooks = NoopCacheHooks{}
	apiHooks = NoopAPIHooks{}
}
