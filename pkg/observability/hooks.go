// Package observability provides hooks for metrics and tracing.
//
// Libraries in this module emit events through package-level hook registries;
// main registers a backend at startup (see [NewPrometheus]). Without
// registration every hook is a no-op.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    prom := observability.NewPrometheus(prometheus.DefaultRegisterer, "mosaic")
//	    observability.SetWorkerHooks(prom)
//	    observability.SetCacheHooks(prom)
//	    observability.SetHTTPHooks(prom)
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Worker().OnPostApplied(ctx, id, "feed", duration)
package observability

import (
	"context"
	"sync"
	"time"
)

// Post sources reported to [WorkerHooks].
const (
	SourceFeed   = "feed"
	SourceDirect = "direct"
	SourceStore  = "store"
)

// =============================================================================
// Worker Hooks
// =============================================================================

// WorkerHooks receives events from mosaic workers.
type WorkerHooks interface {
	OnWorkerStart(ctx context.Context, workerID uint64, tiles int)
	OnWorkerStop(ctx context.Context, workerID uint64, err error)

	// OnPostApplied records one application of a post to the mosaic.
	OnPostApplied(ctx context.Context, workerID uint64, source string, duration time.Duration)

	// OnPostDropped records a post that never reached the mosaic.
	OnPostDropped(ctx context.Context, workerID uint64, reason string)

	// OnFillProgress reports how many tiles still wait for their first post.
	OnFillProgress(ctx context.Context, workerID uint64, empty int)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	OnCacheHit(ctx context.Context, keyType string)
	OnCacheMiss(ctx context.Context, keyType string)
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from outgoing HTTP requests.
type HTTPHooks interface {
	OnResponse(ctx context.Context, method, host string, statusCode int, duration time.Duration)

	// OnError records a request that produced no response (network failure, timeout).
	OnError(ctx context.Context, method, host string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopWorkerHooks is a no-op implementation of WorkerHooks.
type NoopWorkerHooks struct{}

func (NoopWorkerHooks) OnWorkerStart(context.Context, uint64, int)                   {}
func (NoopWorkerHooks) OnWorkerStop(context.Context, uint64, error)                  {}
func (NoopWorkerHooks) OnPostApplied(context.Context, uint64, string, time.Duration) {}
func (NoopWorkerHooks) OnPostDropped(context.Context, uint64, string)                {}
func (NoopWorkerHooks) OnFillProgress(context.Context, uint64, int)                  {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	workerHooks WorkerHooks = NoopWorkerHooks{}
	cacheHooks  CacheHooks  = NoopCacheHooks{}
	httpHooks   HTTPHooks   = NoopHTTPHooks{}
	hooksMu     sync.RWMutex
)

// SetWorkerHooks registers custom worker hooks. Nil is ignored.
func SetWorkerHooks(h WorkerHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		workerHooks = h
	}
}

// SetCacheHooks registers custom cache hooks. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks. Nil is ignored.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Worker returns the registered worker hooks.
func Worker() WorkerHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return workerHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	workerHooks = NoopWorkerHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
