package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ahrav/shinise-scout/internal/logger"
	"github.com/ahrav/shinise-scout/internal/ports"
)

// DefaultTTL is how long a stored document counts as fresh.
const DefaultTTL = 90 * 24 * time.Hour

// Layer is the TTL-checked, failure-tolerant view of a DocumentStore. Store
// failures are logged, counted and reported as misses; callers never see
// them. Stale documents are ignored but not deleted.
type Layer struct {
	store   ports.DocumentStore
	ttl     time.Duration
	log     logger.Logger
	metrics ports.MetricsCollector
	now     func() time.Time
}

var _ ports.Cache = (*Layer)(nil)

// NewLayer wraps store. A non-positive ttl selects DefaultTTL.
func NewLayer(store ports.DocumentStore, ttl time.Duration, log logger.Logger, metrics ports.MetricsCollector) *Layer {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Layer{store: store, ttl: ttl, log: log, metrics: metrics, now: time.Now}
}

// Lookup decodes the fresh document at collection/key into dst. It reports
// false for absent, stale or unreadable entries.
func (l *Layer) Lookup(ctx context.Context, collection, key string, dst any) bool {
	doc, err := l.store.GetDoc(ctx, collection, key)
	if err != nil {
		l.fail(collection, ports.NewCacheError(key, "get", err))
		return false
	}
	if doc == nil {
		l.count("cache_misses_total", collection)
		return false
	}
	if l.now().Sub(doc.CreatedAt) > l.ttl {
		l.count("cache_stale_total", collection)
		return false
	}
	if err := json.Unmarshal(doc.Data, dst); err != nil {
		l.fail(collection, ports.NewCacheError(key, "decode", err))
		return false
	}
	l.count("cache_hits_total", collection)
	return true
}

// Store writes v as a fresh document. Failures are logged and dropped.
func (l *Layer) Store(ctx context.Context, collection, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		l.fail(collection, ports.NewCacheError(key, "encode", err))
		return
	}
	doc := ports.Document{Data: data, CreatedAt: l.now()}
	if err := l.store.SetDoc(ctx, collection, key, doc); err != nil {
		l.fail(collection, ports.NewCacheError(key, "set", err))
		return
	}
	l.count("cache_writes_total", collection)
}

func (l *Layer) fail(collection string, err *ports.CacheError) {
	l.log.Warn("cache operation failed", map[string]any{
		"collection": collection,
		"key":        err.Key,
		"operation":  err.Operation,
		"error":      err.Err.Error(),
	})
	l.metrics.RecordCounter("cache_errors_total", 1, map[string]string{
		"collection": collection,
		"operation":  err.Operation,
	})
}

func (l *Layer) count(metric, collection string) {
	l.metrics.RecordCounter(metric, 1, map[string]string{"collection": collection})
}
