// Package cache implements the query result cache coordinator: a
// fingerprint-keyed memoization layer in front of the external cache
// store (dbbridge.Store), with TTL caps, tag-based invalidation, a size
// policy, and running statistics.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/berkeerdo/dbbridge"
)

// Config configures a Coordinator.
type Config struct {
	// Prefix is prepended to every fingerprinted key. Default "qb:".
	Prefix string
	// DefaultTTL is used when a cache request does not specify one.
	DefaultTTL time.Duration
	// MaxTTL caps every effective TTL; requests above it are clamped
	// with a warning.
	MaxTTL time.Duration
	// WarnOnLargeResult is the row-count threshold above which a cached
	// result is stored but logged as a warning. Default 1000.
	WarnOnLargeResult int
	// MaxCacheableRows is the row-count threshold above which a result
	// is returned to the caller but never cached. Default 10000.
	MaxCacheableRows int
	// Global, when true, scopes invalidation-by-tag/pattern operations
	// across all coordinators sharing the same Store (no behavioral
	// difference here beyond documentation; coordinators never share
	// in-process tag-index state regardless).
	Global bool
	// CleanupInterval is how often the local metadata sweep runs.
	// Default 1 minute.
	CleanupInterval time.Duration
	// Logger receives TTL-clamp and large-result warnings. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.Prefix == "" {
		c.Prefix = "qb:"
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 300 * time.Second
	}
	if c.MaxTTL <= 0 {
		c.MaxTTL = 3600 * time.Second
	}
	if c.WarnOnLargeResult <= 0 {
		c.WarnOnLargeResult = 1000
	}
	if c.MaxCacheableRows <= 0 {
		c.MaxCacheableRows = 10000
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return c
}

// Stats is a point-in-time snapshot of coordinator counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Deletes     int64
	Evictions   int64
	AvgHitTime  time.Duration
	AvgMissTime time.Duration
}

// HitRate returns hits / (hits+misses), or 0 when nothing has been
// requested yet.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

type entryMeta struct {
	storedAt time.Time
	ttl      time.Duration
	tags     []string
}

// Coordinator sits between the query builders and a key-value Store,
// handling fingerprinting, TTL/size policy, tag-based invalidation and
// running statistics. It is safe for concurrent use; the Store it wraps
// is trusted to provide its own atomicity.
type Coordinator struct {
	store Store
	cfg   Config

	mu       sync.Mutex
	tagIndex map[string]map[string]struct{} // tag -> set of keys
	meta     map[string]entryMeta           // key -> bookkeeping for the cleanup sweep

	hits, misses, sets, deletes, evictions atomic.Int64

	timeMu      sync.Mutex
	hitSamples  int64
	missSamples int64
	avgHitTime  time.Duration
	avgMissTime time.Duration

	// sf optionally collapses concurrent builds for the same key into a
	// single driver call.
	sf singleflight.Group

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// Store is the subset of dbbridge.Store the coordinator depends on,
// restated here so callers can pass a *dbbridge.Store implementation
// directly without an import cycle concern.
type Store = dbbridge.Store

// New creates a Coordinator backed by store, using cfg (zero-valued
// fields take the documented defaults).
func New(store Store, cfg Config) *Coordinator {
	c := &Coordinator{
		store:    store,
		cfg:      cfg.withDefaults(),
		tagIndex: make(map[string]map[string]struct{}),
		meta:     make(map[string]entryMeta),
		stopCh:   make(chan struct{}),
	}
	c.wg.Add(1)
	go c.cleanupLoop()
	return c
}

// Fingerprint computes the cache key for a rendered query: the
// configured prefix followed by the first 16 hex characters of
// sha256(sql + canonical-json(bindings)).
func (c *Coordinator) Fingerprint(sql string, bindings []any) string {
	return Fingerprint(c.cfg.Prefix, sql, bindings)
}

// Fingerprint is the standalone form of Coordinator.Fingerprint, usable
// without a constructed Coordinator (e.g. for precomputing keys).
func Fingerprint(prefix, sql string, bindings []any) string {
	canon, err := canonicalJSON(bindings)
	if err != nil {
		// canonicalJSON only fails on unmarshalable values; fall back to
		// a best-effort representation rather than panicking mid-render.
		canon = []byte(fmt.Sprintf("%v", bindings))
	}
	sum := sha256.Sum256(append([]byte(sql), canon...))
	return prefix + hex.EncodeToString(sum[:])[:16]
}

func canonicalJSON(bindings []any) ([]byte, error) {
	return json.Marshal(bindings)
}

// SetOptions configures a single cache write.
type SetOptions struct {
	// TTL is the requested time-to-live; 0 uses Config.DefaultTTL.
	TTL time.Duration
	// Tags are attached to the entry for bulk invalidation.
	Tags []string
	// RowCount is the number of rows in the value being cached, used to
	// apply the size policy. Callers caching
	// non-row-shaped values may leave this 0.
	RowCount int
}

func (c *Coordinator) effectiveTTL(requested time.Duration) time.Duration {
	ttl := requested
	if ttl <= 0 {
		ttl = c.cfg.DefaultTTL
	}
	if ttl > c.cfg.MaxTTL {
		c.cfg.Logger.Warn("cache: requested TTL exceeds max, clamping",
			"requested", ttl, "max", c.cfg.MaxTTL)
		ttl = c.cfg.MaxTTL
	}
	return ttl
}

// Get looks up key, reporting a cache hit/miss and bumping the
// corresponding counters and running-average timers.
func (c *Coordinator) Get(ctx context.Context, key string) (value []byte, hit bool, err error) {
	start := time.Now()
	v, err := c.store.Get(ctx, key)
	if err != nil {
		// Cache backend failures are logged and swallowed on read
		//.
		c.cfg.Logger.Warn("cache: get failed", "key", key, "error", err)
		return nil, false, nil
	}
	elapsed := time.Since(start)
	if v == nil {
		c.misses.Add(1)
		c.recordMiss(elapsed)
		return nil, false, nil
	}
	c.hits.Add(1)
	c.recordHit(elapsed)
	c.bumpHits(key)
	return v, true, nil
}

// Set stores value under key subject to the TTL and size policies,
// indexing it under every tag in opts.Tags. Returns false if the value
// was not cached due to the size policy (the caller still has value;
// this merely reports whether the coordinator retained a copy).
func (c *Coordinator) Set(ctx context.Context, key string, value []byte, opts SetOptions) (cached bool, err error) {
	if opts.RowCount > c.cfg.MaxCacheableRows {
		c.cfg.Logger.Warn("cache: result exceeds max cacheable rows, skipping cache",
			"key", key, "rows", opts.RowCount, "max", c.cfg.MaxCacheableRows)
		return false, nil
	}
	if opts.RowCount > c.cfg.WarnOnLargeResult {
		c.cfg.Logger.Warn("cache: caching large result", "key", key, "rows", opts.RowCount)
	}

	ttl := c.effectiveTTL(opts.TTL)
	if err := c.store.Set(ctx, key, value, ttl); err != nil {
		c.cfg.Logger.Warn("cache: set failed", "key", key, "error", err)
		return false, nil
	}
	c.sets.Add(1)

	c.mu.Lock()
	c.meta[key] = entryMeta{storedAt: time.Now(), ttl: ttl, tags: append([]string(nil), opts.Tags...)}
	for _, tag := range opts.Tags {
		set, ok := c.tagIndex[tag]
		if !ok {
			set = make(map[string]struct{})
			c.tagIndex[tag] = set
		}
		set[key] = struct{}{}
	}
	c.mu.Unlock()
	return true, nil
}

// bumpHits is a no-op placeholder for per-entry hit counters; the
// coordinator tracks aggregate hits via c.hits. Kept as a seam so a
// richer Store (one that can report per-entry metadata) can be plugged
// in without changing the Get contract.
func (c *Coordinator) bumpHits(string) {}

func (c *Coordinator) recordHit(d time.Duration) {
	c.timeMu.Lock()
	defer c.timeMu.Unlock()
	c.hitSamples++
	c.avgHitTime = runningAvg(c.avgHitTime, d, c.hitSamples)
}

func (c *Coordinator) recordMiss(d time.Duration) {
	c.timeMu.Lock()
	defer c.timeMu.Unlock()
	c.missSamples++
	c.avgMissTime = runningAvg(c.avgMissTime, d, c.missSamples)
}

// runningAvg implements new_avg = (old_avg*(n-1) + sample) / n.
func runningAvg(oldAvg, sample time.Duration, n int64) time.Duration {
	if n <= 0 {
		return sample
	}
	return time.Duration((int64(oldAvg)*(n-1) + int64(sample)) / n)
}

// Delete removes a single key, including its tag-index back-references.
func (c *Coordinator) Delete(ctx context.Context, key string) error {
	ok, err := c.store.Delete(ctx, key)
	if err != nil {
		c.cfg.Logger.Warn("cache: delete failed", "key", key, "error", err)
		return nil
	}
	if ok {
		c.deletes.Add(1)
	}
	c.forgetKey(key)
	return nil
}

func (c *Coordinator) forgetKey(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, tag := range c.meta[key].tags {
		if set, ok := c.tagIndex[tag]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(c.tagIndex, tag)
			}
		}
	}
	delete(c.meta, key)
}

// InvalidateByTag deletes every key indexed under tag and removes the
// tag from the index.
func (c *Coordinator) InvalidateByTag(ctx context.Context, tag string) error {
	c.mu.Lock()
	set := c.tagIndex[tag]
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	delete(c.tagIndex, tag)
	c.mu.Unlock()

	for _, key := range keys {
		if _, err := c.store.Delete(ctx, key); err != nil {
			c.cfg.Logger.Warn("cache: invalidate-by-tag delete failed", "key", key, "error", err)
			continue
		}
		c.deletes.Add(1)
		c.mu.Lock()
		delete(c.meta, key)
		c.mu.Unlock()
	}
	return nil
}

// InvalidateByPattern deletes every key the store reports as matching
// pattern, also scrubbing them from every tag's key set.
func (c *Coordinator) InvalidateByPattern(ctx context.Context, pattern string) error {
	var keys []string
	if pd, ok := c.store.(dbbridge.PatternDeleter); ok {
		n, err := pd.DeletePattern(ctx, pattern)
		if err != nil {
			c.cfg.Logger.Warn("cache: delete-pattern failed", "pattern", pattern, "error", err)
			return nil
		}
		c.deletes.Add(int64(n))
	} else {
		matched, err := c.store.Keys(ctx, pattern)
		if err != nil {
			c.cfg.Logger.Warn("cache: keys lookup failed", "pattern", pattern, "error", err)
			return nil
		}
		keys = matched
		for _, key := range keys {
			if _, err := c.store.Delete(ctx, key); err != nil {
				c.cfg.Logger.Warn("cache: invalidate-by-pattern delete failed", "key", key, "error", err)
				continue
			}
			c.deletes.Add(1)
		}
	}

	c.mu.Lock()
	for _, key := range keys {
		delete(c.meta, key)
	}
	for tag, set := range c.tagIndex {
		for _, key := range keys {
			delete(set, key)
		}
		if len(set) == 0 {
			delete(c.tagIndex, tag)
		}
	}
	c.mu.Unlock()
	return nil
}

// writeTableRe matches the table/view identifier following the SQL
// keywords that introduce one. This is intentionally best-effort, not a
// SQL parser: quoted identifiers containing whitespace or dots are not
// handled.
var writeTableRe = regexp.MustCompile(`(?i)\b(?:from|join|into|update|delete\s+from)\s+` +
	"[`\"]?([a-zA-Z_][a-zA-Z0-9_]*)[`\"]?")

// TablesFromSQL extracts lowercase table identifiers referenced by sql
// using writeTableRe. It is exported so callers can compute the same
// table set InvalidateWrite uses; package txn does not call it, and a
// transaction commit invalidates no cache entries by itself.
func TablesFromSQL(sql string) []string {
	matches := writeTableRe.FindAllStringSubmatch(sql, -1)
	seen := make(map[string]struct{}, len(matches))
	var tables []string
	for _, m := range matches {
		name := strings.ToLower(m[1])
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		tables = append(tables, name)
	}
	return tables
}

// InvalidateWrite is called with the SQL text of an executed write
// command (INSERT, UPDATE, DELETE, TRUNCATE, DROP, ALTER). It extracts
// referenced tables and invalidates both the `table:<name>` and
// `*<name>*` patterns for each.
func (c *Coordinator) InvalidateWrite(ctx context.Context, sql string) error {
	for _, table := range TablesFromSQL(sql) {
		if err := c.InvalidateByTag(ctx, "table:"+table); err != nil {
			return err
		}
		if err := c.InvalidateByPattern(ctx, "*"+table+"*"); err != nil {
			return err
		}
	}
	return nil
}

// Clear removes every entry from the store and resets local bookkeeping.
func (c *Coordinator) Clear(ctx context.Context) error {
	if err := c.store.Clear(ctx); err != nil {
		c.cfg.Logger.Warn("cache: clear failed", "error", err)
		return nil
	}
	c.mu.Lock()
	c.tagIndex = make(map[string]map[string]struct{})
	c.meta = make(map[string]entryMeta)
	c.mu.Unlock()
	return nil
}

// Stats returns a snapshot of the coordinator's counters.
func (c *Coordinator) Stats() Stats {
	c.timeMu.Lock()
	avgHit, avgMiss := c.avgHitTime, c.avgMissTime
	c.timeMu.Unlock()
	return Stats{
		Hits:        c.hits.Load(),
		Misses:      c.misses.Load(),
		Sets:        c.sets.Load(),
		Deletes:     c.deletes.Load(),
		Evictions:   c.evictions.Load(),
		AvgHitTime:  avgHit,
		AvgMissTime: avgMiss,
	}
}

// cleanupLoop periodically sweeps the local metadata map for entries
// past their TTL, deleting them from the store and tag index.
func (c *Coordinator) cleanupLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Coordinator) sweep() {
	now := time.Now()
	c.mu.Lock()
	var expired []string
	for key, m := range c.meta {
		if m.ttl > 0 && now.Sub(m.storedAt) > m.ttl {
			expired = append(expired, key)
		}
	}
	c.mu.Unlock()

	for _, key := range expired {
		ctx := context.Background()
		if _, err := c.store.Delete(ctx, key); err != nil {
			continue
		}
		c.evictions.Add(1)
		c.forgetKey(key)
	}
}

// Close stops the cleanup sweep and clears local bookkeeping. It does not touch the underlying Store.
func (c *Coordinator) Close() error {
	c.stopOnce.Do(func() { close(c.stopCh) })
	c.wg.Wait()
	c.mu.Lock()
	c.tagIndex = make(map[string]map[string]struct{})
	c.meta = make(map[string]entryMeta)
	c.mu.Unlock()
	return nil
}
