// Package cache stores question → translated-query results and finds them
// again by approximate textual similarity.
package cache

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/datagata/gata/pkg/apperr"
	"github.com/datagata/gata/pkg/kv"
	"github.com/datagata/gata/pkg/models"
	"github.com/datagata/gata/pkg/similarity"
)

const (
	// DefaultRetention is how long an entry stays readable.
	DefaultRetention = 7 * 24 * time.Hour
	// DefaultThreshold is the similarity a lookup must exceed when the caller gives none.
	DefaultThreshold = 0.5
)

const keyspace = "query_cache"

var prefix = kv.Key{keyspace}

// Entry is what a caller hands to Put.
type Entry struct {
	Prompt     string
	Query      string
	Results    models.Payload
	TableNames []string
	QueryMode  models.QueryMode
	Approved   bool
}

// Cache is the query cache over a kv.Store.
type Cache struct {
	store     kv.Store
	retention time.Duration
	log       *zap.Logger
	now       func() time.Time
	hits      atomic.Int64
	misses    atomic.Int64
}

// New creates a Cache. A non-positive retention uses DefaultRetention.
func New(store kv.Store, retention time.Duration, log *zap.Logger) *Cache {
	if retention <= 0 {
		retention = DefaultRetention
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{store: store, retention: retention, log: log, now: time.Now}
}

// Put stores e under a fresh id and returns it. Caching the same prompt
// twice yields two entries.
func (c *Cache) Put(ctx context.Context, e Entry) (string, error) {
	if strings.TrimSpace(e.Prompt) == "" {
		return "", apperr.Validation("prompt", "is required")
	}
	if !e.QueryMode.Valid() {
		return "", apperr.Validation("queryMode", "must be webllm or motherduck")
	}

	cq := models.CachedQuery{
		ID:         uuid.NewString(),
		Prompt:     e.Prompt,
		Query:      e.Query,
		Results:    e.Results,
		TableNames: e.TableNames,
		QueryMode:  e.QueryMode,
		Approved:   e.Approved,
		CreatedAt:  c.now().UTC(),
	}
	if cq.TableNames == nil {
		cq.TableNames = []string{}
	}
	data, err := json.Marshal(cq)
	if err != nil {
		return "", apperr.Storage("cache put", err)
	}
	if err := c.store.Set(ctx, kv.Key{keyspace, cq.ID}, data, c.retention); err != nil {
		return "", apperr.Storage("cache put", err)
	}
	c.log.Debug("query cached", zap.String("id", cq.ID), zap.String("mode", string(cq.QueryMode)))
	return cq.ID, nil
}

// FindSimilar returns the live entry whose prompt scores highest against
// prompt, provided that score is strictly greater than threshold. An empty
// mode matches every mode. Equal best scores resolve to the entry scanned
// first. A nil match with nil error means nothing qualified.
func (c *Cache) FindSimilar(ctx context.Context, prompt string, mode models.QueryMode, threshold float64) (*models.CacheMatch, error) {
	entries, err := c.live(ctx)
	if err != nil {
		return nil, err
	}

	var best *models.CacheMatch
	for _, cq := range entries {
		if mode != "" && cq.QueryMode != mode {
			continue
		}
		score := similarity.Score(prompt, cq.Prompt)
		if score <= threshold {
			continue
		}
		if best == nil || score > best.Similarity {
			best = &models.CacheMatch{CachedQuery: cq, Similarity: score}
		}
	}

	if best == nil {
		c.misses.Add(1)
		return nil, nil
	}
	c.hits.Add(1)
	return best, nil
}

// Stats returns the number of live entries plus lookup counters since start.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	entries, err := c.live(ctx)
	if err != nil {
		return models.CacheStats{}, err
	}
	return models.CacheStats{
		Entries: int64(len(entries)),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Recent returns up to limit live entries, newest first. limit <= 0 means all.
func (c *Cache) Recent(ctx context.Context, limit int) ([]models.CachedQuery, error) {
	entries, err := c.live(ctx)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Purge removes expired rows from stores that keep them around.
func (c *Cache) Purge(ctx context.Context) (int64, error) {
	sw, ok := c.store.(kv.Sweeper)
	if !ok {
		return 0, nil
	}
	n, err := sw.Sweep(ctx)
	if err != nil {
		return 0, apperr.Storage("cache purge", err)
	}
	return n, nil
}

// RunPurge calls Purge every interval until ctx is done. Failures are
// logged and retried on the next tick.
func (c *Cache) RunPurge(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := c.Purge(ctx)
			if err != nil {
				c.log.Warn("cache purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				c.log.Debug("purged expired cache entries", zap.Int64("count", n))
			}
		}
	}
}

// Clear deletes every cache entry and returns how many were removed.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	entries, err := c.store.List(ctx, prefix)
	if err != nil {
		return 0, apperr.Storage("cache clear", err)
	}
	for _, e := range entries {
		if err := c.store.Delete(ctx, e.Key); err != nil {
			return 0, apperr.Storage("cache clear", err)
		}
	}
	return len(entries), nil
}

// live scans the cache prefix and drops entries past retention even if the
// store has not expired them yet.
func (c *Cache) live(ctx context.Context) ([]models.CachedQuery, error) {
	raw, err := c.store.List(ctx, prefix)
	if err != nil {
		return nil, apperr.Storage("cache scan", err)
	}
	now := c.now()
	out := make([]models.CachedQuery, 0, len(raw))
	for _, e := range raw {
		var cq models.CachedQuery
		if err := json.Unmarshal(e.Value, &cq); err != nil {
			c.log.Warn("skip undecodable cache entry", zap.Strings("key", e.Key), zap.Error(err))
			continue
		}
		if !cq.CreatedAt.Add(c.retention).After(now) {
			continue
		}
		out = append(out, cq)
	}
	return out, nil
}
