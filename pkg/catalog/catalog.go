// Package catalog keeps metadata about the tables queries can target.
package catalog

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/datagata/gata/pkg/apperr"
	"github.com/datagata/gata/pkg/kv"
	"github.com/datagata/gata/pkg/models"
)

const keyspace = "table_metadata"

// Catalog is a table metadata registry over a kv.Store.
type Catalog struct {
	store kv.Store
	log   *zap.Logger
}

// New creates a Catalog.
func New(store kv.Store, log *zap.Logger) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{store: store, log: log}
}

// Register upserts meta under its full name.
func (c *Catalog) Register(ctx context.Context, meta models.TableMetadata) error {
	if strings.TrimSpace(meta.TableName) == "" {
		return apperr.Validation("tableName", "is required")
	}
	if strings.TrimSpace(meta.FullName) == "" {
		return apperr.Validation("fullName", "is required")
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return apperr.Storage("register table", err)
	}
	if err := c.store.Set(ctx, kv.Key{keyspace, meta.FullName}, data, 0); err != nil {
		return apperr.Storage("register table", err)
	}
	c.log.Info("table registered", zap.String("table", meta.FullName), zap.Int("columns", len(meta.Columns)))
	return nil
}

// Get returns the metadata registered under fullName, or nil.
func (c *Catalog) Get(ctx context.Context, fullName string) (*models.TableMetadata, error) {
	data, ok, err := c.store.Get(ctx, kv.Key{keyspace, fullName})
	if err != nil {
		return nil, apperr.Storage("get table", err)
	}
	if !ok {
		return nil, nil
	}
	var meta models.TableMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, apperr.Storage("get table", err)
	}
	return &meta, nil
}

// List returns every registered table in registration order.
func (c *Catalog) List(ctx context.Context) ([]models.TableMetadata, error) {
	entries, err := c.store.List(ctx, kv.Key{keyspace})
	if err != nil {
		return nil, apperr.Storage("list tables", err)
	}
	tables := make([]models.TableMetadata, 0, len(entries))
	for _, e := range entries {
		var meta models.TableMetadata
		if err := json.Unmarshal(e.Value, &meta); err != nil {
			c.log.Warn("skip undecodable table metadata", zap.Strings("key", e.Key), zap.Error(err))
			continue
		}
		tables = append(tables, meta)
	}
	return tables, nil
}

// Stats counts registered tables, live cached queries and approvals.
func (c *Catalog) Stats(ctx context.Context) (models.CatalogStats, error) {
	var st models.CatalogStats
	for _, p := range []struct {
		space string
		dst   *int
	}{
		{keyspace, &st.Tables},
		{"query_cache", &st.CachedQueries},
		{"approved_queries", &st.ApprovedQueries},
	} {
		entries, err := c.store.List(ctx, kv.Key{p.space})
		if err != nil {
			return models.CatalogStats{}, apperr.Storage("catalog stats", err)
		}
		*p.dst = len(entries)
	}
	return st, nil
}
