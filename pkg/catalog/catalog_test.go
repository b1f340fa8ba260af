package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datagata/gata/pkg/apperr"
	"github.com/datagata/gata/pkg/approval"
	"github.com/datagata/gata/pkg/cache"
	"github.com/datagata/gata/pkg/kv/memory"
	"github.com/datagata/gata/pkg/models"
)

func TestRegisterGetList(t *testing.T) {
	ctx := context.Background()
	c := New(memory.New(), nil)

	rows := int64(1200)
	meta := models.TableMetadata{
		TableName: "sales",
		FullName:  "analytics.main.sales",
		Database:  "analytics",
		Schema:    "main",
		Columns:   []models.ColumnInfo{{Name: "revenue", Type: "DOUBLE"}},
		RowCount:  &rows,
	}
	require.NoError(t, c.Register(ctx, meta))
	require.NoError(t, c.Register(ctx, models.TableMetadata{TableName: "events", FullName: "analytics.main.events", IsStreaming: true}))

	got, err := c.Get(ctx, "analytics.main.sales")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, meta, *got)

	missing, err := c.Get(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	all, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "sales", all[0].TableName)
	assert.True(t, all[1].IsStreaming)
}

func TestRegisterValidation(t *testing.T) {
	c := New(memory.New(), nil)
	var ve *apperr.ValidationError

	err := c.Register(context.Background(), models.TableMetadata{FullName: "a.b.c"})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "tableName", ve.Field)

	err = c.Register(context.Background(), models.TableMetadata{TableName: "c"})
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "fullName", ve.Field)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	c := New(store, nil)

	require.NoError(t, c.Register(ctx, models.TableMetadata{TableName: "sales", FullName: "db.main.sales"}))
	_, err := cache.New(store, 0, nil).Put(ctx, cache.Entry{Prompt: "p", QueryMode: models.ModeRemote})
	require.NoError(t, err)
	ap := approval.New(store, nil)
	_, err = ap.Approve(ctx, "u1", "sales", "q1", models.MustPayload(1))
	require.NoError(t, err)
	_, err = ap.Approve(ctx, "u2", "sales", "q1", models.MustPayload(1))
	require.NoError(t, err)

	st, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.CatalogStats{Tables: 1, CachedQueries: 1, ApprovedQueries: 2}, st)
}
