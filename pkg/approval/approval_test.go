package approval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datagata/gata/pkg/apperr"
	"github.com/datagata/gata/pkg/kv/memory"
	"github.com/datagata/gata/pkg/models"
)

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "sales:show revenue", CacheKey("sales", "  Show Revenue "))
}

func TestApproveAndList(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(), nil)

	resp := models.MustPayload(map[string]any{"sql": "SELECT sum(revenue) FROM sales", "rows": []int{1}})
	aq, err := s.Approve(ctx, "u1", "sales", "Show revenue", resp)
	require.NoError(t, err)
	assert.Equal(t, "sales:show revenue", aq.CacheKey)
	assert.Equal(t, "SELECT sum(revenue) FROM sales", aq.TranslatedQuery)
	assert.Equal(t, "u1", aq.ApprovedBy)

	got, err := s.List(ctx, "u1", "sales")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Show revenue", got[0].Question)
	assert.JSONEq(t, string(resp.Raw()), string(got[0].QueryResponse.Raw()))

	other, err := s.List(ctx, "u2", "sales")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestApproveIsIdempotentOnIdentity(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(), nil)
	t0 := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return t0 }

	_, err := s.Approve(ctx, "u1", "sales", "Show Revenue", models.MustPayload(map[string]any{"query": "v1"}))
	require.NoError(t, err)
	_, err = s.Approve(ctx, "u1", "sales", "show revenue", models.MustPayload(map[string]any{"query": "v2"}))
	require.NoError(t, err)
	_, err = s.Approve(ctx, "u1", "sales", "orders", models.MustPayload(42))
	require.NoError(t, err)

	s.now = func() time.Time { return t0.Add(time.Hour) }
	_, err = s.Approve(ctx, "u1", "sales", " SHOW REVENUE ", models.MustPayload(map[string]any{"query": "v3"}))
	require.NoError(t, err)

	got, err := s.List(ctx, "u1", "sales")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "v3", got[0].TranslatedQuery)
	assert.Equal(t, t0.Add(time.Hour), got[0].ApprovedAt)
	assert.Equal(t, "orders", got[1].Question)
	assert.Empty(t, got[1].TranslatedQuery)
}

func TestApproveValidation(t *testing.T) {
	s := New(memory.New(), nil)
	ctx := context.Background()

	tests := []struct {
		name, table, question string
		result                models.Payload
		field                 string
	}{
		{"no question", "sales", "", models.MustPayload(1), "question"},
		{"no table", "", "q", models.MustPayload(1), "tableName"},
		{"no response", "sales", "q", models.Payload{}, "queryResponse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Approve(ctx, "u1", tt.table, tt.question, tt.result)
			var ve *apperr.ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestListRequiresTable(t *testing.T) {
	_, err := New(memory.New(), nil).List(context.Background(), "u1", "")
	var ve *apperr.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestFindSimilar(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(), nil)
	for _, q := range []string{"monthly revenue by region", "top customers", "revenue per month", "churn rate"} {
		_, err := s.Approve(ctx, "u1", "sales", q, models.MustPayload(map[string]any{"sql": "SELECT 1"}))
		require.NoError(t, err)
	}
	_, err := s.Approve(ctx, "u1", "events", "monthly revenue by region", models.MustPayload(1))
	require.NoError(t, err)

	matches, err := s.FindSimilar(ctx, "u1", "sales", "Monthly revenue, by region?", DefaultThreshold, 0)
	require.NoError(t, err)
	require.NotEmpty(t, matches)
	assert.Equal(t, "monthly revenue by region", matches[0].Text)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	for _, m := range matches {
		assert.GreaterOrEqual(t, m.Score, DefaultThreshold)
	}

	all, err := s.FindSimilar(ctx, "u1", "", "monthly revenue by region", 0.9, 5)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := s.FindSimilar(ctx, "u2", "sales", "monthly revenue by region", 0, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestFindSimilarZeroThreshold(t *testing.T) {
	ctx := context.Background()
	s := New(memory.New(), nil)
	_, err := s.Approve(ctx, "u1", "sales", "churn rate by cohort", models.MustPayload(map[string]any{"sql": "SELECT 1"}))
	require.NoError(t, err)

	strict, err := s.FindSimilar(ctx, "u1", "sales", "monthly churn numbers", DefaultThreshold, 0)
	require.NoError(t, err)
	assert.Empty(t, strict)

	matches, err := s.FindSimilar(ctx, "u1", "sales", "monthly churn numbers", 0, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "churn rate by cohort", matches[0].Text)
	assert.Greater(t, matches[0].Score, 0.0)
	assert.Less(t, matches[0].Score, DefaultThreshold)
}
