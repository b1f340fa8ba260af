package metrics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSummarize(t *testing.T) {
	a := newTestAggregator(10)
	a.Record(outcome("webllm", 200, 0, true, time.Minute))

	var gotWindow string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/ai-metrics", r.URL.Path)
		gotWindow = r.URL.Query().Get("window")
		d, _ := time.ParseDuration(gotWindow)
		json.NewEncoder(w).Encode(a.Summarize(d))
	}))
	defer srv.Close()

	sum, err := NewClient(srv.URL+"/", 0).Summarize(context.Background(), 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "15m0s", gotWindow)
	assert.Equal(t, 1, sum.TotalQueries)
	require.Len(t, sum.Summary, 1)
	assert.Equal(t, "webllm", sum.Summary[0].Provider)

	_, err = NewClient(srv.URL, 0).Summarize(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, gotWindow)
}

func TestClientSummarizeStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, time.Second).Summarize(context.Background(), time.Hour)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}
