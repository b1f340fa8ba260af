package flags

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextFromHeaders(t *testing.T) {
	h := http.Header{}
	c := ContextFromHeaders(h)
	assert.Equal(t, "anonymous", c.UserKey)
	assert.Equal(t, "free", c.Tier)
	assert.True(t, c.Anonymous())

	h.Set(HeaderUserID, "u1")
	h.Set(HeaderTier, "pro")
	h.Set(HeaderOrg, "acme")
	c = ContextFromHeaders(h)
	assert.Equal(t, Context{UserKey: "u1", Tier: "pro", OrgKey: "acme"}, c)
	assert.False(t, c.Anonymous())
}

func TestStaticDefault(t *testing.T) {
	s := NewStatic(AIConfig{}, nil)
	cfg, err := s.Resolve(context.Background(), Context{UserKey: "u1"})
	require.NoError(t, err)
	assert.Equal(t, DefaultAIConfig(), cfg)
	assert.Equal(t, "motherduck-ai", cfg.Provider)
	assert.Equal(t, "gpt-4-turbo", cfg.Model.ModelID)
	assert.Equal(t, 1000, cfg.MaxTokens)
}

func TestStaticRules(t *testing.T) {
	s := NewStatic(AIConfig{}, []Rule{
		{Users: []string{"beta1", "beta2"}, Config: AIConfig{Provider: "openai", Model: Model{Enabled: true, ModelID: "gpt-4o-mini"}}},
		{Tier: "free", Config: AIConfig{Provider: "webllm", Model: Model{Enabled: true, ModelID: "Llama-3.2-3B-Instruct-q4f16_1-MLC"}}},
	})
	ctx := context.Background()

	cfg, err := s.Resolve(ctx, Context{UserKey: "beta2", Tier: "free"})
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.ModelID)
	assert.Equal(t, 1000, cfg.MaxTokens, "unset fields come from the default")

	cfg, err = s.Resolve(ctx, Context{UserKey: "u9", Tier: "free"})
	require.NoError(t, err)
	assert.Equal(t, "webllm", cfg.Provider)

	cfg, err = s.Resolve(ctx, Context{UserKey: "u9", Tier: "enterprise"})
	require.NoError(t, err)
	assert.Equal(t, "motherduck-ai", cfg.Provider)
}

func TestHTTPResolver(t *testing.T) {
	var got evalRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sdk-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"provider":"webllm","model":{"enabled":true,"modelId":"Llama-3.2-3B-Instruct-q4f16_1-MLC"},"maxTokens":256}`))
	}))
	defer srv.Close()

	cfg, err := NewHTTP(srv.URL, "sdk-key", 0).Resolve(context.Background(), Context{UserKey: "u1", Tier: "pro"})
	require.NoError(t, err)
	assert.Equal(t, "webllm", cfg.Provider)
	assert.Equal(t, 256, cfg.MaxTokens)
	assert.Equal(t, FlagKey, got.FlagKey)
	assert.Equal(t, "pro", got.Context.Tier)
}

func TestHTTPResolverErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"status", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "flag service down", http.StatusBadGateway)
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"provider":`))
		}},
		{"no provider", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"model":{"enabled":true}}`))
		}},
		{"slow", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(time.Second):
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()
			_, err := NewHTTP(srv.URL, "", 50*time.Millisecond).Resolve(context.Background(), Context{})
			assert.Error(t, err)
		})
	}
}

func TestLogTracker(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	tr := NewLogTracker(zap.New(core))
	latency := 12.0
	tr.Track(context.Background(), EventQueryCompleted, Context{UserKey: "u1", Tier: "pro"}, map[string]any{"provider": "webllm"}, &latency)

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, EventQueryCompleted, fields["event"])
	assert.Equal(t, 12.0, fields["metric"])
}
