package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datagata/gata/pkg/models"
)

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, ok := ParseKind(string(k))
		assert.True(t, ok)
		assert.Equal(t, k, got)
	}
	_, ok := ParseKind("bard")
	assert.False(t, ok)
	_, ok = ParseKind("")
	assert.False(t, ok)
}

func TestKindProperties(t *testing.T) {
	assert.True(t, MotherDuck.Metered())
	assert.True(t, OpenAI.Metered())
	assert.False(t, WebLLM.Metered())
	assert.Equal(t, models.ModeBrowser, WebLLM.Mode())
	assert.Equal(t, models.ModeRemote, MotherDuck.Mode())
	assert.Equal(t, "Llama-3.2-3B-Instruct-q4f16_1-MLC", WebLLM.DefaultModel())
}

func TestMotherDuckExecute(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/ai/query", r.URL.Path)
		assert.Equal(t, "Bearer md-token", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"result":"SELECT month, sum(revenue) FROM sales GROUP BY 1","usage":{"total_tokens":1500}}`))
	}))
	defer srv.Close()

	md := NewMotherDuck(srv.URL+"/", "md-token", srv.Client())
	resp, err := md.Execute(context.Background(), "monthly revenue", Params{MaxTokens: 1000, Temperature: 0.7})
	require.NoError(t, err)
	assert.Equal(t, "SELECT month, sum(revenue) FROM sales GROUP BY 1", resp.Text)
	require.NotNil(t, resp.TokensUsed)
	assert.Equal(t, 1500, *resp.TokensUsed)

	assert.Equal(t, "monthly revenue", body["query"])
	assert.Equal(t, "gpt-4-turbo", body["model"])
	assert.Equal(t, 1000.0, body["max_tokens"])
	assert.Equal(t, 0.7, body["temperature"])
}

func TestMotherDuckWithoutUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":"SELECT 1"}`))
	}))
	defer srv.Close()

	resp, err := NewMotherDuck(srv.URL, "", nil).Execute(context.Background(), "q", Params{})
	require.NoError(t, err)
	assert.Nil(t, resp.TokensUsed)
}

func TestAdapterErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		malformed bool
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`, false},
		{"unauthorized", http.StatusUnauthorized, `nope`, false},
		{"missing result", http.StatusOK, `{"usage":{"total_tokens":3}}`, true},
		{"not json", http.StatusOK, `<html>`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			for _, a := range []Adapter{NewMotherDuck(srv.URL, "", nil), NewWebLLM(srv.URL, nil)} {
				_, err := a.Execute(context.Background(), "q", Params{})
				require.Error(t, err)
				assert.Equal(t, tt.malformed, errors.Is(err, ErrMalformedResponse))
			}
		})
	}
}

func TestWebLLMExecute(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/webllm/query", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.Write([]byte(`{"result":"SELECT 2","usage":{"total_tokens":99}}`))
	}))
	defer srv.Close()

	resp, err := NewWebLLM(srv.URL, nil).Execute(context.Background(), "q", Params{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 2", resp.Text)
	assert.Nil(t, resp.TokensUsed, "local models report no usage")
	assert.Equal(t, WebLLM.DefaultModel(), body["model"])
}

func TestExecuteHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewWebLLM(srv.URL, nil).Execute(ctx, "q", Params{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenAIExecute(t *testing.T) {
	var req struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		MaxTokens int `json:"max_tokens"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1700000000,
			"model": "gpt-4o-mini",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": " SELECT 3 "}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 20, "completion_tokens": 5, "total_tokens": 25}
		}`))
	}))
	defer srv.Close()

	a := NewOpenAI("sk-test", srv.URL+"/v1")
	resp, err := a.Execute(context.Background(), "count orders", Params{MaxTokens: 64, TableNames: []string{"orders"}})
	require.NoError(t, err)
	assert.Equal(t, "SELECT 3", resp.Text)
	require.NotNil(t, resp.TokensUsed)
	assert.Equal(t, 25, *resp.TokensUsed)

	assert.Equal(t, "gpt-4o-mini", req.Model)
	assert.Equal(t, 64, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)
	assert.Contains(t, req.Messages[0].Content, "orders")
	assert.Equal(t, "count orders", req.Messages[1].Content)
}

func TestOpenAINoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"x","object":"chat.completion","choices":[],"usage":{"total_tokens":1}}`))
	}))
	defer srv.Close()

	_, err := NewOpenAI("k", srv.URL+"/v1").Execute(context.Background(), "q", Params{})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestSystemPrompt(t *testing.T) {
	assert.Equal(t, DefaultSystemPrompt, SystemPrompt(Params{}))
	assert.Equal(t, "Use sales, events.", SystemPrompt(Params{PromptTemplate: "Use {{tables}}.", TableNames: []string{"sales", "events"}}))
}
