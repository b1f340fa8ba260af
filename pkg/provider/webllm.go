package provider

import (
	"context"
	"net/http"
	"strings"
)

// WebLLMAdapter forwards queries to the proxy that relays them to an
// in-browser model. Token usage is never reported.
type WebLLMAdapter struct {
	baseURL string
	client  *http.Client
}

// NewWebLLM creates an adapter for the proxy at baseURL.
func NewWebLLM(baseURL string, client *http.Client) *WebLLMAdapter {
	return &WebLLMAdapter{baseURL: strings.TrimRight(baseURL, "/"), client: defaultClient(client)}
}

// Execute implements Adapter.
func (w *WebLLMAdapter) Execute(ctx context.Context, query string, p Params) (*Response, error) {
	resp, err := postQuery(ctx, w.client, w.baseURL+"/api/webllm/query", "", queryRequest{
		Query:       query,
		Model:       modelOr(p, WebLLM),
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
		TableNames:  p.TableNames,
	})
	if err != nil {
		return nil, err
	}
	resp.TokensUsed = nil
	return resp, nil
}
