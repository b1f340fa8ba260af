package provider

import (
	"context"
	"net/http"
	"strings"
)

// DefaultMotherDuckURL is the public MotherDuck API.
const DefaultMotherDuckURL = "https://api.motherduck.com"

// MotherDuckAdapter calls the MotherDuck AI query endpoint.
type MotherDuckAdapter struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewMotherDuck creates an adapter. An empty baseURL uses DefaultMotherDuckURL;
// a nil client uses a plain http.Client.
func NewMotherDuck(baseURL, token string, client *http.Client) *MotherDuckAdapter {
	if baseURL == "" {
		baseURL = DefaultMotherDuckURL
	}
	return &MotherDuckAdapter{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  defaultClient(client),
	}
}

// Execute implements Adapter.
func (m *MotherDuckAdapter) Execute(ctx context.Context, query string, p Params) (*Response, error) {
	return postQuery(ctx, m.client, m.baseURL+"/ai/query", m.token, queryRequest{
		Query:       query,
		Model:       modelOr(p, MotherDuck),
		MaxTokens:   p.MaxTokens,
		Temperature: p.Temperature,
		TableNames:  p.TableNames,
	})
}
