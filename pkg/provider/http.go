package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type queryRequest struct {
	Query       string   `json:"query"`
	Model       string   `json:"model"`
	MaxTokens   int      `json:"max_tokens,omitempty"`
	Temperature float64  `json:"temperature,omitempty"`
	TableNames  []string `json:"table_names,omitempty"`
}

type queryResponse struct {
	Result *string `json:"result"`
	Usage  *struct {
		TotalTokens *int `json:"total_tokens"`
	} `json:"usage"`
}

// postQuery sends a query body to url and decodes the shared response shape.
func postQuery(ctx context.Context, client *http.Client, url, token string, body queryRequest) (*Response, error) {
	start := time.Now()

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("call %s: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var qr queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&qr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if qr.Result == nil {
		return nil, fmt.Errorf("%w: missing result", ErrMalformedResponse)
	}

	out := &Response{
		Text:      *qr.Result,
		LatencyMs: float64(time.Since(start).Microseconds()) / 1000,
	}
	if qr.Usage != nil && qr.Usage.TotalTokens != nil {
		n := *qr.Usage.TotalTokens
		out.TokensUsed = &n
	}
	return out, nil
}

func defaultClient(c *http.Client) *http.Client {
	if c == nil {
		return &http.Client{}
	}
	return c
}

func modelOr(p Params, k Kind) string {
	if p.Model != "" {
		return p.Model
	}
	return k.DefaultModel()
}
