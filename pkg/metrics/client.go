package metrics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/datagata/gata/pkg/models"
)

// Client reads summaries from the /api/ai-metrics endpoint of a running
// server, for processes that do not record outcomes themselves.
type Client struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
}

// NewClient creates a Client for the server at baseURL. A zero timeout means 5s.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout, client: &http.Client{}}
}

// Summarize fetches the summary over window. A non-positive window leaves the
// choice to the server.
func (c *Client) Summarize(ctx context.Context, window time.Duration) (models.MetricsSummary, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	u := c.baseURL + "/api/ai-metrics"
	if window > 0 {
		u += "?" + url.Values{"window": {window.String()}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return models.MetricsSummary{}, fmt.Errorf("create metrics request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return models.MetricsSummary{}, fmt.Errorf("fetch metrics: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.MetricsSummary{}, fmt.Errorf("fetch metrics: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var sum models.MetricsSummary
	if err := json.NewDecoder(resp.Body).Decode(&sum); err != nil {
		return models.MetricsSummary{}, fmt.Errorf("decode metrics summary: %w", err)
	}
	return sum, nil
}
