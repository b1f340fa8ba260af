package flags

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTP asks a remote flag service for the variation. The service receives
// {"flagKey": "ai-config", "context": {...}} and answers with an AIConfig.
type HTTP struct {
	url     string
	token   string
	timeout time.Duration
	client  *http.Client
}

// NewHTTP creates an HTTP resolver. A zero timeout means 2s.
func NewHTTP(url, token string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HTTP{url: url, token: token, timeout: timeout, client: &http.Client{}}
}

type evalRequest struct {
	FlagKey string  `json:"flagKey"`
	Context Context `json:"context"`
}

// Resolve implements Resolver.
func (h *HTTP) Resolve(ctx context.Context, c Context) (AIConfig, error) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	body, err := json.Marshal(evalRequest{FlagKey: FlagKey, Context: c})
	if err != nil {
		return AIConfig{}, fmt.Errorf("marshal flag request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return AIConfig{}, fmt.Errorf("create flag request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return AIConfig{}, fmt.Errorf("evaluate flag: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return AIConfig{}, fmt.Errorf("evaluate flag: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	var cfg AIConfig
	if err := json.NewDecoder(resp.Body).Decode(&cfg); err != nil {
		return AIConfig{}, fmt.Errorf("decode flag variation: %w", err)
	}
	if cfg.Provider == "" {
		return AIConfig{}, errors.New("flag variation has no provider")
	}
	return cfg, nil
}
