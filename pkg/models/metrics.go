package models

import "time"

// ProviderOutcome is the result of one provider call.
type ProviderOutcome struct {
	Provider  string    `json:"provider"`
	LatencyMs float64   `json:"latency"`
	CostUSD   float64   `json:"cost"`
	Timestamp time.Time `json:"timestamp"`
	Tier      string    `json:"tier"`
	Success   bool      `json:"success"`
}

// ProviderStats aggregates outcomes of one provider over a window.
type ProviderStats struct {
	Provider     string  `json:"provider"`
	Queries      int     `json:"queries"`
	AvgLatencyMs float64 `json:"avgLatency"`
	TotalCostUSD float64 `json:"totalCost"`
	SuccessRate  float64 `json:"successRate"`
	P95LatencyMs float64 `json:"p95Latency"`
}

// MetricsSummary is the windowed view served to dashboards.
type MetricsSummary struct {
	TimeRange    string            `json:"timeRange"`
	TotalQueries int               `json:"totalQueries"`
	Summary      []ProviderStats   `json:"summary"`
	Raw          []ProviderOutcome `json:"raw"`
}
