package models

// QueryRequest is the body of an execute-query call.
type QueryRequest struct {
	Query      string   `json:"query"`
	TableNames []string `json:"tableNames,omitempty"`
}

// QueryResponse is the normalized result of an execute-query call.
type QueryResponse struct {
	Result     string   `json:"result"`
	Provider   string   `json:"provider"`
	LatencyMs  int64    `json:"latency"`
	TokensUsed *int     `json:"tokensUsed,omitempty"`
	CostUSD    *float64 `json:"cost,omitempty"`
}
