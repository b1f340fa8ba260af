package mcp

import (
	"context"
	"encoding/json"
	"time"

	"github.com/datagata/gata/pkg/models"
)

type tool struct {
	def    ToolDefinition
	handle func(ctx context.Context, s *Server, args json.RawMessage) ToolCallResult
}

func schema(required []string, props map[string]any) map[string]any {
	m := map[string]any{"type": "object", "properties": props}
	if len(required) > 0 {
		m["required"] = required
	}
	return m
}

func prop(typ, desc string) map[string]any {
	return map[string]any{"type": typ, "description": desc}
}

var tools = []tool{
	{
		def: ToolDefinition{
			Name:        "gata_cache_lookup",
			Description: "Find the cached query translation whose prompt is most similar to the given prompt.",
			InputSchema: schema([]string{"prompt"}, map[string]any{
				"prompt":     prop("string", "Natural-language question to look up"),
				"query_mode": prop("string", "Restrict to webllm or motherduck entries (optional)"),
				"threshold":  prop("number", "Minimum similarity, exclusive, between 0 and 1 (default 0.5)"),
			}),
		},
		handle: handleCacheLookup,
	},
	{
		def: ToolDefinition{
			Name:        "gata_cache_stats",
			Description: "Show query cache statistics (live entries, hits, misses, hit rate).",
			InputSchema: schema(nil, map[string]any{}),
		},
		handle: handleCacheStats,
	},
	{
		def: ToolDefinition{
			Name:        "gata_approved_queries",
			Description: "List the query translations a user approved for a table.",
			InputSchema: schema([]string{"table"}, map[string]any{
				"user":  prop("string", "User id (default anonymous)"),
				"table": prop("string", "Table name"),
			}),
		},
		handle: handleApproved,
	},
	{
		def: ToolDefinition{
			Name:        "gata_metrics_summary",
			Description: "Summarize provider latency, cost and success rate over a recent window, as recorded by the running gata server.",
			InputSchema: schema(nil, map[string]any{
				"window": prop("string", "Window as a duration such as 1h or 15m (default 1h)"),
			}),
		},
		handle: handleMetricsSummary,
	},
	{
		def: ToolDefinition{
			Name:        "gata_tables",
			Description: "List the tables registered in the catalog.",
			InputSchema: schema(nil, map[string]any{}),
		},
		handle: handleTables,
	},
}

func toolDefinitions() []ToolDefinition {
	defs := make([]ToolDefinition, len(tools))
	for i, t := range tools {
		defs[i] = t.def
	}
	return defs
}

func toolByName(name string) (tool, bool) {
	for _, t := range tools {
		if t.def.Name == name {
			return t, true
		}
	}
	return tool{}, false
}

func textResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}}
}

func errorResult(text string) ToolCallResult {
	return ToolCallResult{Content: []ContentBlock{{Type: "text", Text: text}}, IsError: true}
}

type cacheLookupArgs struct {
	Prompt    string   `json:"prompt"`
	QueryMode string   `json:"query_mode"`
	Threshold *float64 `json:"threshold"`
}

func handleCacheLookup(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	if s.opts.Cache == nil {
		return textResult("Query cache is not configured.")
	}
	var args cacheLookupArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return errorResult("Invalid arguments: " + err.Error())
	}
	if args.Prompt == "" {
		return errorResult("prompt is required")
	}
	mode := models.QueryMode(args.QueryMode)
	if mode != "" && !mode.Valid() {
		return errorResult("query_mode must be webllm or motherduck")
	}
	threshold := 0.5
	if args.Threshold != nil {
		if *args.Threshold < 0 || *args.Threshold > 1 {
			return errorResult("threshold must be between 0 and 1")
		}
		threshold = *args.Threshold
	}

	match, err := s.opts.Cache.FindSimilar(ctx, args.Prompt, mode, threshold)
	if err != nil {
		return errorResult("Error searching cache: " + err.Error())
	}
	return textResult(formatCacheMatch(match))
}

func handleCacheStats(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.opts.Cache == nil {
		return textResult("Query cache is not configured.")
	}
	stats, err := s.opts.Cache.Stats(ctx)
	if err != nil {
		return errorResult("Error fetching cache stats: " + err.Error())
	}
	return textResult(formatCacheStats(stats))
}

type approvedArgs struct {
	User  string `json:"user"`
	Table string `json:"table"`
}

func handleApproved(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	if s.opts.Approvals == nil {
		return textResult("Approval store is not configured.")
	}
	var args approvedArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return errorResult("Invalid arguments: " + err.Error())
	}
	if args.Table == "" {
		return errorResult("table is required")
	}
	if args.User == "" {
		args.User = "anonymous"
	}
	queries, err := s.opts.Approvals.List(ctx, args.User, args.Table)
	if err != nil {
		return errorResult("Error listing approvals: " + err.Error())
	}
	return textResult(formatApproved(queries))
}

type metricsArgs struct {
	Window string `json:"window"`
}

func handleMetricsSummary(ctx context.Context, s *Server, raw json.RawMessage) ToolCallResult {
	if s.opts.Metrics == nil {
		return textResult("Metrics are not configured.")
	}
	var args metricsArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return errorResult("Invalid arguments: " + err.Error())
	}
	var window time.Duration
	if args.Window != "" {
		d, err := time.ParseDuration(args.Window)
		if err != nil || d <= 0 {
			return errorResult("window must be a positive duration such as 1h or 15m")
		}
		window = d
	}
	sum, err := s.opts.Metrics.Summarize(ctx, window)
	if err != nil {
		return errorResult("Error fetching metrics: " + err.Error())
	}
	return textResult(formatMetricsSummary(sum))
}

func handleTables(ctx context.Context, s *Server, _ json.RawMessage) ToolCallResult {
	if s.opts.Tables == nil {
		return textResult("Table catalog is not configured.")
	}
	tables, err := s.opts.Tables.List(ctx)
	if err != nil {
		return errorResult("Error listing tables: " + err.Error())
	}
	return textResult(formatTables(tables))
}
