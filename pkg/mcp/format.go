package mcp

import (
	"fmt"
	"strings"

	"github.com/datagata/gata/pkg/models"
)

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func formatCacheMatch(m *models.CacheMatch) string {
	if m == nil {
		return "No cached query above the similarity threshold."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Cached query (similarity %.2f)\n", m.Similarity)
	fmt.Fprintf(&b, "  ID:      %s\n", m.ID)
	fmt.Fprintf(&b, "  Prompt:  %s\n", m.Prompt)
	fmt.Fprintf(&b, "  Mode:    %s\n", m.QueryMode)
	if len(m.TableNames) > 0 {
		fmt.Fprintf(&b, "  Tables:  %s\n", strings.Join(m.TableNames, ", "))
	}
	fmt.Fprintf(&b, "  Created: %s\n", m.CreatedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "  Query:\n%s\n", m.Query)
	return b.String()
}

func formatCacheStats(stats models.CacheStats) string {
	total := stats.Hits + stats.Misses
	hitRate := float64(0)
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total) * 100
	}
	return fmt.Sprintf("Query Cache\n"+
		"  Entries:  %d\n"+
		"  Hits:     %d\n"+
		"  Misses:   %d\n"+
		"  Hit Rate: %.1f%%\n",
		stats.Entries, stats.Hits, stats.Misses, hitRate)
}

func formatApproved(queries []models.ApprovedQuery) string {
	if len(queries) == 0 {
		return "No approved queries found."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-40s %-40s %-20s\n", "Question", "Query", "Approved")
	b.WriteString(strings.Repeat("-", 102) + "\n")
	for _, q := range queries {
		fmt.Fprintf(&b, "%-40s %-40s %-20s\n",
			truncate(q.Question, 40),
			truncate(q.TranslatedQuery, 40),
			q.ApprovedAt.Format("2006-01-02 15:04:05"))
	}
	return b.String()
}

func formatMetricsSummary(sum models.MetricsSummary) string {
	if len(sum.Summary) == 0 {
		return fmt.Sprintf("No provider outcomes in the last %s.", sum.TimeRange)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Provider metrics, last %s (%d queries)\n", sum.TimeRange, sum.TotalQueries)
	fmt.Fprintf(&b, "%-16s %8s %10s %10s %12s %8s\n",
		"Provider", "Queries", "Avg ms", "P95 ms", "Cost USD", "Success")
	b.WriteString(strings.Repeat("-", 69) + "\n")
	for _, p := range sum.Summary {
		fmt.Fprintf(&b, "%-16s %8d %10.0f %10.0f %12.4f %7.2f%%\n",
			p.Provider, p.Queries, p.AvgLatencyMs, p.P95LatencyMs, p.TotalCostUSD, p.SuccessRate)
	}
	return b.String()
}

func formatTables(tables []models.TableMetadata) string {
	if len(tables) == 0 {
		return "No tables registered."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-40s %-20s %8s %10s\n", "Full Name", "Table", "Columns", "Streaming")
	b.WriteString(strings.Repeat("-", 81) + "\n")
	for _, t := range tables {
		fmt.Fprintf(&b, "%-40s %-20s %8d %10t\n",
			truncate(t.FullName, 40), truncate(t.TableName, 20), len(t.Columns), t.IsStreaming)
	}
	return b.String()
}
