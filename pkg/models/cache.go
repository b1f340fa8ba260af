package models

import "time"

// QueryMode identifies where a cached translation was produced.
type QueryMode string

const (
	// ModeBrowser is an in-browser model (WebLLM).
	ModeBrowser QueryMode = "webllm"
	// ModeRemote is the remote query service (MotherDuck AI).
	ModeRemote QueryMode = "motherduck"
)

// Valid reports whether m is a known mode.
func (m QueryMode) Valid() bool {
	return m == ModeBrowser || m == ModeRemote
}

// CachedQuery is a stored question → translated query mapping.
type CachedQuery struct {
	ID         string    `json:"id"`
	Prompt     string    `json:"prompt"`
	Query      string    `json:"query"`
	Results    Payload   `json:"results"`
	TableNames []string  `json:"tableNames"`
	QueryMode  QueryMode `json:"queryMode"`
	Approved   bool      `json:"approved"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CacheMatch is a cached query returned by an approximate lookup.
type CacheMatch struct {
	CachedQuery
	Similarity float64 `json:"similarity"`
}

// CacheStats reports cache performance metrics.
type CacheStats struct {
	Entries int64 `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}
