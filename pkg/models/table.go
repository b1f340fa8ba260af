package models

// ColumnInfo describes one column of a registered table.
type ColumnInfo struct {
	Name          string `json:"name"`
	Type          string `json:"type"`
	Description   string `json:"description,omitempty"`
	Nullable      *bool  `json:"nullable,omitempty"`
	DistinctCount *int64 `json:"distinctCount,omitempty"`
	SampleValues  []any  `json:"sampleValues,omitempty"`
}

// TableMetadata describes a table the query providers can target.
type TableMetadata struct {
	TableName   string       `json:"tableName"`
	FullName    string       `json:"fullName"`
	Location    string       `json:"location,omitempty"`
	Database    string       `json:"database,omitempty"`
	Schema      string       `json:"schema,omitempty"`
	Columns     []ColumnInfo `json:"columns,omitempty"`
	IsStreaming bool         `json:"isStreaming"`
	Description string       `json:"description,omitempty"`
	RowCount    *int64       `json:"rowCount,omitempty"`
	LastUpdated string       `json:"lastUpdated,omitempty"`
}

// CatalogStats counts what the service currently stores.
type CatalogStats struct {
	Tables          int `json:"tables"`
	CachedQueries   int `json:"cachedQueries"`
	ApprovedQueries int `json:"approvedQueries"`
}
