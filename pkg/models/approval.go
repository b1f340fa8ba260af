package models

import "time"

// ApprovedQuery is a query translation a user has signed off on.
type ApprovedQuery struct {
	UserID          string    `json:"userId"`
	TableName       string    `json:"tableName"`
	CacheKey        string    `json:"cacheKey"`
	Question        string    `json:"question"`
	TranslatedQuery string    `json:"translatedQuery,omitempty"`
	QueryResponse   Payload   `json:"queryResponse"`
	ApprovedAt      time.Time `json:"approvedAt"`
	ApprovedBy      string    `json:"approvedBy"`
}
