// Package approval persists query translations users have signed off on.
package approval

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/datagata/gata/pkg/apperr"
	"github.com/datagata/gata/pkg/kv"
	"github.com/datagata/gata/pkg/models"
	"github.com/datagata/gata/pkg/similarity"
)

const (
	keyspace = "approved_queries"

	// DefaultThreshold is the threshold callers use when a request gives none.
	// DefaultTopK applies to FindSimilar when topK is zero.
	DefaultThreshold = 0.5
	DefaultTopK      = 3
)

// Store is the approval store over a kv.Store. Approvals never expire.
type Store struct {
	store kv.Store
	log   *zap.Logger
	now   func() time.Time
}

// New creates a Store.
func New(store kv.Store, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{store: store, log: log, now: time.Now}
}

// CacheKey is the identity of an approval within a user's table: approving
// the same question again, modulo case and surrounding space, overwrites it.
func CacheKey(tableName, question string) string {
	return tableName + ":" + strings.ToLower(strings.TrimSpace(question))
}

// Approve upserts the approval of question for userID on tableName.
func (s *Store) Approve(ctx context.Context, userID, tableName, question string, result models.Payload) (models.ApprovedQuery, error) {
	switch {
	case strings.TrimSpace(question) == "":
		return models.ApprovedQuery{}, apperr.Validation("question", "is required")
	case tableName == "":
		return models.ApprovedQuery{}, apperr.Validation("tableName", "is required")
	case result.IsEmpty():
		return models.ApprovedQuery{}, apperr.Validation("queryResponse", "is required")
	}
	if userID == "" {
		userID = "anonymous"
	}

	aq := models.ApprovedQuery{
		UserID:        userID,
		TableName:     tableName,
		CacheKey:      CacheKey(tableName, question),
		Question:      question,
		QueryResponse: result,
		ApprovedAt:    s.now().UTC(),
		ApprovedBy:    userID,
	}
	if sql, ok := result.StringField("sql"); ok {
		aq.TranslatedQuery = sql
	} else if q, ok := result.StringField("query"); ok {
		aq.TranslatedQuery = q
	}

	data, err := json.Marshal(aq)
	if err != nil {
		return models.ApprovedQuery{}, apperr.Storage("approve", err)
	}
	key := kv.Key{keyspace, userID, tableName, aq.CacheKey}
	if err := s.store.Set(ctx, key, data, 0); err != nil {
		return models.ApprovedQuery{}, apperr.Storage("approve", err)
	}
	s.log.Info("query approved",
		zap.String("user", userID),
		zap.String("table", tableName),
		zap.String("question", question),
	)
	return aq, nil
}

// List returns userID's approvals for tableName in store order.
func (s *Store) List(ctx context.Context, userID, tableName string) ([]models.ApprovedQuery, error) {
	if tableName == "" {
		return nil, apperr.Validation("table", "is required")
	}
	return s.scan(ctx, kv.Key{keyspace, userID, tableName})
}

// ListUser returns every approval userID made, across tables.
func (s *Store) ListUser(ctx context.Context, userID string) ([]models.ApprovedQuery, error) {
	return s.scan(ctx, kv.Key{keyspace, userID})
}

// Count returns the number of approvals across all users.
func (s *Store) Count(ctx context.Context) (int, error) {
	entries, err := s.store.List(ctx, kv.Key{keyspace})
	if err != nil {
		return 0, apperr.Storage("approval count", err)
	}
	return len(entries), nil
}

// FindSimilar ranks userID's approved questions against prompt by cosine
// similarity. An empty tableName searches all of the user's tables. Scores
// at or above threshold match, so a zero threshold admits every candidate.
// Zero topK uses DefaultTopK.
func (s *Store) FindSimilar(ctx context.Context, userID, tableName, prompt string, threshold float64, topK int) ([]similarity.Match, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, apperr.Validation("prompt", "is required")
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	prefix := kv.Key{keyspace, userID}
	if tableName != "" {
		prefix = append(prefix, tableName)
	}
	approved, err := s.scan(ctx, prefix)
	if err != nil {
		return nil, err
	}

	questions := make([]string, len(approved))
	for i, aq := range approved {
		questions[i] = aq.Question
	}
	return similarity.Rank(prompt, questions, threshold, topK), nil
}

func (s *Store) scan(ctx context.Context, prefix kv.Key) ([]models.ApprovedQuery, error) {
	entries, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, apperr.Storage("approval list", err)
	}
	out := make([]models.ApprovedQuery, 0, len(entries))
	for _, e := range entries {
		var aq models.ApprovedQuery
		if err := json.Unmarshal(e.Value, &aq); err != nil {
			s.log.Warn("skip undecodable approval", zap.Strings("key", e.Key), zap.Error(err))
			continue
		}
		out = append(out, aq)
	}
	return out, nil
}
