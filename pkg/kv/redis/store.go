// Package redis implements kv.Store on Redis so several gata instances can
// share one cache and approval store.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/datagata/gata/pkg/kv"
)

// Options configures the connection.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Namespace prefixes every Redis key this store touches.
	Namespace string
}

// Store keeps each value under its own Redis key and tracks first-write
// order in a sorted set so prefix scans come back in insertion order.
type Store struct {
	client *redis.Client
	ns     string
	log    *zap.Logger
}

var _ kv.Store = (*Store)(nil)

// New connects to Redis and verifies the connection with PING.
func New(ctx context.Context, opts Options, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}
	ns := opts.Namespace
	if ns == "" {
		ns = "gata"
	}
	log.Info("redis store initialized", zap.String("addr", opts.Addr), zap.String("namespace", ns))
	return &Store{client: client, ns: ns, log: log}, nil
}

func (s *Store) valueKey(enc string) string { return s.ns + ":v:" + enc }
func (s *Store) indexKey() string          { return s.ns + ":index" }
func (s *Store) seqKey() string            { return s.ns + ":seq" }

// Get implements kv.Store.
func (s *Store) Get(ctx context.Context, key kv.Key) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, s.valueKey(kv.Encode(key))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return data, true, nil
}

// Set implements kv.Store.
func (s *Store) Set(ctx context.Context, key kv.Key, value []byte, ttl time.Duration) error {
	enc := kv.Encode(key)
	seq, err := s.client.Incr(ctx, s.seqKey()).Result()
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	if ttl < 0 {
		ttl = 0
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAddNX(ctx, s.indexKey(), redis.Z{Score: float64(seq), Member: enc})
		pipe.Set(ctx, s.valueKey(enc), value, ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete implements kv.Store.
func (s *Store) Delete(ctx context.Context, key kv.Key) error {
	enc := kv.Encode(key)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.valueKey(enc))
		pipe.ZRem(ctx, s.indexKey(), enc)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// List implements kv.Store. Index members whose value has expired are
// pruned as a side effect.
func (s *Store) List(ctx context.Context, prefix kv.Key) ([]kv.Entry, error) {
	members, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list: %w", err)
	}

	var want []string
	if len(prefix) == 0 {
		want = members
	} else {
		p := kv.Encode(prefix) + "/"
		for _, m := range members {
			if strings.HasPrefix(m, p) {
				want = append(want, m)
			}
		}
	}
	if len(want) == 0 {
		return nil, nil
	}

	gets := make([]*redis.StringCmd, len(want))
	ttls := make([]*redis.DurationCmd, len(want))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, m := range want {
			gets[i] = pipe.Get(ctx, s.valueKey(m))
			ttls[i] = pipe.PTTL(ctx, s.valueKey(m))
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis list: %w", err)
	}

	now := time.Now()
	var stale []any
	entries := make([]kv.Entry, 0, len(want))
	for i, m := range want {
		data, err := gets[i].Bytes()
		if errors.Is(err, redis.Nil) {
			stale = append(stale, m)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis list get: %w", err)
		}
		key, err := kv.Decode(m)
		if err != nil {
			return nil, fmt.Errorf("redis list decode %q: %w", m, err)
		}
		e := kv.Entry{Key: key, Value: data}
		if ttl := ttls[i].Val(); ttl > 0 {
			e.ExpiresAt = now.Add(ttl)
		}
		entries = append(entries, e)
	}

	if len(stale) > 0 {
		if err := s.client.ZRem(ctx, s.indexKey(), stale...).Err(); err != nil {
			s.log.Warn("prune redis index", zap.Error(err))
		}
	}
	return entries, nil
}

// Close implements kv.Store.
func (s *Store) Close() error {
	return s.client.Close()
}
