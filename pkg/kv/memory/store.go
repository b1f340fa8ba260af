// Package memory implements an in-process kv.Store for tests and
// single-node development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/datagata/gata/pkg/kv"
)

type item struct {
	key       kv.Key
	value     []byte
	expiresAt time.Time
	seq       uint64
}

// Store is a mutex-guarded map that remembers first-write order.
type Store struct {
	mu    sync.RWMutex
	items map[string]*item
	seq   uint64
	now   func() time.Time
}

var (
	_ kv.Store   = (*Store)(nil)
	_ kv.Sweeper = (*Store)(nil)
)

// New returns an empty Store.
func New() *Store {
	return &Store{items: make(map[string]*item), now: time.Now}
}

func (it *item) live(now time.Time) bool {
	return it.expiresAt.IsZero() || now.Before(it.expiresAt)
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}

// Get implements kv.Store.
func (s *Store) Get(_ context.Context, key kv.Key) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[kv.Encode(key)]
	if !ok || !it.live(s.now()) {
		return nil, false, nil
	}
	return clone(it.value), true, nil
}

// Set implements kv.Store.
func (s *Store) Set(_ context.Context, key kv.Key, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	enc := kv.Encode(key)
	exp := kv.ExpiryFor(s.now(), ttl)
	if it, ok := s.items[enc]; ok {
		it.value = clone(value)
		it.expiresAt = exp
		return nil
	}
	s.seq++
	s.items[enc] = &item{
		key:       append(kv.Key(nil), key...),
		value:     clone(value),
		expiresAt: exp,
		seq:       s.seq,
	}
	return nil
}

// Delete implements kv.Store.
func (s *Store) Delete(_ context.Context, key kv.Key) error {
	s.mu.Lock()
	delete(s.items, kv.Encode(key))
	s.mu.Unlock()
	return nil
}

// List implements kv.Store.
func (s *Store) List(_ context.Context, prefix kv.Key) ([]kv.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.now()
	matched := make([]*item, 0, len(s.items))
	for _, it := range s.items {
		if it.live(now) && kv.HasPrefix(it.key, prefix) {
			matched = append(matched, it)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].seq < matched[j].seq })

	entries := make([]kv.Entry, len(matched))
	for i, it := range matched {
		entries[i] = kv.Entry{
			Key:       append(kv.Key(nil), it.key...),
			Value:     clone(it.value),
			ExpiresAt: it.expiresAt,
		}
	}
	return entries, nil
}

// Sweep implements kv.Sweeper.
func (s *Store) Sweep(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var n int64
	for k, it := range s.items {
		if !it.live(now) {
			delete(s.items, k)
			n++
		}
	}
	return n, nil
}

// Close implements kv.Store.
func (s *Store) Close() error { return nil }
