// Package kv defines the key-value persistence contract the query core is
// built on: key-path addressed values, optional per-key expiry, and ordered
// prefix scans.
package kv

import (
	"context"
	"net/url"
	"strings"
	"time"
)

// Key is a hierarchical key path such as ("approved_queries", user, table, cacheKey).
type Key []string

// Entry is a stored value returned by a scan.
type Entry struct {
	Key   Key
	Value []byte
	// ExpiresAt is zero for entries without a TTL.
	ExpiresAt time.Time
}

// Store is a durable map with prefix scans.
//
// Implementations guarantee atomic single-key reads and writes. List returns
// entries in the order their keys were first written; overwriting an existing
// key keeps its position. Expired entries are never returned.
type Store interface {
	// Get returns the value at key, or ok=false if absent or expired.
	Get(ctx context.Context, key Key) (value []byte, ok bool, err error)
	// Set upserts value at key. A ttl of zero means no expiry.
	Set(ctx context.Context, key Key, value []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error
	// List returns every live entry whose key path starts with prefix.
	List(ctx context.Context, prefix Key) ([]Entry, error)
	// Close releases resources.
	Close() error
}

// Sweeper is implemented by stores that keep expired rows until swept.
type Sweeper interface {
	// Sweep deletes expired entries and returns how many were removed.
	Sweep(ctx context.Context) (int64, error)
}

const sep = "/"

// Encode turns a key path into a flat string. Each part is path-escaped so
// the separator only ever appears between parts.
func Encode(key Key) string {
	parts := make([]string, len(key))
	for i, p := range key {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, sep)
}

// Decode reverses Encode.
func Decode(s string) (Key, error) {
	if s == "" {
		return Key{}, nil
	}
	raw := strings.Split(s, sep)
	key := make(Key, len(raw))
	for i, p := range raw {
		part, err := url.PathUnescape(p)
		if err != nil {
			return nil, err
		}
		key[i] = part
	}
	return key, nil
}

// HasPrefix reports whether key starts with every part of prefix.
func HasPrefix(key, prefix Key) bool {
	if len(prefix) > len(key) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}

// ExpiryFor returns the absolute expiry for a ttl relative to now, or the
// zero time when ttl is not positive.
func ExpiryFor(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
