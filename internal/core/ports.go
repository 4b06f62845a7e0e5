package core

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrCacheMiss is returned by cache repositories when no entry exists for a key
var ErrCacheMiss = errors.New("cache entry not found")

// FetchRequest describes one upstream query
type FetchRequest struct {
	Endpoint Endpoint
	Search   string
	Limit    int
}

// Page is a decoded openFDA response envelope. Raw holds the body exactly as
// received so cached payloads are returned byte for byte.
type Page struct {
	Raw     []byte
	Total   int
	Results []json.RawMessage
}

// Empty reports whether the page carries no result records
func (p *Page) Empty() bool {
	return p == nil || len(p.Results) == 0
}

// Fetcher performs upstream calls against openFDA
type Fetcher interface {
	// Fetch runs one search. A "no matches" response is an empty page, not an error.
	Fetch(ctx context.Context, req FetchRequest) (*Page, error)
}

// CacheRepository defines the storage backend behind the cache store
type CacheRepository interface {
	// Get retrieves an entry by key, returning ErrCacheMiss when absent
	Get(ctx context.Context, key string) (*CacheEntry, error)

	// Set stores or replaces an entry
	Set(ctx context.Context, entry *CacheEntry) error

	// Delete removes an entry
	Delete(ctx context.Context, key string) error

	// DeleteStoredBefore removes the category's entries stored before cutoff
	DeleteStoredBefore(ctx context.Context, category Category, cutoff time.Time) (int, error)

	// Flush removes every entry
	Flush(ctx context.Context) (int, error)

	// CountByCategory reports the number of stored entries per category
	CountByCategory(ctx context.Context) (map[Category]int, error)
}
