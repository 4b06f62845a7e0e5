package core

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mikey/openfda-engine/internal/utils"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeFetcher struct {
	mu      sync.Mutex
	calls   []FetchRequest
	respond func(req FetchRequest) (*Page, error)
}

func (f *fakeFetcher) Fetch(_ context.Context, req FetchRequest) (*Page, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.respond == nil {
		return &Page{}, nil
	}
	return f.respond(req)
}

func (f *fakeFetcher) Calls() []FetchRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FetchRequest(nil), f.calls...)
}

func (f *fakeFetcher) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fieldOf returns the field a search expression was built for
func fieldOf(req FetchRequest) string {
	field, _, _ := strings.Cut(req.Search, ":\"")
	return field
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock(now time.Time) *testClock {
	return &testClock{now: now}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type mapRepository struct {
	mu      sync.Mutex
	entries map[string]*CacheEntry
	gets    int
}

func newMapRepository() *mapRepository {
	return &mapRepository{entries: map[string]*CacheEntry{}}
}

func (r *mapRepository) Get(_ context.Context, key string) (*CacheEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gets++
	entry, ok := r.entries[key]
	if !ok {
		return nil, ErrCacheMiss
	}
	return entry, nil
}

func (r *mapRepository) Set(_ context.Context, entry *CacheEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.Key] = entry
	return nil
}

func (r *mapRepository) Delete(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
	return nil
}

func (r *mapRepository) DeleteStoredBefore(_ context.Context, category Category, cutoff time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for key, entry := range r.entries {
		if entry.Category == category && entry.StoredAt.Before(cutoff) {
			delete(r.entries, key)
			n++
		}
	}
	return n, nil
}

func (r *mapRepository) Flush(_ context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entries)
	r.entries = map[string]*CacheEntry{}
	return n, nil
}

func (r *mapRepository) CountByCategory(_ context.Context) (map[Category]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[Category]int{}
	for _, entry := range r.entries {
		counts[entry.Category]++
	}
	return counts, nil
}

func (r *mapRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// pageOf builds an openFDA response page holding the given records
func pageOf(t *testing.T, records ...map[string]any) *Page {
	t.Helper()
	if records == nil {
		records = []map[string]any{}
	}
	body := map[string]any{
		"meta":    map[string]any{"results": map[string]any{"skip": 0, "limit": len(records), "total": len(records)}},
		"results": records,
	}
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	page, err := DecodePage(raw)
	require.NoError(t, err)
	return page
}

func shortage(name, status, start, update string) map[string]any {
	return map[string]any{
		"generic_name":         name,
		"status":               status,
		"initial_posting_date": start,
		"update_date":          update,
		"shortage_reason":      "Demand increase for the drug",
		"company_name":         "Acme Pharma",
	}
}

type testEnv struct {
	fetcher *fakeFetcher
	repo    *mapRepository
	clock   *testClock
	cache   *CacheStore
	service *DrugDataService
}

func newTestEnv(t *testing.T, respond func(req FetchRequest) (*Page, error), opts ServiceOptions) *testEnv {
	t.Helper()
	logger := zap.NewNop()
	env := &testEnv{
		fetcher: &fakeFetcher{respond: respond},
		repo:    newMapRepository(),
		clock:   newTestClock(time.Date(2024, time.December, 31, 12, 0, 0, 0, time.UTC)),
	}
	env.cache = NewCacheStore(env.repo, DefaultCachePolicy(), logger, env.clock.Now, 0)
	opts.Now = env.clock.Now
	env.service = NewDrugDataService(env.fetcher, env.cache, utils.NewTextProcessor(logger), logger, opts)
	return env
}
