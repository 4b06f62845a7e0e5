package core

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine(respond func(req FetchRequest) (*Page, error)) (*StrategyEngine, *fakeFetcher) {
	fetcher := &fakeFetcher{respond: respond}
	cache := NewCacheStore(newMapRepository(), DefaultCachePolicy(), zap.NewNop(), time.Now, 0)
	return NewStrategyEngine(fetcher, cache, zap.NewNop()), fetcher
}

func TestSearchExpression(t *testing.T) {
	assert.Equal(t, `openfda.generic_name:"metformin"`, SearchExpression("openfda.generic_name", " metformin "))
	assert.Equal(t, `brand_name:"say \"hi\""`, SearchExpression("brand_name", `say "hi"`))
	assert.Equal(t,
		`patient.drug.medicinalproduct:"aspirin" AND serious:1`,
		SearchExpression("patient.drug.medicinalproduct", "aspirin", seriousFilter))
}

func TestStrategiesPreferStandardizedFields(t *testing.T) {
	for _, category := range Categories {
		fields := strategyTable[category]
		require.NotEmpty(t, fields, category)
		assert.Contains(t, fields[0], "openfda.", category)
	}
}

func TestStrategyEngineSearch(t *testing.T) {
	ctx := context.Background()

	t.Run("stops at first non-empty candidate", func(t *testing.T) {
		found := pageOf(t, shortage("Tylenol", "Current", "01/02/2024", ""))
		engine, fetcher := newTestEngine(func(req FetchRequest) (*Page, error) {
			if fieldOf(req) == "openfda.brand_name" {
				return found, nil
			}
			return &Page{}, nil
		})

		result := engine.Search(ctx, SearchRequest{Category: CategoryShortage, DrugName: "Tylenol", Limit: 10})
		assert.True(t, result.Found())
		assert.Equal(t, "openfda.brand_name", result.StrategyUsed)
		assert.Equal(t, []string{"openfda.generic_name", "openfda.brand_name"}, result.Attempted)
		assert.Equal(t, 2, fetcher.CallCount())
		assert.Empty(t, result.Message())
	})

	t.Run("exhausted search is empty, not an error", func(t *testing.T) {
		engine, fetcher := newTestEngine(nil)

		result := engine.Search(ctx, SearchRequest{Category: CategoryShortage, DrugName: "unobtainium", Limit: 10})
		assert.False(t, result.Found())
		assert.False(t, result.AllFailed())
		assert.NoError(t, result.Err())
		assert.Equal(t, 4, fetcher.CallCount())
		assert.True(t, result.Page.Empty())
		assert.Contains(t, result.Message(), "strategies tried")
		assert.Contains(t, result.Message(), "proprietary_name")
	})

	t.Run("errors are recorded and the walk continues", func(t *testing.T) {
		found := pageOf(t, shortage("metformin", "Current", "01/02/2024", ""))
		engine, _ := newTestEngine(func(req FetchRequest) (*Page, error) {
			if fieldOf(req) == "openfda.generic_name" {
				return nil, &FetchError{Kind: KindUpstreamError, Status: 500, Message: "boom"}
			}
			return found, nil
		})

		result := engine.Search(ctx, SearchRequest{Category: CategoryShortage, DrugName: "metformin", Limit: 10})
		assert.True(t, result.Found())
		assert.Equal(t, "openfda.brand_name", result.StrategyUsed)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "openfda.generic_name")
		assert.NoError(t, result.Err())
	})

	t.Run("every candidate failing surfaces the first error", func(t *testing.T) {
		engine, fetcher := newTestEngine(func(req FetchRequest) (*Page, error) {
			return nil, &FetchError{Kind: KindRateLimited, Status: 429, Message: "slow down"}
		})

		result := engine.Search(ctx, SearchRequest{Category: CategoryRecall, DrugName: "aspirin", Limit: 5})
		assert.True(t, result.AllFailed())
		assert.Equal(t, 4, fetcher.CallCount())

		var fetchErr *FetchError
		require.ErrorAs(t, result.Err(), &fetchErr)
		assert.Equal(t, KindRateLimited, fetchErr.Kind)
	})

	t.Run("cancelled context stops the walk", func(t *testing.T) {
		engine, fetcher := newTestEngine(nil)
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		result := engine.Search(cctx, SearchRequest{Category: CategoryLabel, DrugName: "aspirin", Limit: 1})
		assert.True(t, result.AllFailed())
		assert.ErrorIs(t, result.Err(), context.Canceled)
		assert.Equal(t, 0, fetcher.CallCount())
	})

	t.Run("serious filter is appended to every candidate", func(t *testing.T) {
		engine, fetcher := newTestEngine(nil)

		engine.Search(ctx, SearchRequest{
			Category: CategorySeriousAdverseEvent,
			DrugName: "warfarin",
			Limit:    10,
			Filters:  []string{seriousFilter},
		})
		calls := fetcher.Calls()
		require.Len(t, calls, 4)
		for _, call := range calls {
			assert.Equal(t, EndpointEvents, call.Endpoint)
			assert.Contains(t, call.Search, " AND serious:1")
		}
	})

	t.Run("non-empty pages are cached per candidate", func(t *testing.T) {
		found := pageOf(t, shortage("metformin", "Current", "01/02/2024", ""))
		engine, fetcher := newTestEngine(func(req FetchRequest) (*Page, error) {
			return found, nil
		})

		req := SearchRequest{Category: CategoryShortage, DrugName: "Metformin", Limit: 10}
		first := engine.Search(ctx, req)
		req.DrugName = "metformin"
		second := engine.Search(ctx, req)

		assert.Equal(t, 1, fetcher.CallCount())
		assert.Equal(t, first.Page.Raw, second.Page.Raw)
	})

	t.Run("undecodable cache entries are removed", func(t *testing.T) {
		repo := newMapRepository()
		key := CacheKey(CategoryShortage, "openfda.generic_name", "metformin", 10)
		require.NoError(t, repo.Set(ctx, &CacheEntry{
			Key:      key,
			Category: CategoryShortage,
			Payload:  []byte("not json"),
			StoredAt: time.Now(),
		}))

		fetcher := &fakeFetcher{respond: func(req FetchRequest) (*Page, error) { return &Page{}, nil }}
		store := NewCacheStore(repo, DefaultCachePolicy(), zap.NewNop(), time.Now, 0)
		engine := NewStrategyEngine(fetcher, store, zap.NewNop())

		result := engine.Search(ctx, SearchRequest{Category: CategoryShortage, DrugName: "metformin", Limit: 10})
		assert.True(t, result.Page.Empty())
		assert.Equal(t, len(strategyTable[CategoryShortage]), fetcher.CallCount())
		assert.Equal(t, 0, repo.Len())
	})
}
