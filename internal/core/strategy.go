package core

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// strategyTable is the ordered list of search fields tried for each category.
// Standardized openfda.* fields come first; the first non-empty result wins.
var strategyTable = map[Category][]string{
	CategoryShortage: {
		"openfda.generic_name",
		"openfda.brand_name",
		"generic_name",
		"proprietary_name",
	},
	CategoryLabel: {
		"openfda.generic_name",
		"openfda.brand_name",
		"generic_name",
		"brand_name",
	},
	CategoryRecall: {
		"openfda.generic_name",
		"openfda.brand_name",
		"generic_name",
		"brand_name",
	},
	CategoryAdverseEvent:        eventStrategies,
	CategorySeriousAdverseEvent: eventStrategies,
}

var eventStrategies = []string{
	"patient.drug.openfda.generic_name",
	"patient.drug.openfda.brand_name",
	"patient.drug.medicinalproduct",
	"patient.drug.activesubstance.activesubstancename",
}

// seriousFilter restricts FAERS searches to serious reports
const seriousFilter = "serious:1"

// SearchExpression builds an openFDA search expression matching value in field
func SearchExpression(field, value string, filters ...string) string {
	escaped := strings.ReplaceAll(strings.TrimSpace(value), `"`, `\"`)
	expr := fmt.Sprintf(`%s:"%s"`, field, escaped)
	for _, f := range filters {
		expr += " AND " + f
	}
	return expr
}

// SearchRequest describes one logical drug search
type SearchRequest struct {
	Category Category
	DrugName string
	Limit    int
	Filters  []string
}

// SearchResult is the outcome of walking a strategy list
type SearchResult struct {
	Category     Category
	DrugName     string
	Page         *Page
	StrategyUsed string
	Attempted    []string
	Errors       []string

	failures []error
}

// Found reports whether any candidate produced records
func (r *SearchResult) Found() bool {
	return r.StrategyUsed != "" && !r.Page.Empty()
}

// AllFailed reports whether every attempted candidate ended in an upstream
// error, as opposed to cleanly reporting no matches.
func (r *SearchResult) AllFailed() bool {
	return !r.Found() && len(r.failures) > 0 && len(r.failures) == len(r.Attempted)
}

// Err returns the first candidate failure when AllFailed, nil otherwise
func (r *SearchResult) Err() error {
	if !r.AllFailed() {
		return nil
	}
	return r.failures[0]
}

// Message describes an exhausted search for callers
func (r *SearchResult) Message() string {
	if r.Found() {
		return ""
	}
	return fmt.Sprintf("No %s data found for %q, strategies tried: %s",
		strings.ReplaceAll(string(r.Category), "_", " "), r.DrugName, strings.Join(r.Attempted, ", "))
}

// StrategyEngine walks ordered search candidates through the cache store and fetcher
type StrategyEngine struct {
	fetcher Fetcher
	cache   *CacheStore
	logger  *zap.Logger
}

// NewStrategyEngine creates a new strategy engine
func NewStrategyEngine(fetcher Fetcher, cache *CacheStore, logger *zap.Logger) *StrategyEngine {
	return &StrategyEngine{
		fetcher: fetcher,
		cache:   cache,
		logger:  logger,
	}
}

// Search tries the category's strategy list in order
func (e *StrategyEngine) Search(ctx context.Context, req SearchRequest) *SearchResult {
	return e.SearchFields(ctx, req, strategyTable[req.Category])
}

// SearchFields tries the given fields in order and stops at the first
// candidate returning at least one record. Upstream errors are recorded and
// the walk continues; only context cancellation stops it early.
func (e *StrategyEngine) SearchFields(ctx context.Context, req SearchRequest, fields []string) *SearchResult {
	result := &SearchResult{Category: req.Category, DrugName: req.DrugName}

	for _, field := range fields {
		if err := ctx.Err(); err != nil {
			result.Attempted = append(result.Attempted, field)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", field, err))
			result.failures = append(result.failures, err)
			break
		}

		result.Attempted = append(result.Attempted, field)
		page, err := e.fetchCandidate(ctx, req, field)
		if err != nil {
			e.logger.Warn("Search strategy failed",
				zap.String("category", string(req.Category)),
				zap.String("drug", req.DrugName),
				zap.String("field", field),
				zap.Error(err))
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", field, err))
			result.failures = append(result.failures, err)
			continue
		}

		if page.Empty() {
			e.logger.Debug("Search strategy returned no results",
				zap.String("category", string(req.Category)),
				zap.String("drug", req.DrugName),
				zap.String("field", field))
			continue
		}

		result.Page = page
		result.StrategyUsed = field
		return result
	}

	result.Page = &Page{}
	return result
}

func (e *StrategyEngine) fetchCandidate(ctx context.Context, req SearchRequest, field string) (*Page, error) {
	key := CacheKey(req.Category, field, req.DrugName, req.Limit, req.Filters...)

	if raw, ok := e.cache.Get(ctx, req.Category, key); ok {
		page, err := DecodePage(raw)
		if err == nil {
			return page, nil
		}
		e.logger.Warn("Discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		e.cache.Invalidate(ctx, key)
	}

	page, err := e.fetcher.Fetch(ctx, FetchRequest{
		Endpoint: req.Category.Endpoint(),
		Search:   SearchExpression(field, req.DrugName, req.Filters...),
		Limit:    req.Limit,
	})
	if err != nil {
		return nil, err
	}

	if !page.Empty() {
		e.cache.Put(ctx, req.Category, key, page.Raw)
	}
	return page, nil
}
