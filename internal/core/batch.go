package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const opBatchAnalyze = "batchAnalyze"

// Batch defaults
const (
	DefaultBatchConcurrency   = 4
	DefaultBatchShortageLimit = 10
	DefaultBatchTrendMonths   = 12
)

// BatchOptions configures the batch orchestrator
type BatchOptions struct {
	Concurrency   int
	ShortageLimit int
	TrendMonths   int
}

func (o BatchOptions) withDefaults() BatchOptions {
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultBatchConcurrency
	}
	if o.ShortageLimit <= 0 {
		o.ShortageLimit = DefaultBatchShortageLimit
	}
	if o.TrendMonths <= 0 {
		o.TrendMonths = DefaultBatchTrendMonths
	}
	return o
}

// BatchOrchestrator runs the single-drug pipeline over a bounded list of drugs
type BatchOrchestrator struct {
	engine *StrategyEngine
	trends *TrendAnalyzer
	logger *zap.Logger
	now    func() time.Time
	opts   BatchOptions
}

// NewBatchOrchestrator creates a new batch orchestrator
func NewBatchOrchestrator(
	engine *StrategyEngine,
	trends *TrendAnalyzer,
	logger *zap.Logger,
	now func() time.Time,
	opts BatchOptions,
) *BatchOrchestrator {
	if now == nil {
		now = time.Now
	}
	return &BatchOrchestrator{
		engine: engine,
		trends: trends,
		logger: logger,
		now:    now,
		opts:   opts.withDefaults(),
	}
}

// Analyze processes every drug with failure isolation. The list size is
// validated before any work starts; afterwards the call itself never fails
// and each item carries its own outcome, in input order.
func (b *BatchOrchestrator) Analyze(ctx context.Context, names []string, includeTrends bool) (*BatchResult, error) {
	if verr := ValidateDrugList(names, "batch analysis"); verr != nil {
		return nil, verr
	}

	result := &BatchResult{
		BatchID:        uuid.NewString(),
		TotalRequested: len(names),
		IncludeTrends:  includeTrends,
		Items:          make([]BatchItem, len(names)),
	}

	workers := b.opts.Concurrency
	if workers > len(names) {
		workers = len(names)
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			result.Items[i] = b.analyzeOne(ctx, name, includeTrends)
			return nil
		})
	}
	_ = g.Wait()

	for _, item := range result.Items {
		if !item.Success {
			result.Summary.Failed++
			continue
		}
		result.Summary.Succeeded++
		if item.Result.HasActiveShortage {
			result.Summary.WithActiveShortages++
		}
		if item.Result.ShortageCount == 0 {
			result.Summary.WithoutShortageData++
		}
		if item.Result.Trend != nil && item.Result.Trend.FrequencyClass == FrequencyHigh {
			result.Summary.HighFrequency++
		}
	}
	result.AnalyzedAt = b.now()

	b.logger.Info("Batch analysis complete",
		zap.String("batch_id", result.BatchID),
		zap.Int("requested", result.TotalRequested),
		zap.Int("succeeded", result.Summary.Succeeded),
		zap.Int("failed", result.Summary.Failed),
		zap.Int("workers", workers))

	return result, nil
}

func (b *BatchOrchestrator) analyzeOne(ctx context.Context, name string, includeTrends bool) (item BatchItem) {
	item.DrugName = name

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Batch item panicked", zap.String("drug", name), zap.Any("panic", r))
			item.Success = false
			item.Result = nil
			item.Error = Describe(wrapOp(opBatchAnalyze, name, fmt.Errorf("internal error: %v", r)))
		}
	}()

	fail := func(err error) BatchItem {
		item.Error = Describe(wrapOp(opBatchAnalyze, name, err))
		return item
	}

	if verr := ValidateDrugName(name, "batch analysis"); verr != nil {
		return fail(verr)
	}
	name = strings.TrimSpace(name)

	search := b.engine.Search(ctx, SearchRequest{
		Category: CategoryShortage,
		DrugName: name,
		Limit:    b.opts.ShortageLimit,
	})
	if err := search.Err(); err != nil {
		return fail(err)
	}

	records, err := DecodeShortages(search.Page)
	if err != nil {
		return fail(err)
	}

	payload := &BatchDrugPayload{
		ShortageCount: len(records),
		Shortages:     records,
		StrategyUsed:  search.StrategyUsed,
	}
	for _, r := range records {
		if r.IsActive() {
			payload.HasActiveShortage = true
			break
		}
	}

	if includeTrends {
		trend, err := b.trends.Analyze(ctx, name, b.opts.TrendMonths)
		if err != nil {
			return fail(err)
		}
		payload.Trend = trend
	}

	item.Success = true
	item.Result = payload
	return item
}
