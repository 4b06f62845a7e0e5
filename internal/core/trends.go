package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Frequency thresholds in shortage events per month. A rate strictly above
// the high threshold is High, strictly above the moderate one is Moderate.
const (
	DefaultHighFrequencyThreshold     = 0.5
	DefaultModerateFrequencyThreshold = 0.2
	DefaultTrendFetchLimit            = 100
)

// Trend status messages
const (
	TrendStatusNone     = "no current or historical shortages in window"
	TrendStatusActive   = "active shortage in window"
	TrendStatusResolved = "historical shortages in window, none active"
)

// TrendThresholds configures frequency classification
type TrendThresholds struct {
	High     float64
	Moderate float64
}

// DefaultTrendThresholds returns the reference thresholds
func DefaultTrendThresholds() TrendThresholds {
	return TrendThresholds{High: DefaultHighFrequencyThreshold, Moderate: DefaultModerateFrequencyThreshold}
}

// ClassifyFrequency buckets an events-per-month rate
func ClassifyFrequency(eventsPerMonth float64, t TrendThresholds) FrequencyClass {
	switch {
	case eventsPerMonth > t.High:
		return FrequencyHigh
	case eventsPerMonth > t.Moderate:
		return FrequencyModerate
	default:
		return FrequencyLow
	}
}

// durationDays is the whole number of days a shortage lasted, counting open
// shortages up to now.
func durationDays(r ShortageRecord, now time.Time) int {
	end := now
	if r.EndDate != nil {
		end = *r.EndDate
	}
	if end.Before(r.StartDate) {
		return 0
	}
	return int(end.Sub(r.StartDate).Hours() / 24)
}

// inWindow reports whether the record's active period overlaps [windowStart, now]
func inWindow(r ShortageRecord, windowStart, now time.Time) bool {
	if r.StartDate.IsZero() || r.StartDate.After(now) {
		return false
	}
	return r.EndDate == nil || !r.EndDate.Before(windowStart)
}

// SummarizeTrends computes a TrendSummary from shortage records
func SummarizeTrends(drugName string, records []ShortageRecord, monthsBack int, now time.Time, t TrendThresholds) *TrendSummary {
	windowStart := now.AddDate(0, -monthsBack, 0)

	timeline := make([]ShortageRecord, 0, len(records))
	for _, r := range records {
		if inWindow(r, windowStart, now) {
			timeline = append(timeline, r)
		}
	}
	sort.SliceStable(timeline, func(i, j int) bool {
		return timeline[i].StartDate.Before(timeline[j].StartDate)
	})

	summary := &TrendSummary{
		DrugName:     drugName,
		WindowMonths: monthsBack,
		WindowStart:  windowStart,
		WindowEnd:    now,
		TotalEvents:  len(timeline),
		Timeline:     timeline,
	}

	for _, r := range timeline {
		summary.TotalDurationDays += durationDays(r, now)
		if r.IsActive() {
			summary.ActiveEvents++
		}
	}

	if summary.TotalEvents > 0 {
		summary.AverageDurationDays = float64(summary.TotalDurationDays) / float64(summary.TotalEvents)
	}
	if monthsBack > 0 {
		summary.EventsPerMonth = float64(summary.TotalEvents) / float64(monthsBack)
	}
	summary.FrequencyClass = ClassifyFrequency(summary.EventsPerMonth, t)

	switch {
	case summary.TotalEvents == 0:
		summary.Status = TrendStatusNone
	case summary.ActiveEvents > 0:
		summary.Status = TrendStatusActive
	default:
		summary.Status = TrendStatusResolved
	}

	return summary
}

// TrendAnalyzer computes shortage trends for a single drug
type TrendAnalyzer struct {
	engine     *StrategyEngine
	logger     *zap.Logger
	now        func() time.Time
	thresholds TrendThresholds
	fetchLimit int
}

// NewTrendAnalyzer creates a new trend analyzer
func NewTrendAnalyzer(
	engine *StrategyEngine,
	logger *zap.Logger,
	now func() time.Time,
	thresholds TrendThresholds,
	fetchLimit int,
) *TrendAnalyzer {
	if now == nil {
		now = time.Now
	}
	if fetchLimit <= 0 {
		fetchLimit = DefaultTrendFetchLimit
	}
	return &TrendAnalyzer{
		engine:     engine,
		logger:     logger,
		now:        now,
		thresholds: thresholds,
		fetchLimit: fetchLimit,
	}
}

// Analyze fetches the drug's shortage history and summarizes the last monthsBack months
func (a *TrendAnalyzer) Analyze(ctx context.Context, drugName string, monthsBack int) (*TrendSummary, error) {
	if verr := ValidateDrugName(drugName, "shortage trends"); verr != nil {
		return nil, verr
	}
	if verr := ValidateMonthsBack(monthsBack, "shortage trends"); verr != nil {
		return nil, verr
	}
	drugName = strings.TrimSpace(drugName)

	search := a.engine.Search(ctx, SearchRequest{
		Category: CategoryShortage,
		DrugName: drugName,
		Limit:    a.fetchLimit,
	})
	if err := search.Err(); err != nil {
		return nil, err
	}

	records, err := DecodeShortages(search.Page)
	if err != nil {
		return nil, err
	}

	summary := SummarizeTrends(drugName, records, monthsBack, a.now(), a.thresholds)
	summary.StrategyUsed = search.StrategyUsed

	a.logger.Debug("Computed shortage trends",
		zap.String("drug", drugName),
		zap.Int("months_back", monthsBack),
		zap.Int("events", summary.TotalEvents),
		zap.String("frequency", string(summary.FrequencyClass)))

	return summary, nil
}
