package core

import (
	"context"
	"strings"
	"time"

	"github.com/mikey/openfda-engine/internal/utils"
	"go.uber.org/zap"
)

// Operation names exposed to frontends
const (
	OpSearchShortages            = "searchShortages"
	OpSearchAdverseEvents        = "searchAdverseEvents"
	OpSearchSeriousAdverseEvents = "searchSeriousAdverseEvents"
	OpSearchRecalls              = "searchRecalls"
	OpGetLabelInfo               = "getLabelInfo"
	OpGetMedicationProfile       = "getMedicationProfile"
	OpAnalyzeTrends              = "analyzeTrends"
	OpBatchAnalyze               = opBatchAnalyze
	OpCacheStats                 = "cacheStats"
)

// DefaultLabelMaxSectionSize bounds each label section returned to callers
const DefaultLabelMaxSectionSize = 4096

// ServiceOptions configures the drug data service
type ServiceOptions struct {
	Batch               BatchOptions
	Thresholds          TrendThresholds
	TrendFetchLimit     int
	LabelMaxSectionSize int
	Now                 func() time.Time
}

// DrugDataService is the core service exposing the query operations
type DrugDataService struct {
	engine         *StrategyEngine
	cache          *CacheStore
	trends         *TrendAnalyzer
	batch          *BatchOrchestrator
	textProcessor  *utils.TextProcessor
	logger         *zap.Logger
	maxSectionSize int
}

// NewDrugDataService creates a new drug data service
func NewDrugDataService(
	fetcher Fetcher,
	cache *CacheStore,
	textProcessor *utils.TextProcessor,
	logger *zap.Logger,
	opts ServiceOptions,
) *DrugDataService {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Thresholds == (TrendThresholds{}) {
		opts.Thresholds = DefaultTrendThresholds()
	}
	if opts.LabelMaxSectionSize == 0 {
		opts.LabelMaxSectionSize = DefaultLabelMaxSectionSize
	}

	engine := NewStrategyEngine(fetcher, cache, logger)
	trends := NewTrendAnalyzer(engine, logger, opts.Now, opts.Thresholds, opts.TrendFetchLimit)

	return &DrugDataService{
		engine:         engine,
		cache:          cache,
		trends:         trends,
		batch:          NewBatchOrchestrator(engine, trends, logger, opts.Now, opts.Batch),
		textProcessor:  textProcessor,
		logger:         logger,
		maxSectionSize: opts.LabelMaxSectionSize,
	}
}

// SearchShortages looks up shortage records for a drug
func (s *DrugDataService) SearchShortages(ctx context.Context, drugName string, limit int) (*ShortageSearchResult, error) {
	if err := validateSearch(drugName, limit, "shortages"); err != nil {
		return nil, wrapOp(OpSearchShortages, drugName, err)
	}
	drugName = strings.TrimSpace(drugName)

	search := s.engine.Search(ctx, SearchRequest{Category: CategoryShortage, DrugName: drugName, Limit: limit})
	if err := search.Err(); err != nil {
		return nil, wrapOp(OpSearchShortages, drugName, err)
	}

	records, err := DecodeShortages(search.Page)
	if err != nil {
		return nil, wrapOp(OpSearchShortages, drugName, err)
	}

	result := &ShortageSearchResult{
		DrugName:       drugName,
		Count:          len(records),
		TotalAvailable: search.Page.Total,
		Records:        records,
		StrategyUsed:   search.StrategyUsed,
		Message:        search.Message(),
		StrategyErrors: search.Errors,
	}
	for _, r := range records {
		if r.IsActive() {
			result.HasActiveShortage = true
			break
		}
	}
	return result, nil
}

// SearchRecalls looks up enforcement records for a drug. Recall data is never cached.
func (s *DrugDataService) SearchRecalls(ctx context.Context, drugName string, limit int) (*RecallSearchResult, error) {
	if err := validateSearch(drugName, limit, "recalls"); err != nil {
		return nil, wrapOp(OpSearchRecalls, drugName, err)
	}
	drugName = strings.TrimSpace(drugName)

	search := s.engine.Search(ctx, SearchRequest{Category: CategoryRecall, DrugName: drugName, Limit: limit})
	if err := search.Err(); err != nil {
		return nil, wrapOp(OpSearchRecalls, drugName, err)
	}

	records, err := DecodeRecalls(search.Page)
	if err != nil {
		return nil, wrapOp(OpSearchRecalls, drugName, err)
	}

	byClass, byStatus := countRecalls(records)
	return &RecallSearchResult{
		DrugName:         drugName,
		Count:            len(records),
		TotalAvailable:   search.Page.Total,
		Records:          records,
		ByClassification: byClass,
		ByStatus:         byStatus,
		StrategyUsed:     search.StrategyUsed,
		Message:          search.Message(),
		StrategyErrors:   search.Errors,
	}, nil
}

// SearchAdverseEvents looks up FAERS reports for a drug
func (s *DrugDataService) SearchAdverseEvents(ctx context.Context, drugName string, limit int, detailed bool) (*AdverseEventResult, error) {
	return s.searchEvents(ctx, OpSearchAdverseEvents, CategoryAdverseEvent, drugName, limit, detailed)
}

// SearchSeriousAdverseEvents looks up serious FAERS reports for a drug. Serious event data is never cached.
func (s *DrugDataService) SearchSeriousAdverseEvents(ctx context.Context, drugName string, limit int, detailed bool) (*AdverseEventResult, error) {
	return s.searchEvents(ctx, OpSearchSeriousAdverseEvents, CategorySeriousAdverseEvent, drugName, limit, detailed)
}

func (s *DrugDataService) searchEvents(
	ctx context.Context,
	op string,
	category Category,
	drugName string,
	limit int,
	detailed bool,
) (*AdverseEventResult, error) {
	serious := category == CategorySeriousAdverseEvent
	subject := "adverse events"
	if serious {
		subject = "serious adverse events"
	}
	if err := validateSearch(drugName, limit, subject); err != nil {
		return nil, wrapOp(op, drugName, err)
	}
	drugName = strings.TrimSpace(drugName)

	req := SearchRequest{Category: category, DrugName: drugName, Limit: limit}
	if serious {
		req.Filters = []string{seriousFilter}
	}
	search := s.engine.Search(ctx, req)
	if err := search.Err(); err != nil {
		return nil, wrapOp(op, drugName, err)
	}

	records, err := DecodeEvents(search.Page)
	if err != nil {
		return nil, wrapOp(op, drugName, err)
	}

	result := &AdverseEventResult{
		DrugName:       drugName,
		SeriousOnly:    serious,
		Detailed:       detailed,
		Count:          len(records),
		TotalAvailable: search.Page.Total,
		StrategyUsed:   search.StrategyUsed,
		Message:        search.Message(),
		StrategyErrors: search.Errors,
	}
	if detailed {
		result.Reports = records
	} else {
		result.Summary = SummarizeEvents(records)
	}
	return result, nil
}

// GetLabelInfo returns the structured product label for a drug. With an
// explicit identifier type only that field is searched; without one the
// label strategy list is walked.
func (s *DrugDataService) GetLabelInfo(ctx context.Context, identifier, identifierType string) (*LabelResult, error) {
	if verr := ValidateDrugName(identifier, "label information"); verr != nil {
		return nil, wrapOp(OpGetLabelInfo, identifier, verr)
	}
	identifier = strings.TrimSpace(identifier)

	result, err := s.lookupLabel(ctx, identifier, identifierType)
	if err != nil {
		return nil, wrapOp(OpGetLabelInfo, identifier, err)
	}
	return result, nil
}

func (s *DrugDataService) lookupLabel(ctx context.Context, identifier, identifierType string) (*LabelResult, error) {
	req := SearchRequest{Category: CategoryLabel, DrugName: identifier, Limit: 1}

	var search *SearchResult
	if strings.TrimSpace(identifierType) == "" {
		identifierType = DefaultIdentifierType
		search = s.engine.Search(ctx, req)
	} else {
		identifierType = NormalizeIdentifierType(identifierType)
		search = s.engine.SearchFields(ctx, req, []string{identifierType})
	}
	if err := search.Err(); err != nil {
		return nil, err
	}

	result := &LabelResult{
		Identifier:     identifier,
		IdentifierType: identifierType,
		StrategyUsed:   search.StrategyUsed,
		Message:        search.Message(),
		StrategyErrors: search.Errors,
	}

	labels, err := DecodeLabels(search.Page)
	if err != nil {
		return nil, err
	}
	if len(labels) > 0 {
		label := s.trimLabel(labels[0])
		result.Label = &label
		result.Found = true
	}
	return result, nil
}

func (s *DrugDataService) trimLabel(l LabelRecord) LabelRecord {
	for _, section := range []*string{
		&l.BoxedWarning, &l.Indications, &l.Dosage, &l.Contraindications, &l.Warnings,
		&l.AdverseReactions, &l.DrugInteractions, &l.Pregnancy, &l.HowSupplied,
	} {
		*section = s.textProcessor.ProcessText(*section, s.maxSectionSize)
	}
	return l
}

// GetMedicationProfile combines label information with shortage status. A
// failure in one half is reported in Errors; only when both halves fail does
// the call itself fail.
func (s *DrugDataService) GetMedicationProfile(ctx context.Context, identifier, identifierType string) (*MedicationProfile, error) {
	if verr := ValidateDrugName(identifier, "medication profile"); verr != nil {
		return nil, wrapOp(OpGetMedicationProfile, identifier, verr)
	}
	identifier = strings.TrimSpace(identifier)

	profile := &MedicationProfile{
		Identifier:     identifier,
		IdentifierType: NormalizeIdentifierType(identifierType),
		ShortageQuery:  identifier,
		Shortages:      []ShortageRecord{},
	}

	label, labelErr := s.lookupLabel(ctx, identifier, identifierType)
	if labelErr != nil {
		profile.Errors = append(profile.Errors, "label: "+labelErr.Error())
	} else if label.Found {
		profile.Label = label.Label
		if len(label.Label.GenericNames) > 0 {
			profile.ShortageQuery = label.Label.GenericNames[0]
		}
	}

	search := s.engine.Search(ctx, SearchRequest{
		Category: CategoryShortage,
		DrugName: profile.ShortageQuery,
		Limit:    DefaultLimit,
	})
	shortageErr := search.Err()
	if shortageErr == nil {
		records, err := DecodeShortages(search.Page)
		shortageErr = err
		if err == nil {
			profile.Shortages = records
			for _, r := range records {
				if r.IsActive() {
					profile.HasActiveShortage = true
					break
				}
			}
		}
	}
	if shortageErr != nil {
		profile.Errors = append(profile.Errors, "shortages: "+shortageErr.Error())
	}

	if labelErr != nil && shortageErr != nil {
		return nil, wrapOp(OpGetMedicationProfile, identifier, labelErr)
	}
	return profile, nil
}

// AnalyzeTrends summarizes the drug's shortage history over the last monthsBack months
func (s *DrugDataService) AnalyzeTrends(ctx context.Context, drugName string, monthsBack int) (*TrendSummary, error) {
	summary, err := s.trends.Analyze(ctx, drugName, monthsBack)
	if err != nil {
		return nil, wrapOp(OpAnalyzeTrends, drugName, err)
	}
	return summary, nil
}

// BatchAnalyze runs the shortage pipeline, and optionally trend analysis, for each drug
func (s *DrugDataService) BatchAnalyze(ctx context.Context, drugNames []string, includeTrends bool) (*BatchResult, error) {
	result, err := s.batch.Analyze(ctx, drugNames, includeTrends)
	if err != nil {
		return nil, wrapOp(OpBatchAnalyze, "", err)
	}
	return result, nil
}

// CacheStats reports the cache store contents
func (s *DrugDataService) CacheStats(ctx context.Context) (*CacheStats, error) {
	stats, err := s.cache.Stats(ctx)
	if err != nil {
		return nil, wrapOp(OpCacheStats, "", err)
	}
	return stats, nil
}

func validateSearch(drugName string, limit int, subject string) error {
	if verr := ValidateDrugName(drugName, subject); verr != nil {
		return verr
	}
	if verr := ValidateLimit(limit, subject); verr != nil {
		return verr
	}
	return nil
}
