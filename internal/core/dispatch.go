package core

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type requestIDKey struct{}

// WithRequestID attaches a request id for the dispatcher to log with
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id attached to ctx, if any
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// Params carries the loosely typed arguments of one operation call
type Params map[string]any

// Dispatcher routes named operations with loosely typed parameters to the service
type Dispatcher struct {
	service *DrugDataService
	logger  *zap.Logger
	ops     map[string]func(ctx context.Context, p Params) (any, error)
}

// NewDispatcher creates a new dispatcher
func NewDispatcher(service *DrugDataService, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{service: service, logger: logger}
	d.ops = map[string]func(ctx context.Context, p Params) (any, error){
		OpSearchShortages:            d.searchShortages,
		OpSearchAdverseEvents:        d.searchAdverseEvents,
		OpSearchSeriousAdverseEvents: d.searchSeriousAdverseEvents,
		OpSearchRecalls:              d.searchRecalls,
		OpGetLabelInfo:               d.getLabelInfo,
		OpGetMedicationProfile:       d.getMedicationProfile,
		OpAnalyzeTrends:              d.analyzeTrends,
		OpBatchAnalyze:               d.batchAnalyze,
		OpCacheStats:                 d.cacheStats,
	}
	return d
}

// Operations lists the supported operation names in sorted order
func (d *Dispatcher) Operations() []string {
	names := make([]string, 0, len(d.ops))
	for name := range d.ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Call runs the named operation
func (d *Dispatcher) Call(ctx context.Context, op string, params Params) (any, error) {
	handler, ok := d.ops[op]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	if params == nil {
		params = Params{}
	}

	requestID := RequestIDFrom(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	logger := d.logger.With(zap.String("request_id", requestID), zap.String("operation", op))
	logger.Debug("Dispatching operation", zap.Any("params", params))

	start := time.Now()
	result, err := handler(ctx, params)
	if err != nil {
		desc := Describe(err)
		logger.Info("Operation failed",
			zap.String("error_type", string(desc.Type)),
			zap.String("error", desc.Message),
			zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}

	logger.Info("Operation completed", zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

func (d *Dispatcher) searchShortages(ctx context.Context, p Params) (any, error) {
	name, limit, err := nameAndLimit(OpSearchShortages, p, "shortages")
	if err != nil {
		return nil, err
	}
	return d.service.SearchShortages(ctx, name, limit)
}

func (d *Dispatcher) searchRecalls(ctx context.Context, p Params) (any, error) {
	name, limit, err := nameAndLimit(OpSearchRecalls, p, "recalls")
	if err != nil {
		return nil, err
	}
	return d.service.SearchRecalls(ctx, name, limit)
}

func (d *Dispatcher) searchAdverseEvents(ctx context.Context, p Params) (any, error) {
	name, limit, err := nameAndLimit(OpSearchAdverseEvents, p, "adverse events")
	if err != nil {
		return nil, err
	}
	detailed, verr := p.boolParam("detailed", false)
	if verr != nil {
		return nil, wrapOp(OpSearchAdverseEvents, name, verr)
	}
	return d.service.SearchAdverseEvents(ctx, name, limit, detailed)
}

func (d *Dispatcher) searchSeriousAdverseEvents(ctx context.Context, p Params) (any, error) {
	name, limit, err := nameAndLimit(OpSearchSeriousAdverseEvents, p, "serious adverse events")
	if err != nil {
		return nil, err
	}
	detailed, verr := p.boolParam("detailed", false)
	if verr != nil {
		return nil, wrapOp(OpSearchSeriousAdverseEvents, name, verr)
	}
	return d.service.SearchSeriousAdverseEvents(ctx, name, limit, detailed)
}

func (d *Dispatcher) getLabelInfo(ctx context.Context, p Params) (any, error) {
	identifier, identifierType, err := identifierParams(OpGetLabelInfo, p, "label information")
	if err != nil {
		return nil, err
	}
	return d.service.GetLabelInfo(ctx, identifier, identifierType)
}

func (d *Dispatcher) getMedicationProfile(ctx context.Context, p Params) (any, error) {
	identifier, identifierType, err := identifierParams(OpGetMedicationProfile, p, "medication profile")
	if err != nil {
		return nil, err
	}
	return d.service.GetMedicationProfile(ctx, identifier, identifierType)
}

func (d *Dispatcher) analyzeTrends(ctx context.Context, p Params) (any, error) {
	raw := p["drug_name"]
	if verr := ValidateDrugName(raw, "shortage trends"); verr != nil {
		return nil, wrapOp(OpAnalyzeTrends, "", verr)
	}
	name := raw.(string)
	monthsBack, verr := p.intParam("months_back", DefaultBatchTrendMonths, "shortage trends")
	if verr != nil {
		return nil, wrapOp(OpAnalyzeTrends, name, verr)
	}
	return d.service.AnalyzeTrends(ctx, name, monthsBack)
}

func (d *Dispatcher) batchAnalyze(ctx context.Context, p Params) (any, error) {
	names, verr := p.stringListParam("drug_list", "batch analysis")
	if verr != nil {
		return nil, wrapOp(OpBatchAnalyze, "", verr)
	}
	includeTrends, verr := p.boolParam("include_trends", false)
	if verr != nil {
		return nil, wrapOp(OpBatchAnalyze, "", verr)
	}
	return d.service.BatchAnalyze(ctx, names, includeTrends)
}

func (d *Dispatcher) cacheStats(ctx context.Context, _ Params) (any, error) {
	return d.service.CacheStats(ctx)
}

func nameAndLimit(op string, p Params, subject string) (string, int, error) {
	raw := p["drug_name"]
	if verr := ValidateDrugName(raw, subject); verr != nil {
		return "", 0, wrapOp(op, "", verr)
	}
	name := raw.(string)
	limit, verr := p.intParam("limit", DefaultLimit, subject)
	if verr != nil {
		return "", 0, wrapOp(op, name, verr)
	}
	return name, limit, nil
}

func identifierParams(op string, p Params, subject string) (string, string, error) {
	raw := p["drug_identifier"]
	if verr := ValidateDrugName(raw, subject); verr != nil {
		verr.Field = "drug_identifier"
		return "", "", wrapOp(op, "", verr)
	}
	identifier := raw.(string)

	identifierType := ""
	if v, ok := p["identifier_type"]; ok && v != nil {
		s, ok := v.(string)
		if !ok {
			return "", "", wrapOp(op, identifier, &ValidationError{
				Operation: subject,
				Field:     "identifier_type",
				Value:     v,
				Message:   fmt.Sprintf("identifier_type for %s must be a string, got %T", subject, v),
			})
		}
		identifierType = s
	}
	return identifier, identifierType, nil
}

// intParam reads an integral parameter. JSON numbers arrive as float64 and
// are accepted when they carry no fractional part.
func (p Params) intParam(key string, def int, subject string) (int, *ValidationError) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}

	invalid := func() *ValidationError {
		return &ValidationError{
			Operation: subject,
			Field:     key,
			Value:     v,
			Message:   fmt.Sprintf("%s for %s must be an integer, got %v", key, subject, v),
		}
	}

	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		if int64(int(n)) != n {
			return 0, invalid()
		}
		return int(n), nil
	case float64:
		// -math.MinInt is exact as a float64, math.MaxInt is not
		if n != math.Trunc(n) || n < math.MinInt || n >= -math.MinInt {
			return 0, invalid()
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil || int64(int(i)) != i {
			return 0, invalid()
		}
		return int(i), nil
	default:
		return 0, invalid()
	}
}

func (p Params) boolParam(key string, def bool) (bool, *ValidationError) {
	v, ok := p[key]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, &ValidationError{
			Field:   key,
			Value:   v,
			Message: fmt.Sprintf("%s must be a boolean, got %v", key, v),
		}
	}
	return b, nil
}

// stringListParam reads a list parameter. Non-string entries are kept as
// empty names so they fail individually instead of rejecting the list.
func (p Params) stringListParam(key, subject string) ([]string, *ValidationError) {
	switch list := p[key].(type) {
	case []string:
		return list, nil
	case []any:
		names := make([]string, len(list))
		for i, v := range list {
			if s, ok := v.(string); ok {
				names[i] = s
			}
		}
		return names, nil
	case nil:
		return nil, nil
	default:
		return nil, &ValidationError{
			Operation: subject,
			Field:     key,
			Value:     list,
			Message:   fmt.Sprintf("%s for %s must be a list of medication names", key, subject),
		}
	}
}
