package core

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchShortages(t *testing.T) {
	ctx := context.Background()

	t.Run("cached within ttl and refetched after", func(t *testing.T) {
		page := pageOf(t, shortage("metformin", "Current", "10/01/2024", ""))
		env := newTestEnv(t, func(req FetchRequest) (*Page, error) { return page, nil }, ServiceOptions{})

		first, err := env.service.SearchShortages(ctx, "metformin", 10)
		require.NoError(t, err)
		assert.Equal(t, 1, first.Count)
		assert.True(t, first.HasActiveShortage)
		assert.Equal(t, "openfda.generic_name", first.StrategyUsed)

		env.clock.Advance(10 * time.Minute)
		second, err := env.service.SearchShortages(ctx, "Metformin", 10)
		require.NoError(t, err)
		assert.Equal(t, first.Records, second.Records)
		assert.Equal(t, 1, env.fetcher.CallCount())

		env.clock.Advance(25 * time.Minute)
		_, err = env.service.SearchShortages(ctx, "metformin", 10)
		require.NoError(t, err)
		assert.Equal(t, 2, env.fetcher.CallCount())
	})

	t.Run("no data is an annotated empty result", func(t *testing.T) {
		env := newTestEnv(t, nil, ServiceOptions{})

		result, err := env.service.SearchShortages(ctx, "unobtainium", 10)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Count)
		assert.Empty(t, result.Records)
		assert.Contains(t, result.Message, "strategies tried")
	})

	t.Run("validation happens before any fetch", func(t *testing.T) {
		env := newTestEnv(t, nil, ServiceOptions{})

		_, err := env.service.SearchShortages(ctx, "", 10)
		require.Error(t, err)
		_, err = env.service.SearchShortages(ctx, "metformin", 51)
		require.Error(t, err)

		desc := Describe(err)
		assert.Equal(t, ErrorTypeValidation, desc.Type)
		assert.Equal(t, "limit", desc.Field)
		assert.Equal(t, OpSearchShortages, desc.Operation)
		assert.Equal(t, 0, env.fetcher.CallCount())
	})

	t.Run("rate limiting on every candidate is surfaced", func(t *testing.T) {
		env := newTestEnv(t, func(req FetchRequest) (*Page, error) {
			return nil, &FetchError{Kind: KindRateLimited, Status: 429, Message: "too many requests"}
		}, ServiceOptions{})

		_, err := env.service.SearchShortages(ctx, "metformin", 10)
		require.Error(t, err)
		desc := Describe(err)
		assert.Equal(t, ErrorTypeRateLimited, desc.Type)
		assert.Equal(t, 429, desc.Status)
		assert.Equal(t, "metformin", desc.Drug)
	})
}

func TestSearchRecallsNeverCached(t *testing.T) {
	ctx := context.Background()
	page := pageOf(t,
		map[string]any{"recall_number": "D-1", "classification": "Class II", "status": "Ongoing", "reason_for_recall": "CGMP"},
		map[string]any{"recall_number": "D-2", "classification": "Class II", "status": "Terminated"},
		map[string]any{"recall_number": "D-3", "status": "Ongoing"},
	)
	env := newTestEnv(t, func(req FetchRequest) (*Page, error) { return page, nil }, ServiceOptions{})

	result, err := env.service.SearchRecalls(ctx, "valsartan", 10)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Count)
	assert.Equal(t, map[string]int{"Class II": 2, "Unclassified": 1}, result.ByClassification)
	assert.Equal(t, map[string]int{"Ongoing": 2, "Terminated": 1}, result.ByStatus)

	_, err = env.service.SearchRecalls(ctx, "valsartan", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, env.fetcher.CallCount())
	assert.Equal(t, 0, env.repo.Len())
	assert.Equal(t, EndpointEnforcement, env.fetcher.Calls()[0].Endpoint)
}

func eventRecord(id string, serious bool, sex string, reactions ...string) map[string]any {
	var rs []map[string]any
	for _, r := range reactions {
		rs = append(rs, map[string]any{"reactionmeddrapt": r, "reactionoutcome": "1"})
	}
	flag := "2"
	if serious {
		flag = "1"
	}
	return map[string]any{
		"safetyreportid":             id,
		"serious":                    flag,
		"seriousnesshospitalization": flag,
		"patient": map[string]any{
			"patientsex": sex,
			"reaction":   rs,
			"drug":       []map[string]any{{"medicinalproduct": "WARFARIN"}},
		},
	}
}

func TestSearchAdverseEvents(t *testing.T) {
	ctx := context.Background()
	page := pageOf(t,
		eventRecord("1", true, "1", "Haemorrhage", "Nausea"),
		eventRecord("2", false, "2", "Nausea", "Nausea"),
		eventRecord("3", true, "", "Haemorrhage"),
	)

	t.Run("summary is the default view", func(t *testing.T) {
		env := newTestEnv(t, func(req FetchRequest) (*Page, error) { return page, nil }, ServiceOptions{})

		result, err := env.service.SearchAdverseEvents(ctx, "warfarin", 10, false)
		require.NoError(t, err)
		assert.Nil(t, result.Reports)
		require.NotNil(t, result.Summary)
		assert.Equal(t, 3, result.Summary.TotalReports)
		assert.Equal(t, 2, result.Summary.SeriousReports)
		assert.Equal(t, []TermCount{{Term: "Haemorrhage", Count: 2}, {Term: "Nausea", Count: 2}}, result.Summary.TopReactions)
		assert.Equal(t, map[string]int{"male": 1, "female": 1, "unknown": 1}, result.Summary.SexDistribution)
		assert.Equal(t, 2, result.Summary.Outcomes[OutcomeHospitalization])
	})

	t.Run("detailed returns reports and is cached", func(t *testing.T) {
		env := newTestEnv(t, func(req FetchRequest) (*Page, error) { return page, nil }, ServiceOptions{})

		result, err := env.service.SearchAdverseEvents(ctx, "warfarin", 10, true)
		require.NoError(t, err)
		require.Len(t, result.Reports, 3)
		assert.Equal(t, []string{"WARFARIN"}, result.Reports[0].Drugs)

		_, err = env.service.SearchAdverseEvents(ctx, "warfarin", 10, false)
		require.NoError(t, err)
		assert.Equal(t, 1, env.fetcher.CallCount())
	})

	t.Run("serious events are filtered and never cached", func(t *testing.T) {
		env := newTestEnv(t, func(req FetchRequest) (*Page, error) { return page, nil }, ServiceOptions{})

		result, err := env.service.SearchSeriousAdverseEvents(ctx, "warfarin", 10, false)
		require.NoError(t, err)
		assert.True(t, result.SeriousOnly)

		_, err = env.service.SearchSeriousAdverseEvents(ctx, "warfarin", 10, false)
		require.NoError(t, err)

		calls := env.fetcher.Calls()
		require.Len(t, calls, 2)
		for _, call := range calls {
			assert.True(t, strings.HasSuffix(call.Search, "AND serious:1"), call.Search)
		}
		assert.Equal(t, 0, env.repo.Len())
	})
}

func labelRecord(generic string, warnings string) map[string]any {
	return map[string]any{
		"id":                    "label-1",
		"set_id":                "set-1",
		"indications_and_usage": []string{"For type 2 diabetes.", "Adjunct to diet."},
		"warnings":              []string{warnings},
		"openfda": map[string]any{
			"generic_name": []string{generic},
			"brand_name":   []string{"GLUCOPHAGE"},
		},
	}
}

func TestGetLabelInfo(t *testing.T) {
	ctx := context.Background()

	t.Run("walks strategies and truncates sections", func(t *testing.T) {
		page := pageOf(t, labelRecord("METFORMIN HYDROCHLORIDE", strings.Repeat("w", 200)))
		env := newTestEnv(t, func(req FetchRequest) (*Page, error) { return page, nil }, ServiceOptions{LabelMaxSectionSize: 50})

		result, err := env.service.GetLabelInfo(ctx, "metformin", "")
		require.NoError(t, err)
		require.True(t, result.Found)
		assert.Equal(t, "For type 2 diabetes.\nAdjunct to diet.", result.Label.Indications)
		assert.True(t, strings.HasPrefix(result.Label.Warnings, strings.Repeat("w", 50)))
		assert.Contains(t, result.Label.Warnings, "truncated")

		calls := env.fetcher.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, 1, calls[0].Limit)
		assert.Equal(t, EndpointLabels, calls[0].Endpoint)
	})

	t.Run("explicit identifier type searches only that field", func(t *testing.T) {
		env := newTestEnv(t, nil, ServiceOptions{})

		result, err := env.service.GetLabelInfo(ctx, "Glucophage", "brand_name")
		require.NoError(t, err)
		assert.False(t, result.Found)
		assert.Equal(t, "openfda.brand_name", result.IdentifierType)

		calls := env.fetcher.Calls()
		require.Len(t, calls, 1)
		assert.Equal(t, "openfda.brand_name", fieldOf(calls[0]))
	})
}

func TestGetMedicationProfile(t *testing.T) {
	ctx := context.Background()

	t.Run("queries shortages by the label generic name", func(t *testing.T) {
		label := pageOf(t, labelRecord("METFORMIN HYDROCHLORIDE", "Lactic acidosis."))
		shortages := pageOf(t, shortage("METFORMIN HYDROCHLORIDE", "Current", "09/01/2024", ""))
		env := newTestEnv(t, func(req FetchRequest) (*Page, error) {
			if req.Endpoint == EndpointLabels {
				return label, nil
			}
			return shortages, nil
		}, ServiceOptions{})

		profile, err := env.service.GetMedicationProfile(ctx, "Glucophage", "brand_name")
		require.NoError(t, err)
		require.NotNil(t, profile.Label)
		assert.Equal(t, "METFORMIN HYDROCHLORIDE", profile.ShortageQuery)
		assert.True(t, profile.HasActiveShortage)
		assert.Len(t, profile.Shortages, 1)
		assert.Empty(t, profile.Errors)
	})

	t.Run("label failure is reported alongside shortages", func(t *testing.T) {
		env := newTestEnv(t, func(req FetchRequest) (*Page, error) {
			if req.Endpoint == EndpointLabels {
				return nil, &FetchError{Kind: KindUpstreamError, Status: 503, Message: "unavailable"}
			}
			return &Page{}, nil
		}, ServiceOptions{})

		profile, err := env.service.GetMedicationProfile(ctx, "metformin", "")
		require.NoError(t, err)
		assert.Nil(t, profile.Label)
		assert.Equal(t, "metformin", profile.ShortageQuery)
		require.Len(t, profile.Errors, 1)
		assert.True(t, strings.HasPrefix(profile.Errors[0], "label: "))
	})

	t.Run("fails when both halves fail", func(t *testing.T) {
		env := newTestEnv(t, func(req FetchRequest) (*Page, error) {
			return nil, &FetchError{Kind: KindNetworkError, Message: "connection refused"}
		}, ServiceOptions{})

		_, err := env.service.GetMedicationProfile(ctx, "metformin", "")
		require.Error(t, err)
		assert.Equal(t, ErrorTypeUpstreamTransient, Describe(err).Type)
	})
}

func TestCacheStatsOperation(t *testing.T) {
	ctx := context.Background()
	page := pageOf(t, shortage("metformin", "Current", "10/01/2024", ""))
	env := newTestEnv(t, func(req FetchRequest) (*Page, error) { return page, nil }, ServiceOptions{})

	_, err := env.service.SearchShortages(ctx, "metformin", 10)
	require.NoError(t, err)
	_, err = env.service.SearchShortages(ctx, "metformin", 10)
	require.NoError(t, err)

	stats, err := env.service.CacheStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalEntries)
	assert.Equal(t, 1, stats.EntriesByCategory[CategoryShortage])
	assert.Equal(t, ApproxEntryBytes, stats.ApproxMemoryBytes)
	assert.EqualValues(t, 1, stats.Hits)
	assert.EqualValues(t, 1, stats.Misses)
}
