package frontend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/mikey/openfda-engine/internal/core"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
)

// CliFrontend runs single operations from the command line
type CliFrontend struct {
	dispatcher *core.Dispatcher
	logger     *zap.Logger
	out        io.Writer
	verbose    bool
}

// NewCliFrontend creates a new CLI frontend
func NewCliFrontend(dispatcher *core.Dispatcher, logger *zap.Logger, out io.Writer, verbose bool) *CliFrontend {
	return &CliFrontend{
		dispatcher: dispatcher,
		logger:     logger,
		out:        out,
		verbose:    verbose,
	}
}

// Call runs an operation and prints its result
func (f *CliFrontend) Call(ctx context.Context, operation string, params core.Params) (any, error) {
	f.logger.Debug("Running operation", zap.String("operation", operation))

	fmt.Fprintf(f.out, "\n=== Request ===\n")
	fmt.Fprintf(f.out, "Operation: %s\n", operation)
	for _, key := range sortedKeys(params) {
		fmt.Fprintf(f.out, "%s: %v\n", key, params[key])
	}
	fmt.Fprintf(f.out, "\n")

	startTime := time.Now()
	result, err := f.dispatcher.Call(ctx, operation, params)
	duration := time.Since(startTime)
	if err != nil {
		desc := core.Describe(err)
		fmt.Fprintf(f.out, "=== Error ===\n")
		fmt.Fprintf(f.out, "Type: %s\n", desc.Type)
		if desc.Kind != "" {
			fmt.Fprintf(f.out, "Kind: %s\n", desc.Kind)
		}
		fmt.Fprintf(f.out, "Message: %s\n", desc.Message)
		return nil, err
	}

	fmt.Fprintf(f.out, "=== Summary ===\n")
	for _, line := range summarize(result) {
		fmt.Fprintf(f.out, "%s\n", line)
	}
	fmt.Fprintf(f.out, "Processing time: %v\n", duration)

	if f.verbose {
		body, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode result: %w", err)
		}
		fmt.Fprintf(f.out, "\n=== Result ===\n%s\n", body)
	}

	return result, nil
}

// Start is a no-op for the CLI frontend
func (f *CliFrontend) Start() error {
	return nil
}

// Stop is a no-op for the CLI frontend
func (f *CliFrontend) Stop() error {
	return nil
}

func summarize(result any) []string {
	switch r := result.(type) {
	case *core.ShortageSearchResult:
		lines := []string{
			fmt.Sprintf("Shortage records: %d of %d", r.Count, r.TotalAvailable),
			fmt.Sprintf("Active shortage: %t", r.HasActiveShortage),
		}
		return appendSearchNotes(lines, r.StrategyUsed, r.Message)
	case *core.RecallSearchResult:
		lines := []string{fmt.Sprintf("Recalls: %d of %d", r.Count, r.TotalAvailable)}
		for _, class := range sortedKeys(r.ByClassification) {
			lines = append(lines, fmt.Sprintf("  %s: %d", class, r.ByClassification[class]))
		}
		return appendSearchNotes(lines, r.StrategyUsed, r.Message)
	case *core.AdverseEventResult:
		lines := []string{fmt.Sprintf("Reports: %d of %d", r.Count, r.TotalAvailable)}
		if r.Summary != nil {
			lines = append(lines, fmt.Sprintf("Serious reports: %d", r.Summary.SeriousReports))
			for _, tc := range r.Summary.TopReactions {
				lines = append(lines, fmt.Sprintf("  %s: %d", tc.Term, tc.Count))
			}
		}
		return appendSearchNotes(lines, r.StrategyUsed, r.Message)
	case *core.LabelResult:
		lines := []string{fmt.Sprintf("Label found: %t", r.Found)}
		if r.Label != nil {
			lines = append(lines,
				fmt.Sprintf("Generic names: %s", strings.Join(r.Label.GenericNames, ", ")),
				fmt.Sprintf("Brand names: %s", strings.Join(r.Label.BrandNames, ", ")))
		}
		return appendSearchNotes(lines, r.StrategyUsed, r.Message)
	case *core.MedicationProfile:
		lines := []string{
			fmt.Sprintf("Label found: %t", r.Label != nil),
			fmt.Sprintf("Shortage query: %s", r.ShortageQuery),
			fmt.Sprintf("Active shortage: %t", r.HasActiveShortage),
		}
		for _, e := range r.Errors {
			lines = append(lines, "Error: "+e)
		}
		return lines
	case *core.TrendSummary:
		return []string{
			fmt.Sprintf("Window: %d months", r.WindowMonths),
			fmt.Sprintf("Shortage events: %d (%d active)", r.TotalEvents, r.ActiveEvents),
			fmt.Sprintf("Average duration: %.1f days", r.AverageDurationDays),
			fmt.Sprintf("Frequency: %s (%.2f per month)", r.FrequencyClass, r.EventsPerMonth),
			fmt.Sprintf("Status: %s", r.Status),
		}
	case *core.BatchResult:
		lines := []string{
			fmt.Sprintf("Batch: %s", r.BatchID),
			fmt.Sprintf("Succeeded: %d, failed: %d", r.Summary.Succeeded, r.Summary.Failed),
		}
		for _, item := range r.Items {
			if item.Success {
				lines = append(lines, fmt.Sprintf("  %s: %d shortage records, active %t",
					item.DrugName, item.Result.ShortageCount, item.Result.HasActiveShortage))
			} else {
				lines = append(lines, fmt.Sprintf("  %s: %s", item.DrugName, item.Error.Message))
			}
		}
		return lines
	case *core.CacheStats:
		return []string{
			fmt.Sprintf("Entries: %d (~%d bytes)", r.TotalEntries, r.ApproxMemoryBytes),
			fmt.Sprintf("Hits: %d, misses: %d", r.Hits, r.Misses),
		}
	default:
		return []string{fmt.Sprintf("%v", result)}
	}
}

func appendSearchNotes(lines []string, strategy, message string) []string {
	if strategy != "" {
		lines = append(lines, "Matched on: "+strategy)
	}
	if message != "" {
		lines = append(lines, message)
	}
	return lines
}

// sortedKeys returns the keys of m in ascending order
func sortedKeys[M ~map[string]V, V any](m M) []string {
	keys := maps.Keys(m)
	slices.Sort(keys)
	return keys
}
