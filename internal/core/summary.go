package core

import (
	"sort"
	"strings"
)

// TopReactionCount is the number of reactions listed in an event summary
const TopReactionCount = 10

// SummarizeEvents condenses safety reports into outcome and reaction counts
func SummarizeEvents(records []EventRecord) *EventSummary {
	summary := &EventSummary{
		TotalReports:    len(records),
		Outcomes:        map[string]int{},
		SexDistribution: map[string]int{},
		TopReactions:    []TermCount{},
	}

	reactions := map[string]int{}
	for _, r := range records {
		if r.Serious {
			summary.SeriousReports++
		}
		for _, outcome := range r.Outcomes {
			summary.Outcomes[outcome]++
		}
		sex := r.PatientSex
		if sex == "" {
			sex = "unknown"
		}
		summary.SexDistribution[sex]++

		// A term counts once per report
		seen := map[string]bool{}
		for _, reaction := range r.Reactions {
			term := strings.TrimSpace(reaction.Term)
			if term == "" || seen[term] {
				continue
			}
			seen[term] = true
			reactions[term]++
		}
	}

	for term, count := range reactions {
		summary.TopReactions = append(summary.TopReactions, TermCount{Term: term, Count: count})
	}
	sort.Slice(summary.TopReactions, func(i, j int) bool {
		a, b := summary.TopReactions[i], summary.TopReactions[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Term < b.Term
	})
	if len(summary.TopReactions) > TopReactionCount {
		summary.TopReactions = summary.TopReactions[:TopReactionCount]
	}

	return summary
}

// countRecalls tallies recalls by classification and by status
func countRecalls(records []RecallRecord) (byClass, byStatus map[string]int) {
	byClass = map[string]int{}
	byStatus = map[string]int{}
	for _, r := range records {
		class := r.Classification
		if class == "" {
			class = "Unclassified"
		}
		byClass[class]++
		status := r.Status
		if status == "" {
			status = "Unknown"
		}
		byStatus[status]++
	}
	return byClass, byStatus
}
