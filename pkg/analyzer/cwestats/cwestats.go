// Package cwestats aggregates classified issues into weakness statistics.
// Output is deterministic: identical input always encodes to identical JSON.
package cwestats

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/panbanda/cwelens/pkg/cwe"
	"github.com/panbanda/cwelens/pkg/models"
	"github.com/panbanda/cwelens/pkg/stats"
)

// MaxTopCategories caps the top categories ranking.
const MaxTopCategories = 10

// Options tunes the aggregation.
type Options struct {
	// TopN is the ranking length, clamped to 1..MaxTopCategories.
	TopN int
	// Precision is the number of decimals kept for category percentages.
	Precision int
	// CoveragePrecision is the number of decimals kept for coverage.
	CoveragePrecision int
}

// DefaultOptions returns a top-10 ranking with two-decimal category
// percentages and whole-number coverage.
func DefaultOptions() Options {
	return Options{
		TopN:              MaxTopCategories,
		Precision:         2,
		CoveragePrecision: 0,
	}
}

// Compute aggregates items. It never fails; empty input yields zero counts,
// an empty ranking and 0% coverage.
func Compute(items []models.ClassifiedIssue, opts Options) models.CWEStatistics {
	topN := opts.TopN
	if topN <= 0 || topN > MaxTopCategories {
		topN = MaxTopCategories
	}

	st := models.CWEStatistics{
		Counts:              make(map[string]int),
		BySeverity:          make(map[string]map[models.Severity]int),
		ByType:              make(map[string]map[models.IssueType]int),
		SeverityBreakdown:   make(map[models.Severity]int, len(models.Severities)),
		TypeBreakdown:       make(map[models.IssueType]int, len(models.IssueTypes)),
		ConfidenceBreakdown: make(map[models.Confidence]int, len(models.Confidences)),
		SourceBreakdown:     make(map[models.ClassificationSource]int),
	}
	for _, s := range models.Severities {
		st.SeverityBreakdown[s] = 0
	}
	for _, t := range models.IssueTypes {
		st.TypeBreakdown[t] = 0
	}
	for _, c := range models.Confidences {
		st.ConfidenceBreakdown[c] = 0
	}

	classified := 0
	for _, it := range items {
		if it.Severity != "" {
			st.SeverityBreakdown[it.Severity]++
		}
		if it.Type != "" {
			st.TypeBreakdown[it.Type]++
		}
		if it.Classification.Confidence != "" {
			st.ConfidenceBreakdown[it.Classification.Confidence]++
		}
		if it.Classification.Source != "" {
			st.SourceBreakdown[it.Classification.Source]++
		}
		if it.Classification.HasCWE() {
			classified++
		}

		for _, id := range it.Classification.CWEs {
			st.TotalOccurrences++
			st.Counts[id]++

			sev, ok := st.BySeverity[id]
			if !ok {
				sev = make(map[models.Severity]int)
				st.BySeverity[id] = sev
			}
			if it.Severity != "" {
				sev[it.Severity]++
			}

			typ, ok := st.ByType[id]
			if !ok {
				typ = make(map[models.IssueType]int)
				st.ByType[id] = typ
			}
			if it.Type != "" {
				typ[it.Type]++
			}
		}
	}

	st.TopCategories = rank(st.Counts, st.TotalOccurrences, topN, opts.Precision)
	st.Coverage = models.Coverage{
		Classified: classified,
		Total:      len(items),
		Percentage: stats.Percentage(classified, len(items), opts.CoveragePrecision),
	}
	return st
}

// rank orders categories by count descending then numeric id ascending
// (CWE-22 before CWE-100) and keeps
// the first n. Percentages are relative to total occurrences.
func rank(counts map[string]int, total, n, precision int) []models.CategoryShare {
	out := make([]models.CategoryShare, 0, len(counts))
	for id, c := range counts {
		out = append(out, models.CategoryShare{
			ID:         id,
			Count:      c,
			Percentage: stats.Percentage(c, total, precision),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		ni, nj := cwe.Number(out[i].ID), cwe.Number(out[j].ID)
		if ni != nj {
			return ni < nj
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// Fingerprint returns a stable digest of the statistics' JSON encoding.
func Fingerprint(st models.CWEStatistics) (string, error) {
	data, err := json.Marshal(st)
	if err != nil {
		return "", fmt.Errorf("encoding statistics: %w", err)
	}
	return fmt.Sprintf("%016x", xxhash.Sum64(data)), nil
}
