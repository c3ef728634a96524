package models

import "time"

// Confidence indicates how directly a weakness was evidenced for an issue.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Confidences lists confidence levels from strongest to weakest.
var Confidences = []Confidence{ConfidenceHigh, ConfidenceMedium, ConfidenceLow}

// ClassificationSource names the heuristic step that produced a classification.
type ClassificationSource string

const (
	SourceDeclared ClassificationSource = "declared_standard"
	SourceIssueTag ClassificationSource = "issue_tag"
	SourceRuleKey  ClassificationSource = "rule_key"
	SourceNone     ClassificationSource = "none"
)

// Classification is the weakness mapping derived for one issue.
type Classification struct {
	CWEs       []string             `json:"cwe_ids"`
	Confidence Confidence           `json:"confidence"`
	Source     ClassificationSource `json:"source"`
}

// HasCWE reports whether at least one weakness identifier was found.
func (c Classification) HasCWE() bool {
	return len(c.CWEs) > 0
}

// Unclassified returns the "no weakness found" classification.
func Unclassified() Classification {
	return Classification{
		CWEs:       []string{},
		Confidence: ConfidenceLow,
		Source:     SourceNone,
	}
}

// ClassifiedIssue is an issue annotated with its classification. Both are
// embedded so the JSON form is a flat issue object carrying cwe_ids.
type ClassifiedIssue struct {
	Issue
	Classification
}

// CategoryShare is one entry of the top weakness categories ranking.
type CategoryShare struct {
	ID         string  `json:"id"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// Coverage describes how many issues received at least one weakness.
type Coverage struct {
	Classified int     `json:"classified_count"`
	Total      int     `json:"total_count"`
	Percentage float64 `json:"percentage"`
}

// CWEStatistics aggregates a classified issue set.
type CWEStatistics struct {
	// TotalOccurrences counts (issue, weakness) pairs.
	TotalOccurrences    int                          `json:"total_classified_occurrences"`
	Counts              map[string]int               `json:"per_weakness_counts"`
	BySeverity          map[string]map[Severity]int  `json:"per_weakness_severity"`
	ByType              map[string]map[IssueType]int `json:"per_weakness_type"`
	TopCategories       []CategoryShare              `json:"top_categories"`
	SeverityBreakdown   map[Severity]int             `json:"severity_breakdown"`
	TypeBreakdown       map[IssueType]int            `json:"type_breakdown"`
	ConfidenceBreakdown map[Confidence]int           `json:"confidence_breakdown"`
	SourceBreakdown     map[ClassificationSource]int `json:"source_breakdown"`
	Coverage            Coverage                     `json:"coverage"`
}

// Analysis is the consolidated result handed to presentation layers.
type Analysis struct {
	Issues        []ClassifiedIssue `json:"issues"`
	Statistics    CWEStatistics     `json:"statistics"`
	TotalIssues   int               `json:"total_issues"`
	IssuesWithCWE int               `json:"issues_with_cwe"`
	ProjectKey    string            `json:"project_key,omitempty"`
	Auxiliary     Auxiliary         `json:"auxiliary"`
	GeneratedAt   time.Time         `json:"generated_at"`
	// Fingerprint is a stable digest of Statistics; identical input yields
	// an identical fingerprint.
	Fingerprint string `json:"fingerprint"`
}
