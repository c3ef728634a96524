package report

import "github.com/panbanda/cwelens/pkg/models"

// RenderData contains all data needed to render the report.
type RenderData struct {
	Title         string
	Analysis      *models.Analysis
	CoverageClass string
	Categories    []CategoryRow
	Severities    []CountRow
	Types         []CountRow
	Confidence    []CountRow
	Signals       []SignalRow
	Trends        []TrendRow
	Issues        []IssueRow
	// HiddenIssues counts issues beyond the table limit.
	HiddenIssues int
}

// CategoryRow is one entry of the top categories chart.
type CategoryRow struct {
	Rank       int
	ID         string
	Name       string
	URL        string
	Count      int
	Percentage float64
	// Width is the bar length relative to the largest category, 0-100.
	Width float64
}

// CountRow is a labelled count with its share of the total.
type CountRow struct {
	Label   string
	Class   string
	Count   int
	Percent float64
}

// SignalRow is one auxiliary signal.
type SignalRow struct {
	Label  string
	Value  string
	Status string
}

// TrendRow compares an overall metric with its new-code value.
type TrendRow struct {
	Metric  string
	Current int
	New     int
	Trend   string
}

// IssueRow is one issue in the issues table.
type IssueRow struct {
	Key           string
	Link          string
	Severity      string
	SeverityClass string
	Type          string
	CWEs          []CWELink
	Confidence    string
	Location      string
	Message       string
}

// CWELink is a weakness id with its definition page.
type CWELink struct {
	ID  string
	URL string
}
