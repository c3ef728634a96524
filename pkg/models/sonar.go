package models

import (
	"strconv"
	"strings"
	"time"
)

// Severity is the SonarQube severity of an issue or rule.
type Severity string

const (
	SeverityBlocker  Severity = "BLOCKER"
	SeverityCritical Severity = "CRITICAL"
	SeverityMajor    Severity = "MAJOR"
	SeverityMinor    Severity = "MINOR"
	SeverityInfo     Severity = "INFO"
)

// Severities lists the known severities from most to least severe.
var Severities = []Severity{
	SeverityBlocker,
	SeverityCritical,
	SeverityMajor,
	SeverityMinor,
	SeverityInfo,
}

// ParseSeverity normalizes an upstream severity string. Unknown values are
// kept verbatim (uppercased) so they still show up in breakdowns.
func ParseSeverity(s string) Severity {
	return Severity(strings.ToUpper(strings.TrimSpace(s)))
}

// Rank returns a numeric weight for sorting, BLOCKER highest. Unknown
// severities rank 0.
func (s Severity) Rank() int {
	switch s {
	case SeverityBlocker:
		return 5
	case SeverityCritical:
		return 4
	case SeverityMajor:
		return 3
	case SeverityMinor:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Known reports whether s is one of the five SonarQube severities.
func (s Severity) Known() bool {
	return s.Rank() > 0
}

// IssueType is the SonarQube issue type.
type IssueType string

const (
	TypeBug             IssueType = "BUG"
	TypeVulnerability   IssueType = "VULNERABILITY"
	TypeCodeSmell       IssueType = "CODE_SMELL"
	TypeSecurityHotspot IssueType = "SECURITY_HOTSPOT"
)

// IssueTypes lists the issue types always present in a type breakdown.
var IssueTypes = []IssueType{TypeBug, TypeVulnerability, TypeCodeSmell}

// ParseIssueType normalizes an upstream issue type string.
func ParseIssueType(s string) IssueType {
	return IssueType(strings.ToUpper(strings.TrimSpace(s)))
}

// TextRange locates an issue inside its component.
type TextRange struct {
	StartLine   int `json:"start_line"`
	EndLine     int `json:"end_line"`
	StartOffset int `json:"start_offset"`
	EndOffset   int `json:"end_offset"`
}

// Issue is one finding reported by the analysis service. Issues are
// immutable once fetched.
type Issue struct {
	Key          string     `json:"key"`
	Rule         string     `json:"rule"`
	Severity     Severity   `json:"severity"`
	Type         IssueType  `json:"type"`
	Message      string     `json:"message"`
	Tags         []string   `json:"tags"`
	Project      string     `json:"project"`
	Component    string     `json:"component"`
	Line         *int       `json:"line,omitempty"`
	Status       string     `json:"status"`
	Resolution   string     `json:"resolution,omitempty"`
	Author       string     `json:"author,omitempty"`
	CreationDate time.Time  `json:"creation_date"`
	UpdateDate   time.Time  `json:"update_date"`
	TextRange    *TextRange `json:"text_range,omitempty"`
}

// Location returns "component:line", or just the component when the issue
// is file-level.
func (i Issue) Location() string {
	if i.Line == nil {
		return i.Component
	}
	return i.Component + ":" + strconv.Itoa(*i.Line)
}

// Rule is metadata for a detection rule.
type Rule struct {
	Key      string    `json:"key"`
	Name     string    `json:"name"`
	Lang     string    `json:"lang,omitempty"`
	LangName string    `json:"lang_name,omitempty"`
	Severity Severity  `json:"severity,omitempty"`
	Type     IssueType `json:"type,omitempty"`
	Status   string    `json:"status,omitempty"`
	Tags     []string  `json:"tags"`
	// SecurityStandards maps a standard name (e.g. "cwe", "owaspTop10") to
	// its declared identifiers.
	SecurityStandards map[string][]string `json:"security_standards,omitempty"`
}

// RuleRecord is the resolved, classification-relevant view of a rule.
// The zero value means "no evidence".
type RuleRecord struct {
	DeclaredCWEs []string `json:"declared_cwes"`
	Tags         []string `json:"tags"`
}

// Empty reports whether the record carries neither declared CWEs nor tags.
func (r RuleRecord) Empty() bool {
	return len(r.DeclaredCWEs) == 0 && len(r.Tags) == 0
}

// Measure is a single component metric value.
type Measure struct {
	Metric    string `json:"metric"`
	Value     string `json:"value,omitempty"`
	BestValue bool   `json:"best_value,omitempty"`
	// PeriodValue holds the new-code period value for new_* metrics.
	PeriodValue string `json:"period_value,omitempty"`
}
