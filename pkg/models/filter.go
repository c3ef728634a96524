package models

import "strings"

// IssueFilter narrows a classified issue list for display. Empty fields
// match everything.
type IssueFilter struct {
	CWEs       []string
	Severities []Severity
	Types      []IssueType
	Projects   []string
	Search     string
}

// Match reports whether the issue passes every configured criterion.
func (f IssueFilter) Match(ci ClassifiedIssue) bool {
	if len(f.CWEs) > 0 && !anyIn(ci.Classification.CWEs, f.CWEs) {
		return false
	}
	if len(f.Severities) > 0 && !contains(f.Severities, ci.Severity) {
		return false
	}
	if len(f.Types) > 0 && !contains(f.Types, ci.Type) {
		return false
	}
	if len(f.Projects) > 0 && !contains(f.Projects, ci.Project) {
		return false
	}
	if q := strings.ToLower(strings.TrimSpace(f.Search)); q != "" {
		fields := []string{ci.Key, ci.Rule, ci.Message, ci.Component}
		found := false
		for _, field := range fields {
			if strings.Contains(strings.ToLower(field), q) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Apply returns the issues matching the filter, preserving order.
func (f IssueFilter) Apply(issues []ClassifiedIssue) []ClassifiedIssue {
	out := make([]ClassifiedIssue, 0, len(issues))
	for _, ci := range issues {
		if f.Match(ci) {
			out = append(out, ci)
		}
	}
	return out
}

func contains[T comparable](set []T, v T) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}

func anyIn(values, set []string) bool {
	for _, v := range values {
		if contains(set, v) {
			return true
		}
	}
	return false
}
