package cwe

import "github.com/panbanda/cwelens/pkg/models"

// RuleLookup resolves a rule key to its catalog record.
type RuleLookup interface {
	Lookup(ruleKey string) (models.RuleRecord, bool)
}

// Engine infers weakness identifiers for issues. It holds no mutable state
// and is safe for concurrent use.
type Engine struct {
	table RuleTable
}

// Option configures an Engine.
type Option func(*Engine)

// WithRuleTable replaces the built-in rule-number table.
func WithRuleTable(t RuleTable) Option {
	return func(e *Engine) {
		e.table = t
	}
}

// NewEngine creates an engine using the seed rule table unless overridden.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{table: DefaultRuleTable()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table returns the rule-number table in use.
func (e *Engine) Table() RuleTable {
	return e.table
}

// Classify derives exactly one classification for an issue. The first step
// producing identifiers wins: declared standard, issue tags, rule-key table.
// A rule's own cwe-N tags count as declared alongside its security
// standards. A nil catalog or missing record counts as no evidence.
func (e *Engine) Classify(issue models.Issue, rules RuleLookup) models.Classification {
	if rules != nil {
		if rec, ok := rules.Lookup(issue.Rule); ok {
			if ids := declared(rec); len(ids) > 0 {
				return models.Classification{
					CWEs:       ids,
					Confidence: models.ConfidenceHigh,
					Source:     models.SourceDeclared,
				}
			}
		}
	}

	if ids := FromTags(issue.Tags); len(ids) > 0 {
		return models.Classification{
			CWEs:       ids,
			Confidence: models.ConfidenceMedium,
			Source:     models.SourceIssueTag,
		}
	}

	if id, ok := e.table.LookupRuleKey(issue.Rule); ok {
		return models.Classification{
			CWEs:       []string{id},
			Confidence: models.ConfidenceMedium,
			Source:     models.SourceRuleKey,
		}
	}

	return models.Unclassified()
}

// declared merges a record's security standards with its cwe-N tags,
// standards first.
func declared(rec models.RuleRecord) []string {
	ids := make([]string, 0, len(rec.DeclaredCWEs)+len(rec.Tags))
	ids = append(ids, rec.DeclaredCWEs...)
	ids = append(ids, FromTags(rec.Tags)...)
	return NormalizeAll(ids)
}

// ClassifyAll classifies issues in order.
func (e *Engine) ClassifyAll(issues []models.Issue, rules RuleLookup) []models.ClassifiedIssue {
	out := make([]models.ClassifiedIssue, len(issues))
	for i, issue := range issues {
		out[i] = models.ClassifiedIssue{
			Issue:          issue,
			Classification: e.Classify(issue, rules),
		}
	}
	return out
}
