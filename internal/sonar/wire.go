package sonar

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/panbanda/cwelens/pkg/cwe"
	"github.com/panbanda/cwelens/pkg/models"
)

// sonarTimeLayout is the timestamp format used by the Web API.
const sonarTimeLayout = "2006-01-02T15:04:05-0700"

type paging struct {
	PageIndex int `json:"pageIndex"`
	PageSize  int `json:"pageSize"`
	Total     int `json:"total"`
}

type facetValue struct {
	Val   string `json:"val"`
	Count int    `json:"count"`
}

type facet struct {
	Property string       `json:"property"`
	Values   []facetValue `json:"values"`
}

type issuesResponse struct {
	Total  int        `json:"total"`
	Paging paging     `json:"paging"`
	Issues []rawIssue `json:"issues"`
	Facets []facet    `json:"facets"`
}

type rawTextRange struct {
	StartLine   int `json:"startLine"`
	EndLine     int `json:"endLine"`
	StartOffset int `json:"startOffset"`
	EndOffset   int `json:"endOffset"`
}

type rawIssue struct {
	Key          string        `json:"key"`
	Rule         string        `json:"rule"`
	Severity     string        `json:"severity"`
	Type         string        `json:"type"`
	Message      string        `json:"message"`
	Tags         []string      `json:"tags"`
	Project      string        `json:"project"`
	Component    string        `json:"component"`
	Line         *int          `json:"line"`
	Status       string        `json:"status"`
	Resolution   string        `json:"resolution"`
	Author       string        `json:"author"`
	CreationDate string        `json:"creationDate"`
	UpdateDate   string        `json:"updateDate"`
	TextRange    *rawTextRange `json:"textRange"`
}

func (r rawIssue) toModel() models.Issue {
	issue := models.Issue{
		Key:          r.Key,
		Rule:         r.Rule,
		Severity:     models.ParseSeverity(r.Severity),
		Type:         models.ParseIssueType(r.Type),
		Message:      r.Message,
		Tags:         nonNil(r.Tags),
		Project:      r.Project,
		Component:    r.Component,
		Line:         r.Line,
		Status:       r.Status,
		Resolution:   r.Resolution,
		Author:       r.Author,
		CreationDate: parseTime(r.CreationDate),
		UpdateDate:   parseTime(r.UpdateDate),
	}
	if r.TextRange != nil {
		issue.TextRange = &models.TextRange{
			StartLine:   r.TextRange.StartLine,
			EndLine:     r.TextRange.EndLine,
			StartOffset: r.TextRange.StartOffset,
			EndOffset:   r.TextRange.EndOffset,
		}
	}
	return issue
}

type rulesResponse struct {
	Total int       `json:"total"`
	P     int       `json:"p"`
	Ps    int       `json:"ps"`
	Rules []rawRule `json:"rules"`
}

type ruleShowResponse struct {
	Rule *rawRule `json:"rule"`
}

type rawRule struct {
	Key               string            `json:"key"`
	Name              string            `json:"name"`
	Lang              string            `json:"lang"`
	LangName          string            `json:"langName"`
	Severity          string            `json:"severity"`
	Type              string            `json:"type"`
	Status            string            `json:"status"`
	Tags              []string          `json:"tags"`
	SysTags           []string          `json:"sysTags"`
	SecurityStandards securityStandards `json:"securityStandards"`
}

func (r rawRule) toModel() models.Rule {
	rule := models.Rule{
		Key:      r.Key,
		Name:     r.Name,
		Lang:     r.Lang,
		LangName: r.LangName,
		Severity: models.ParseSeverity(r.Severity),
		Type:     models.ParseIssueType(r.Type),
		Status:   r.Status,
		Tags:     mergeTags(r.Tags, r.SysTags),
	}
	if len(r.SecurityStandards) > 0 {
		rule.SecurityStandards = map[string][]string(r.SecurityStandards)
	}
	return rule
}

// securityStandards accepts both shapes the API has used: an object of
// standard name to scalar or list, and a flat list such as
// ["cwe:79", "owaspTop10:a3"].
type securityStandards map[string][]string

func (s *securityStandards) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	out := make(securityStandards)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = out
		return nil
	}

	if data[0] == '[' {
		var flat []string
		if err := json.Unmarshal(data, &flat); err != nil {
			return err
		}
		for _, entry := range flat {
			name, value, ok := strings.Cut(entry, ":")
			if !ok || name == "" || value == "" {
				continue
			}
			out[name] = append(out[name], value)
		}
		*s = out
		return nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	for name, raw := range obj {
		var list []json.RawMessage
		if err := json.Unmarshal(raw, &list); err != nil {
			list = []json.RawMessage{raw}
		}
		for _, item := range list {
			if v := scalarString(item); v != "" {
				out[name] = append(out[name], v)
			}
		}
	}
	*s = out
	return nil
}

// scalarString renders a JSON string or number as a string.
func scalarString(raw json.RawMessage) string {
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return strings.TrimSpace(str)
	}
	var num json.Number
	if err := json.Unmarshal(raw, &num); err == nil {
		return num.String()
	}
	return ""
}

type measuresResponse struct {
	Component struct {
		Key      string       `json:"key"`
		Measures []rawMeasure `json:"measures"`
	} `json:"component"`
}

type rawPeriod struct {
	Index     int    `json:"index"`
	Value     string `json:"value"`
	BestValue bool   `json:"bestValue"`
}

type rawMeasure struct {
	Metric    string      `json:"metric"`
	Value     string      `json:"value"`
	BestValue bool        `json:"bestValue"`
	Period    *rawPeriod  `json:"period"`
	Periods   []rawPeriod `json:"periods"`
}

func (m rawMeasure) toModel() models.Measure {
	out := models.Measure{
		Metric:    m.Metric,
		Value:     m.Value,
		BestValue: m.BestValue,
	}
	switch {
	case m.Period != nil:
		out.PeriodValue = m.Period.Value
	case len(m.Periods) > 0:
		out.PeriodValue = m.Periods[0].Value
	}
	if out.Value == "" && out.PeriodValue != "" && strings.HasPrefix(m.Metric, "new_") {
		out.Value = out.PeriodValue
	}
	return out
}

// parseTime returns the zero time for empty or unparseable input.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(sonarTimeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return time.Time{}
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

// mergeTags unions user and system tags, sorted.
func mergeTags(tags, sysTags []string) []string {
	seen := make(map[string]struct{}, len(tags)+len(sysTags))
	out := make([]string, 0, len(tags)+len(sysTags))
	for _, group := range [][]string{tags, sysTags} {
		for _, t := range group {
			if _, ok := seen[t]; ok || t == "" {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// facetCounts extracts one facet's values. cwe facet values are normalized
// to canonical identifiers; values such as "unknown" are kept uppercased.
func facetCounts(facets []facet, property string) map[string]int {
	out := make(map[string]int)
	for _, f := range facets {
		if f.Property != property {
			continue
		}
		for _, v := range f.Values {
			key := v.Val
			if property == "cwe" {
				if id, ok := cwe.Normalize(v.Val); ok {
					key = id
				} else {
					key = strings.ToUpper(strings.TrimSpace(v.Val))
				}
			}
			out[key] += v.Count
		}
	}
	return out
}
