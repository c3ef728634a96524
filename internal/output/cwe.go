package output

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/panbanda/cwelens/pkg/cwe"
	"github.com/panbanda/cwelens/pkg/models"
)

// DefaultMaxIssues caps the issue table in human-readable output.
const DefaultMaxIssues = 25

// AnalysisView renders a CWE analysis. JSON and TOON output always carry
// the complete analysis; the issue table in text and Markdown is capped.
type AnalysisView struct {
	Analysis  *models.Analysis
	MaxIssues int
}

// NewAnalysisView wraps an analysis for rendering.
func NewAnalysisView(a *models.Analysis, maxIssues int) *AnalysisView {
	if maxIssues <= 0 {
		maxIssues = DefaultMaxIssues
	}
	return &AnalysisView{Analysis: a, MaxIssues: maxIssues}
}

func (v *AnalysisView) RenderData() any {
	return v.Analysis
}

func (v *AnalysisView) RenderText(w io.Writer, colored bool) error {
	return v.report(colored).RenderText(w, colored)
}

func (v *AnalysisView) RenderMarkdown(w io.Writer) error {
	return v.report(false).RenderMarkdown(w)
}

func (v *AnalysisView) report(colored bool) *Report {
	a := v.Analysis
	st := a.Statistics
	title := "CWE Analysis"
	if a.ProjectKey != "" {
		title += ": " + a.ProjectKey
	}

	sections := []Renderable{
		&Section{Title: "Summary", Lines: summaryLines(a)},
		topCategoriesTable(st),
		severityTable(st, colored),
		typeTable(st),
		confidenceTable(st, colored),
		&Section{Title: "Security Signals", Lines: auxiliaryLines(a.Auxiliary)},
	}
	if len(a.Issues) > 0 {
		sections = append(sections, v.issuesTable(colored))
	}
	return &Report{Title: title, Sections: sections, Data: a}
}

func summaryLines(a *models.Analysis) []string {
	cov := a.Statistics.Coverage
	lines := []string{
		fmt.Sprintf("Issues analyzed:   %d", a.TotalIssues),
		fmt.Sprintf("Issues with CWE:   %d", a.IssuesWithCWE),
		fmt.Sprintf("Coverage:          %s%% (%d/%d)", formatFloat(cov.Percentage), cov.Classified, cov.Total),
		fmt.Sprintf("Distinct CWEs:     %d", len(a.Statistics.Counts)),
		fmt.Sprintf("CWE occurrences:   %d", a.Statistics.TotalOccurrences),
	}
	if a.Fingerprint != "" {
		lines = append(lines, "Fingerprint:       "+a.Fingerprint)
	}
	if !a.GeneratedAt.IsZero() {
		lines = append(lines, "Generated:         "+a.GeneratedAt.Format(time.RFC3339))
	}
	return lines
}

func topCategoriesTable(st models.CWEStatistics) *Table {
	rows := make([][]string, 0, len(st.TopCategories))
	for i, c := range st.TopCategories {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			c.ID,
			weaknessName(c.ID),
			strconv.Itoa(c.Count),
			formatFloat(c.Percentage) + "%",
		})
	}
	return NewTable("Top CWE Categories", []string{"#", "CWE", "Name", "Count", "Share"}, rows, nil, st.TopCategories)
}

func severityTable(st models.CWEStatistics, colored bool) *Table {
	rows := make([][]string, 0, len(st.SeverityBreakdown))
	for _, s := range orderedSeverities(st.SeverityBreakdown) {
		label := string(s)
		if colored {
			label = SeverityColor(s, label)
		}
		rows = append(rows, []string{label, strconv.Itoa(st.SeverityBreakdown[s])})
	}
	return NewTable("Severity Breakdown", []string{"Severity", "Issues"}, rows, nil, st.SeverityBreakdown)
}

func typeTable(st models.CWEStatistics) *Table {
	types := make([]models.IssueType, 0, len(st.TypeBreakdown))
	for t := range st.TypeBreakdown {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	rows := make([][]string, 0, len(types))
	for _, t := range types {
		rows = append(rows, []string{string(t), strconv.Itoa(st.TypeBreakdown[t])})
	}
	return NewTable("Type Breakdown", []string{"Type", "Issues"}, rows, nil, st.TypeBreakdown)
}

func confidenceTable(st models.CWEStatistics, colored bool) *Table {
	rows := make([][]string, 0, len(models.Confidences))
	for _, c := range models.Confidences {
		label := string(c)
		if colored {
			label = ConfidenceColor(c, label)
		}
		rows = append(rows, []string{label, strconv.Itoa(st.ConfidenceBreakdown[c])})
	}
	return NewTable("Classification Confidence", []string{"Confidence", "Issues"}, rows, nil, st.ConfidenceBreakdown)
}

func auxiliaryLines(aux models.Auxiliary) []string {
	lines := []string{
		signalLine("Security hotspots", strconv.Itoa(aux.SecurityHotspots.Value), aux.SecurityHotspots.Status),
		signalLine("Security rules", strconv.Itoa(aux.SecurityRules.Value), aux.SecurityRules.Status),
		signalLine("Security-related issues", strconv.Itoa(aux.SecurityIssues.Value.SecurityIssues), aux.SecurityIssues.Status),
		signalLine("Vulnerabilities", strconv.Itoa(aux.SecurityIssues.Value.VulnerabilityIssues), aux.SecurityIssues.Status),
		signalLine("CWE facet entries", strconv.Itoa(len(aux.CWEFacet.Value)), aux.CWEFacet.Status),
	}
	if r, ok := aux.ProjectMetrics.Value["security_rating"]; ok {
		lines = append(lines, signalLine("Security rating", r.Value, aux.ProjectMetrics.Status))
	}

	keys := make([]string, 0, len(aux.SecurityTrends.Value))
	for k := range aux.SecurityTrends.Value {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		t := aux.SecurityTrends.Value[k]
		if t.Trend == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("Trend %s: %d overall, %d new (%s)", k, t.Current, t.New, t.Trend))
	}

	hc := aux.HotspotCategories
	if !hc.Available() {
		lines = append(lines, signalLine("Hotspot categories", "", hc.Status))
	} else {
		for _, k := range sortedKeys(hc.Value.Categories) {
			if n := hc.Value.Categories[k]; n > 0 {
				lines = append(lines, signalLine("Hotspot category "+k, strconv.Itoa(n), hc.Status))
			}
		}
	}

	// Related CVEs are opt-in, so an unavailable signal without an error
	// is left out.
	cves := aux.RelatedCVEs
	switch {
	case cves.Available():
		for _, id := range sortedKeys(cves.Value) {
			lines = append(lines, signalLine("Published CVEs for "+id, strconv.Itoa(cves.Value[id].Total), cves.Status))
		}
	case cves.Error != "":
		lines = append(lines, signalLine("Published CVEs", "", cves.Status))
	}
	return lines
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func signalLine(label, value string, status models.SignalStatus) string {
	if status == models.SignalUnavailable {
		return fmt.Sprintf("%s: n/a (unavailable)", label)
	}
	return fmt.Sprintf("%s: %s (%s)", label, value, status)
}

func (v *AnalysisView) issuesTable(colored bool) *Table {
	issues := make([]models.ClassifiedIssue, len(v.Analysis.Issues))
	copy(issues, v.Analysis.Issues)
	sort.SliceStable(issues, func(i, j int) bool {
		ri, rj := issues[i].Severity.Rank(), issues[j].Severity.Rank()
		if ri != rj {
			return ri > rj
		}
		return issues[i].Key < issues[j].Key
	})

	shown := issues
	if len(shown) > v.MaxIssues {
		shown = shown[:v.MaxIssues]
	}

	rows := make([][]string, 0, len(shown))
	for _, ci := range shown {
		sev := string(ci.Severity)
		conf := string(ci.Confidence)
		if colored {
			sev = SeverityColor(ci.Severity, sev)
			conf = ConfidenceColor(ci.Confidence, conf)
		}
		ids := strings.Join(ci.CWEs, ", ")
		if ids == "" {
			ids = "-"
		}
		rows = append(rows, []string{ci.Key, sev, string(ci.Type), ids, conf, ci.Location()})
	}

	var footer []string
	if len(issues) > len(shown) {
		footer = []string{fmt.Sprintf("%d more", len(issues)-len(shown)), "", "", "", "", ""}
	}
	return NewTable("Issues", []string{"Key", "Severity", "Type", "CWE", "Confidence", "Location"}, rows, footer, v.Analysis.Issues)
}

// CatalogView renders reference weakness entries.
type CatalogView struct {
	Entries []cwe.Entry
}

func (v *CatalogView) RenderData() any {
	return v.Entries
}

func (v *CatalogView) table() *Table {
	rows := make([][]string, 0, len(v.Entries))
	for _, e := range v.Entries {
		rows = append(rows, []string{e.ID, e.Name, e.Category, e.Severity, e.URL()})
	}
	return NewTable("CWE Reference", []string{"CWE", "Name", "Category", "Severity", "URL"}, rows, nil, v.Entries)
}

func (v *CatalogView) RenderText(w io.Writer, colored bool) error {
	return v.table().RenderText(w, colored)
}

func (v *CatalogView) RenderMarkdown(w io.Writer) error {
	return v.table().RenderMarkdown(w)
}

// CVEView renders CVEs recorded against one weakness.
type CVEView struct {
	Lookup *models.CVELookup
}

// cveDescriptionWidth truncates descriptions in text and Markdown tables.
const cveDescriptionWidth = 80

func (v *CVEView) RenderData() any {
	return v.Lookup
}

func (v *CVEView) table(colored bool) *Table {
	l := v.Lookup
	rows := make([][]string, 0, len(l.CVEs))
	for _, c := range l.CVEs {
		sev := c.Severity
		if colored {
			sev = CVSSColor(c.Severity, sev)
		}
		score := "-"
		if c.Score > 0 {
			score = strconv.FormatFloat(c.Score, 'f', 1, 64)
		}
		published := "-"
		if !c.Published.IsZero() {
			published = c.Published.Format(time.DateOnly)
		}
		rows = append(rows, []string{c.ID, sev, score, published, truncate(c.Description, cveDescriptionWidth)})
	}
	title := "Published CVEs: " + l.CWE
	if name := weaknessName(l.CWE); name != "" {
		title += " " + name
	}
	footer := []string{fmt.Sprintf("%d of %d", len(l.CVEs), l.Total), "", "", "", ""}
	return NewTable(title, []string{"CVE", "Severity", "Score", "Published", "Description"}, rows, footer, l)
}

func (v *CVEView) RenderText(w io.Writer, colored bool) error {
	return v.table(colored).RenderText(w, colored)
}

func (v *CVEView) RenderMarkdown(w io.Writer) error {
	return v.table(false).RenderMarkdown(w)
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

// RuleTableView renders the rule mapping: numbered rules first, then
// exact-key entries.
type RuleTableView struct {
	Table cwe.RuleTable
}

func (v *RuleTableView) RenderData() any {
	out := make(map[string]string, v.Table.Len())
	for _, n := range v.Table.Numbers() {
		id, _ := v.Table.Lookup(n)
		out[n] = id
	}
	for _, k := range v.Table.Keys() {
		id, _ := v.Table.LookupRuleKey(k)
		out[k] = id
	}
	return out
}

func (v *RuleTableView) table() *Table {
	rows := make([][]string, 0, v.Table.Len())
	for _, n := range v.Table.Numbers() {
		id, _ := v.Table.Lookup(n)
		rows = append(rows, []string{"S" + n, id, weaknessName(id)})
	}
	for _, k := range v.Table.Keys() {
		id, _ := v.Table.LookupRuleKey(k)
		rows = append(rows, []string{k, id, weaknessName(id)})
	}
	footer := []string{fmt.Sprintf("%d rules", len(rows)), "", ""}
	return NewTable("Rule Mapping", []string{"Rule", "CWE", "Name"}, rows, footer, v.RenderData())
}

func (v *RuleTableView) RenderText(w io.Writer, colored bool) error {
	return v.table().RenderText(w, colored)
}

func (v *RuleTableView) RenderMarkdown(w io.Writer) error {
	return v.table().RenderMarkdown(w)
}

func weaknessName(id string) string {
	if e, ok := cwe.Lookup(id); ok {
		return e.Name
	}
	return ""
}

// orderedSeverities lists the five known severities first, then any
// unknown values alphabetically.
func orderedSeverities(m map[models.Severity]int) []models.Severity {
	out := make([]models.Severity, 0, len(m))
	for _, s := range models.Severities {
		if _, ok := m[s]; ok {
			out = append(out, s)
		}
	}
	var unknown []models.Severity
	for s := range m {
		if !s.Known() {
			unknown = append(unknown, s)
		}
	}
	sort.Slice(unknown, func(i, j int) bool { return unknown[i] < unknown[j] })
	return append(out, unknown...)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
