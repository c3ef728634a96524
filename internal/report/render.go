// Package report renders a CWE analysis as a self-contained HTML dashboard.
package report

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/panbanda/cwelens/pkg/cwe"
	"github.com/panbanda/cwelens/pkg/models"
	"github.com/panbanda/cwelens/pkg/stats"
)

//go:embed template.html
var templateFS embed.FS

// DefaultMaxIssues caps the issues table.
const DefaultMaxIssues = 200

// Renderer handles HTML report generation.
type Renderer struct {
	tmpl      *template.Template
	baseURL   string
	maxIssues int
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithBaseURL sets the SonarQube host used for issue links.
func WithBaseURL(u string) Option {
	return func(r *Renderer) { r.baseURL = u }
}

// WithMaxIssues caps the number of issues listed.
func WithMaxIssues(n int) Option {
	return func(r *Renderer) {
		if n > 0 {
			r.maxIssues = n
		}
	}
}

// NewRenderer creates a new renderer with the embedded template.
func NewRenderer(opts ...Option) (*Renderer, error) {
	printer := message.NewPrinter(language.English)
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"title": func(s string) string {
			return cases.Title(language.English).String(strings.ReplaceAll(strings.ToLower(s), "_", " "))
		},
		"num": func(n int) string {
			return printer.Sprintf("%d", n)
		},
		"pct": func(f float64) string {
			return strconv.FormatFloat(f, 'f', -1, 64) + "%"
		},
		"truncate": func(s string, n int) string {
			r := []rune(s)
			if len(r) > n {
				return string(r[:n]) + "..."
			}
			return s
		},
		"json": func(v any) template.JS {
			b, _ := json.Marshal(v)
			return template.JS(b)
		},
	}

	tmplContent, err := templateFS.ReadFile("template.html")
	if err != nil {
		return nil, err
	}
	tmpl, err := template.New("report").Funcs(funcMap).Parse(string(tmplContent))
	if err != nil {
		return nil, fmt.Errorf("parsing report template: %w", err)
	}

	r := &Renderer{tmpl: tmpl, maxIssues: DefaultMaxIssues}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Render writes the HTML report for an analysis.
func (r *Renderer) Render(a *models.Analysis, w io.Writer) error {
	return r.tmpl.Execute(w, r.buildData(a))
}

// RenderToFile writes the HTML report to outputPath.
func (r *Renderer) RenderToFile(a *models.Analysis, outputPath string) error {
	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	if err := r.Render(a, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadAnalysis reads an analysis previously written as JSON.
func LoadAnalysis(path string) (*models.Analysis, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var a models.Analysis
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &a, nil
}

func (r *Renderer) buildData(a *models.Analysis) *RenderData {
	st := a.Statistics
	data := &RenderData{
		Title:         "CWE Analysis",
		Analysis:      a,
		CoverageClass: coverageClass(st.Coverage.Percentage),
	}
	if a.ProjectKey != "" {
		data.Title += " - " + a.ProjectKey
	}

	maxCount := 0
	for _, c := range st.TopCategories {
		maxCount = max(maxCount, c.Count)
	}
	for i, c := range st.TopCategories {
		row := CategoryRow{
			Rank:       i + 1,
			ID:         c.ID,
			URL:        cwe.URL(c.ID),
			Count:      c.Count,
			Percentage: c.Percentage,
			Width:      stats.Percentage(c.Count, maxCount, 1),
		}
		if e, ok := cwe.Lookup(c.ID); ok {
			row.Name = e.Name
		}
		data.Categories = append(data.Categories, row)
	}

	total := a.TotalIssues
	for _, s := range models.Severities {
		n := st.SeverityBreakdown[s]
		data.Severities = append(data.Severities, CountRow{Label: string(s), Class: strings.ToLower(string(s)), Count: n, Percent: stats.Percentage(n, total, 1)})
	}
	types := make([]string, 0, len(st.TypeBreakdown))
	for t := range st.TypeBreakdown {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		n := st.TypeBreakdown[models.IssueType(t)]
		data.Types = append(data.Types, CountRow{Label: t, Class: strings.ToLower(t), Count: n, Percent: stats.Percentage(n, total, 1)})
	}
	for _, c := range models.Confidences {
		n := st.ConfidenceBreakdown[c]
		data.Confidence = append(data.Confidence, CountRow{Label: string(c), Class: string(c), Count: n, Percent: stats.Percentage(n, total, 1)})
	}

	data.Signals = signalRows(a.Auxiliary)
	for metric, t := range a.Auxiliary.SecurityTrends.Value {
		data.Trends = append(data.Trends, TrendRow{Metric: metric, Current: t.Current, New: t.New, Trend: t.Trend})
	}
	sort.Slice(data.Trends, func(i, j int) bool { return data.Trends[i].Metric < data.Trends[j].Metric })

	issues := make([]models.ClassifiedIssue, len(a.Issues))
	copy(issues, a.Issues)
	sort.SliceStable(issues, func(i, j int) bool {
		if ri, rj := issues[i].Severity.Rank(), issues[j].Severity.Rank(); ri != rj {
			return ri > rj
		}
		return issues[i].Key < issues[j].Key
	})
	if len(issues) > r.maxIssues {
		data.HiddenIssues = len(issues) - r.maxIssues
		issues = issues[:r.maxIssues]
	}
	for _, ci := range issues {
		project := ci.Project
		if project == "" {
			project = a.ProjectKey
		}
		row := IssueRow{
			Key:           ci.Key,
			Link:          cwe.IssueLink(r.baseURL, project, ci.Key),
			Severity:      string(ci.Severity),
			SeverityClass: strings.ToLower(string(ci.Severity)),
			Type:          string(ci.Type),
			Confidence:    string(ci.Confidence),
			Location:      ci.Location(),
			Message:       ci.Message,
		}
		for _, id := range ci.CWEs {
			row.CWEs = append(row.CWEs, CWELink{ID: id, URL: cwe.URL(id)})
		}
		data.Issues = append(data.Issues, row)
	}
	return data
}

func signalRows(aux models.Auxiliary) []SignalRow {
	row := func(label string, value int, status models.SignalStatus) SignalRow {
		v := strconv.Itoa(value)
		if status == models.SignalUnavailable {
			v = "n/a"
		}
		return SignalRow{Label: label, Value: v, Status: string(status)}
	}
	rows := []SignalRow{
		row("Security hotspots", aux.SecurityHotspots.Value, aux.SecurityHotspots.Status),
		row("Security rules", aux.SecurityRules.Value, aux.SecurityRules.Status),
		row("Security-related issues", aux.SecurityIssues.Value.SecurityIssues, aux.SecurityIssues.Status),
		row("Vulnerabilities", aux.SecurityIssues.Value.VulnerabilityIssues, aux.SecurityIssues.Status),
	}
	if m, ok := aux.ProjectMetrics.Value["security_rating"]; ok {
		rows = append(rows, SignalRow{Label: "Security rating", Value: m.Value, Status: string(aux.ProjectMetrics.Status)})
	}
	hc := aux.HotspotCategories
	if hc.Available() {
		names := make([]string, 0, len(hc.Value.Categories))
		for k := range hc.Value.Categories {
			names = append(names, k)
		}
		sort.Strings(names)
		for _, k := range names {
			if n := hc.Value.Categories[k]; n > 0 {
				rows = append(rows, row("Hotspots: "+k, n, hc.Status))
			}
		}
	}
	if aux.RelatedCVEs.Available() {
		ids := make([]string, 0, len(aux.RelatedCVEs.Value))
		for id := range aux.RelatedCVEs.Value {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			rows = append(rows, row("Published CVEs for "+id, aux.RelatedCVEs.Value[id].Total, aux.RelatedCVEs.Status))
		}
	}
	return rows
}

func coverageClass(pct float64) string {
	switch {
	case pct >= 80:
		return "good"
	case pct >= 50:
		return "warning"
	default:
		return "danger"
	}
}
