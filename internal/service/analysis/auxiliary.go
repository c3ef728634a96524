package analysis

import (
	"context"
	"errors"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sourcegraph/conc"

	"github.com/panbanda/cwelens/internal/sonar"
	"github.com/panbanda/cwelens/pkg/models"
)

// ruleSampleSize is the issue page inspected to estimate security rules.
const ruleSampleSize = 100

var errNoProject = errors.New("no project key")

// securityMetricKeys are reported verbatim as project metrics.
var securityMetricKeys = []string{
	"security_hotspots",
	"security_rating",
	"security_remediation_effort",
	"new_security_hotspots",
	"security_hotspots_reviewed",
	"new_security_hotspots_reviewed",
	"vulnerabilities",
	"new_vulnerabilities",
	"bugs",
	"new_bugs",
	"reliability_rating",
	"reliability_remediation_effort",
	"new_reliability_remediation_effort",
}

// trendMetricKeys pair overall metrics with their new-code counterparts.
var trendMetricKeys = []string{
	"security_hotspots",
	"new_security_hotspots",
	"vulnerabilities",
	"new_vulnerabilities",
	"bugs",
	"new_bugs",
	"security_rating",
	"reliability_rating",
}

// hotspotTopics are matched against the rule key and message of sampled
// vulnerabilities. An issue may count toward several topics.
var hotspotTopics = []struct {
	name    string
	rule    []string
	message []string
}{
	{"SQL Injection", []string{"sql"}, []string{"sql"}},
	{"Cross-Site Scripting (XSS)", []string{"xss"}, []string{"xss"}},
	{"Authentication Issues", []string{"auth"}, []string{"password", "login"}},
	{"Input Validation", []string{"input"}, []string{"validation"}},
}

const otherHotspotTopic = "Other Security Issues"

// auxiliary fetches every signal concurrently. Each fetch has its own
// deadline and a failure only downgrades that signal. topCWEs are the
// categories related CVEs are looked up for.
func (s *Service) auxiliary(ctx context.Context, projectKey, searchKey string, issues []models.ClassifiedIssue, topCWEs []string) models.Auxiliary {
	aux := models.DefaultAuxiliary()
	aux.SecurityIssues = models.Estimated(countSecurityIssues(issues))

	var (
		wg     conc.WaitGroup
		sample models.Signal[[]models.Issue]
	)
	wg.Go(func() {
		aux.SecurityHotspots = signal(ctx, s, "security_hotspots", 0, func(ctx context.Context) (models.Signal[int], error) {
			return s.hotspotCount(ctx, projectKey)
		})
	})
	wg.Go(func() {
		sample = signal(ctx, s, "vulnerability_sample", []models.Issue{}, func(ctx context.Context) (models.Signal[[]models.Issue], error) {
			return s.vulnerabilitySample(ctx, searchKey)
		})
	})
	wg.Go(func() {
		aux.CWEFacet = signal(ctx, s, "cwe_facet", map[string]int{}, func(ctx context.Context) (models.Signal[map[string]int], error) {
			counts, err := s.client.IssueFacet(ctx, sonar.IssueFilter{ProjectKey: searchKey}, "cwe")
			if err != nil {
				return models.Signal[map[string]int]{}, err
			}
			return models.Measured(counts), nil
		})
	})
	wg.Go(func() {
		aux.ProjectMetrics = signal(ctx, s, "project_metrics", map[string]models.MetricValue{}, func(ctx context.Context) (models.Signal[map[string]models.MetricValue], error) {
			return s.projectMetrics(ctx, projectKey)
		})
	})
	wg.Go(func() {
		aux.SecurityTrends = signal(ctx, s, "security_trends", map[string]models.MetricTrend{}, func(ctx context.Context) (models.Signal[map[string]models.MetricTrend], error) {
			return s.securityTrends(ctx, projectKey)
		})
	})
	if s.config.NVD.Enabled {
		wg.Go(func() {
			aux.RelatedCVEs = signal(ctx, s, "related_cves", map[string]models.CVELookup{}, func(ctx context.Context) (models.Signal[map[string]models.CVELookup], error) {
				return s.relatedCVEs(ctx, topCWEs)
			})
		})
	}
	wg.Wait()

	aux.SecurityRules = derive(sample, distinctRules(sample.Value))
	aux.HotspotCategories = derive(sample, models.HotspotCategories{
		Total:      aux.SecurityHotspots.Value,
		Categories: hotspotCategories(sample.Value),
	})
	return aux
}

// derive carries the status and error of from over to a computed value.
func derive[T, U any](from models.Signal[T], v U) models.Signal[U] {
	return models.Signal[U]{Value: v, Status: from.Status, Error: from.Error}
}

// signal runs fetch under the auxiliary timeout, substituting def on error.
func signal[T any](ctx context.Context, s *Service, name string, def T, fetch func(context.Context) (models.Signal[T], error)) models.Signal[T] {
	timeout := s.config.Sonar.AuxTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	sig, err := fetch(ctx)
	if err != nil {
		if !errors.Is(err, errNoProject) {
			s.logger.Warnw("auxiliary signal unavailable", "signal", name, "error", err)
		}
		return models.Unavailable(def, err)
	}
	return sig
}

func (s *Service) hotspotCount(ctx context.Context, projectKey string) (models.Signal[int], error) {
	if projectKey == "" {
		return models.Signal[int]{}, errNoProject
	}
	measures, err := s.client.GetMeasures(ctx, projectKey, []string{"security_hotspots"})
	if err != nil {
		return models.Signal[int]{}, err
	}
	for _, m := range measures {
		if m.Metric == "security_hotspots" {
			return models.Measured(parseCount(m.Value)), nil
		}
	}
	return models.Measured(0), nil
}

// vulnerabilitySample reads one page of vulnerabilities. The security rule
// count and hotspot categories are both estimated from it.
func (s *Service) vulnerabilitySample(ctx context.Context, projectKey string) (models.Signal[[]models.Issue], error) {
	page, err := s.client.SearchIssues(ctx, sonar.IssueFilter{
		ProjectKey: projectKey,
		Types:      []string{string(models.TypeVulnerability)},
		PageSize:   ruleSampleSize,
		Page:       1,
	})
	if err != nil {
		return models.Signal[[]models.Issue]{}, err
	}
	out := make([]models.Issue, 0, len(page.Issues))
	for _, i := range page.Issues {
		if i.Type == models.TypeVulnerability {
			out = append(out, i)
		}
	}
	return models.Estimated(out), nil
}

// distinctRules counts the rules behind the sampled vulnerabilities.
func distinctRules(sample []models.Issue) int {
	rules := make(map[string]struct{})
	for _, i := range sample {
		if i.Rule != "" {
			rules[i.Rule] = struct{}{}
		}
	}
	return len(rules)
}

// hotspotCategories buckets sampled vulnerabilities by topic. Every topic
// is present, zero or not.
func hotspotCategories(sample []models.Issue) map[string]int {
	out := make(map[string]int, len(hotspotTopics)+1)
	for _, t := range hotspotTopics {
		out[t.name] = 0
	}
	out[otherHotspotTopic] = 0
	for _, i := range sample {
		rule, msg := strings.ToLower(i.Rule), strings.ToLower(i.Message)
		matched := false
		for _, t := range hotspotTopics {
			if containsAny(rule, t.rule) || containsAny(msg, t.message) {
				out[t.name]++
				matched = true
			}
		}
		if !matched {
			out[otherHotspotTopic]++
		}
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// relatedCVEs looks up each category in turn; the NVD rate limit makes
// parallel lookups pointless. Any failure fails the signal.
func (s *Service) relatedCVEs(ctx context.Context, ids []string) (models.Signal[map[string]models.CVELookup], error) {
	n := min(len(ids), max(s.config.NVD.Categories, 1))
	out := make(map[string]models.CVELookup, n)
	for _, id := range ids[:n] {
		res, err := s.cves.CVEsByWeakness(ctx, id)
		if err != nil {
			return models.Signal[map[string]models.CVELookup]{}, err
		}
		out[res.CWE] = *res
	}
	return models.Measured(out), nil
}

func (s *Service) projectMetrics(ctx context.Context, projectKey string) (models.Signal[map[string]models.MetricValue], error) {
	if projectKey == "" {
		return models.Signal[map[string]models.MetricValue]{}, errNoProject
	}
	measures, err := s.client.GetMeasures(ctx, projectKey, securityMetricKeys)
	if err != nil {
		return models.Signal[map[string]models.MetricValue]{}, err
	}
	out := make(map[string]models.MetricValue, len(measures))
	for _, m := range measures {
		out[m.Metric] = models.MetricValue{Value: m.Value, BestValue: m.BestValue}
	}
	return models.Measured(out), nil
}

func (s *Service) securityTrends(ctx context.Context, projectKey string) (models.Signal[map[string]models.MetricTrend], error) {
	if projectKey == "" {
		return models.Signal[map[string]models.MetricTrend]{}, errNoProject
	}
	measures, err := s.client.GetMeasures(ctx, projectKey, trendMetricKeys)
	if err != nil {
		return models.Signal[map[string]models.MetricTrend]{}, err
	}
	return models.Measured(Trends(measures)), nil
}

// Trends pairs each metric with its new_ counterpart. A direction is set
// only when both values are present: increasing when new code adds to the
// metric, stable otherwise.
func Trends(measures []models.Measure) map[string]models.MetricTrend {
	type pair struct {
		t          models.MetricTrend
		hasCurrent bool
		hasNew     bool
	}
	pairs := make(map[string]*pair)
	get := func(k string) *pair {
		p, ok := pairs[k]
		if !ok {
			p = &pair{}
			pairs[k] = p
		}
		return p
	}

	for _, m := range measures {
		if base, ok := strings.CutPrefix(m.Metric, "new_"); ok {
			p := get(base)
			v := m.Value
			if v == "" {
				v = m.PeriodValue
			}
			p.t.New = parseCount(v)
			p.hasNew = true
			continue
		}
		p := get(m.Metric)
		p.t.Current = parseCount(m.Value)
		p.hasCurrent = true
	}

	out := make(map[string]models.MetricTrend, len(pairs))
	for k, p := range pairs {
		if p.hasCurrent && p.hasNew {
			p.t.Trend = "stable"
			if p.t.New > 0 {
				p.t.Trend = "increasing"
			}
		}
		out[k] = p.t
	}
	return out
}

// countSecurityIssues counts issues that look security related and, separately,
// vulnerabilities.
func countSecurityIssues(issues []models.ClassifiedIssue) models.SecurityIssueCounts {
	var c models.SecurityIssueCounts
	for _, ci := range issues {
		if isSecurityRelated(ci.Issue) {
			c.SecurityIssues++
		}
		if ci.Type == models.TypeVulnerability {
			c.VulnerabilityIssues++
		}
	}
	return c
}

func isSecurityRelated(i models.Issue) bool {
	for _, t := range i.Tags {
		if strings.Contains(strings.ToLower(t), "security") {
			return true
		}
	}
	return strings.Contains(strings.ToLower(i.Rule), "security") ||
		strings.Contains(strings.ToLower(i.Message), "security")
}

// parseCount reads a measure value as an integer; ratings like "2.0"
// truncate and unparseable values are zero.
func parseCount(v string) int {
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(f)
}

// SortedTrendKeys returns trend metric names in a stable order.
func SortedTrendKeys(trends map[string]models.MetricTrend) []string {
	keys := make([]string, 0, len(trends))
	for k := range trends {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
