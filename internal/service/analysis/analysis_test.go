package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/cwelens/internal/sonar"
	"github.com/panbanda/cwelens/internal/sonar/mocks"
	"github.com/panbanda/cwelens/pkg/analyzer/rulecatalog"
	"github.com/panbanda/cwelens/pkg/config"
	"github.com/panbanda/cwelens/pkg/models"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Sonar.AuxTimeoutSeconds = 1
	cfg.Cache.Enabled = false
	return cfg
}

func newTestService(api sonar.API, opts ...Option) *Service {
	base := []Option{WithConfig(testConfig()), WithClient(api), WithClock(func() time.Time { return fixedNow })}
	return New(append(base, opts...)...)
}

func scenarioIssues() []models.Issue {
	return []models.Issue{
		{Key: "A", Rule: "java:S3649", Severity: models.SeverityCritical, Type: models.TypeVulnerability, Project: "proj", Message: "Fix this SQL injection"},
		{Key: "B", Rule: "js:S9999", Severity: models.SeverityMajor, Type: models.TypeBug, Project: "proj", Tags: []string{"cwe-89", "security"}},
		{Key: "C", Rule: "js:S5131", Severity: models.SeverityMajor, Type: models.TypeVulnerability, Project: "proj"},
	}
}

// expectIssueSearches answers the primary issue search; vulnerability-only
// searches are the rule estimate.
func expectIssueSearches(api *mocks.MockAPI, issues []models.Issue) {
	api.EXPECT().SearchIssues(mock.Anything, mock.Anything).RunAndReturn(
		func(_ context.Context, f sonar.IssueFilter) (*sonar.IssuesPage, error) {
			if len(f.Types) == 1 && f.Types[0] == string(models.TypeVulnerability) {
				return &sonar.IssuesPage{Issues: []models.Issue{
					{Key: "v1", Rule: "java:S3649", Type: models.TypeVulnerability, Message: "Build this SQL query safely"},
					{Key: "v2", Rule: "java:S3649", Type: models.TypeVulnerability},
					{Key: "v3", Rule: "js:S5131", Type: models.TypeVulnerability, Message: "Possible XSS in template"},
				}, Paging: sonar.Paging{Total: 3}}, nil
			}
			return &sonar.IssuesPage{Issues: issues, Paging: sonar.Paging{PageIndex: f.Page, PageSize: f.PageSize, Total: len(issues)}}, nil
		})
}

func measuresFor(_ context.Context, _ string, keys []string) ([]models.Measure, error) {
	if len(keys) == 1 {
		return []models.Measure{{Metric: "security_hotspots", Value: "7"}}, nil
	}
	if len(keys) == len(trendMetricKeys) {
		return []models.Measure{
			{Metric: "vulnerabilities", Value: "4"},
			{Metric: "new_vulnerabilities", PeriodValue: "2"},
			{Metric: "bugs", Value: "10"},
			{Metric: "new_bugs", Value: "0"},
			{Metric: "security_rating", Value: "3.0"},
		}, nil
	}
	return []models.Measure{
		{Metric: "security_rating", Value: "3.0"},
		{Metric: "vulnerabilities", Value: "4", BestValue: false},
	}, nil
}

func TestAnalyzeCWE_ThreeIssueScenario(t *testing.T) {
	api := mocks.NewMockAPI(t)
	expectIssueSearches(api, scenarioIssues())
	api.EXPECT().SearchRulesByKeys(mock.Anything, []string{"java:S3649", "js:S5131", "js:S9999"}).Return([]models.Rule{
		{Key: "java:S3649", SecurityStandards: map[string][]string{"cwe": {"89"}}},
		{Key: "js:S9999"},
		{Key: "js:S5131"},
	}, nil)
	api.EXPECT().GetMeasures(mock.Anything, "proj", mock.Anything).RunAndReturn(measuresFor)
	api.EXPECT().IssueFacet(mock.Anything, mock.Anything, "cwe").Return(map[string]int{"CWE-89": 2, "CWE-79": 1}, nil)

	res, err := newTestService(api).AnalyzeCWE(context.Background(), CWEOptions{ProjectKey: "proj"})
	require.NoError(t, err)

	assert.Equal(t, 3, res.TotalIssues)
	assert.Equal(t, 3, res.IssuesWithCWE)
	assert.Equal(t, "proj", res.ProjectKey)
	assert.Equal(t, fixedNow, res.GeneratedAt)
	assert.Len(t, res.Fingerprint, 16)

	byKey := map[string]models.Classification{}
	for _, ci := range res.Issues {
		byKey[ci.Key] = ci.Classification
	}
	assert.Equal(t, models.Classification{CWEs: []string{"CWE-89"}, Confidence: models.ConfidenceHigh, Source: models.SourceDeclared}, byKey["A"])
	assert.Equal(t, models.Classification{CWEs: []string{"CWE-89"}, Confidence: models.ConfidenceMedium, Source: models.SourceIssueTag}, byKey["B"])
	assert.Equal(t, models.Classification{CWEs: []string{"CWE-79"}, Confidence: models.ConfidenceMedium, Source: models.SourceRuleKey}, byKey["C"])

	require.Len(t, res.Statistics.TopCategories, 2)
	assert.Equal(t, models.CategoryShare{ID: "CWE-89", Count: 2, Percentage: 66.67}, res.Statistics.TopCategories[0])
	assert.Equal(t, models.CategoryShare{ID: "CWE-79", Count: 1, Percentage: 33.33}, res.Statistics.TopCategories[1])
	assert.Equal(t, 100.0, res.Statistics.Coverage.Percentage)

	aux := res.Auxiliary
	assert.Equal(t, models.Measured(7), aux.SecurityHotspots)
	assert.Equal(t, models.Estimated(2), aux.SecurityRules)
	assert.Equal(t, models.SignalMeasured, aux.CWEFacet.Status)
	assert.Equal(t, 2, aux.CWEFacet.Value["CWE-89"])
	assert.Equal(t, "3.0", aux.ProjectMetrics.Value["security_rating"].Value)
	assert.Equal(t, models.MetricTrend{Current: 4, New: 2, Trend: "increasing"}, aux.SecurityTrends.Value["vulnerabilities"])
	assert.Equal(t, models.MetricTrend{Current: 10, New: 0, Trend: "stable"}, aux.SecurityTrends.Value["bugs"])
	assert.Equal(t, models.SecurityIssueCounts{SecurityIssues: 1, VulnerabilityIssues: 2}, aux.SecurityIssues.Value)
	assert.Equal(t, models.SignalEstimated, aux.HotspotCategories.Status)
	assert.Equal(t, 7, aux.HotspotCategories.Value.Total)
	assert.Equal(t, map[string]int{
		"SQL Injection":              1,
		"Cross-Site Scripting (XSS)": 1,
		"Authentication Issues":      0,
		"Input Validation":           0,
		"Other Security Issues":      1,
	}, aux.HotspotCategories.Value.Categories)
	assert.Equal(t, models.SignalUnavailable, aux.RelatedCVEs.Status)
	assert.Empty(t, aux.RelatedCVEs.Error)
}

type cveFunc func(ctx context.Context, id string) (*models.CVELookup, error)

func (f cveFunc) CVEsByWeakness(ctx context.Context, id string) (*models.CVELookup, error) {
	return f(ctx, id)
}

func TestAnalyzeCWE_RelatedCVEs(t *testing.T) {
	issues := []models.Issue{
		{Key: "A", Rule: "java:S3649", Project: "proj"},
		{Key: "B", Rule: "java:S3649", Project: "proj"},
		{Key: "C", Rule: "js:S5131", Project: "proj"},
		{Key: "D", Rule: "java:S6096", Project: "proj"},
	}
	expect := func(api *mocks.MockAPI) {
		expectIssueSearches(api, issues)
		api.EXPECT().SearchRulesByKeys(mock.Anything, mock.Anything).Return([]models.Rule{}, nil)
		api.EXPECT().GetRule(mock.Anything, mock.Anything).Return(nil, nil)
		api.EXPECT().GetMeasures(mock.Anything, "proj", mock.Anything).RunAndReturn(measuresFor)
		api.EXPECT().IssueFacet(mock.Anything, mock.Anything, "cwe").Return(map[string]int{}, nil)
	}

	t.Run("top categories looked up", func(t *testing.T) {
		api := mocks.NewMockAPI(t)
		expect(api)
		var asked []string
		src := cveFunc(func(_ context.Context, id string) (*models.CVELookup, error) {
			asked = append(asked, id)
			return &models.CVELookup{CWE: id, Total: 3, CVEs: []models.CVE{{ID: "CVE-2024-0001", Severity: "HIGH"}}}, nil
		})
		cfg := testConfig()
		cfg.NVD.Enabled = true
		cfg.NVD.Categories = 2

		res, err := newTestService(api, WithConfig(cfg), WithCVESource(src)).AnalyzeCWE(context.Background(), CWEOptions{ProjectKey: "proj"})
		require.NoError(t, err)

		assert.Equal(t, []string{"CWE-89", "CWE-22"}, asked)
		sig := res.Auxiliary.RelatedCVEs
		assert.Equal(t, models.SignalMeasured, sig.Status)
		require.Len(t, sig.Value, 2)
		assert.Equal(t, 3, sig.Value["CWE-89"].Total)
		assert.Equal(t, "CVE-2024-0001", sig.Value["CWE-22"].CVEs[0].ID)
	})

	t.Run("lookup failure degrades", func(t *testing.T) {
		api := mocks.NewMockAPI(t)
		expect(api)
		src := cveFunc(func(context.Context, string) (*models.CVELookup, error) {
			return nil, errors.New("nvd: HTTP 403")
		})
		cfg := testConfig()
		cfg.NVD.Enabled = true

		res, err := newTestService(api, WithConfig(cfg), WithCVESource(src)).AnalyzeCWE(context.Background(), CWEOptions{ProjectKey: "proj"})
		require.NoError(t, err)

		sig := res.Auxiliary.RelatedCVEs
		assert.Equal(t, models.SignalUnavailable, sig.Status)
		assert.Contains(t, sig.Error, "403")
		assert.NotNil(t, sig.Value)
		assert.Equal(t, 4, res.IssuesWithCWE)
	})
}

func TestCVEs(t *testing.T) {
	src := cveFunc(func(_ context.Context, id string) (*models.CVELookup, error) {
		if id == "bad" {
			return nil, errors.New("invalid")
		}
		return &models.CVELookup{CWE: "CWE-79", Total: 1}, nil
	})
	svc := newTestService(mocks.NewMockAPI(t), WithCVESource(src))

	got, err := svc.CVEs(context.Background(), "79")
	require.NoError(t, err)
	assert.Equal(t, "CWE-79", got.CWE)

	_, err = svc.CVEs(context.Background(), "bad")
	assert.ErrorContains(t, err, "looking up CVEs for bad")
}

func TestHotspotCategories(t *testing.T) {
	sample := []models.Issue{
		{Rule: "java:S2077", Message: "Make sure using a dynamically formatted SQL query is safe"},
		{Rule: "php:S5131", Message: "XSS: escape this value"},
		{Rule: "java:S2068", Message: "Hard-coded password"},
		{Rule: "py:S4507", Message: "Missing validation of the redirect target"},
		{Rule: "js:S4790", Message: "Weak hash"},
		{Rule: "java:S5332", Message: "Login form over SQL-backed HTTP"},
	}
	got := hotspotCategories(sample)
	assert.Equal(t, map[string]int{
		"SQL Injection":              2,
		"Cross-Site Scripting (XSS)": 1,
		"Authentication Issues":      2,
		"Input Validation":           1,
		"Other Security Issues":      1,
	}, got)

	empty := hotspotCategories(nil)
	assert.Len(t, empty, 5)
	assert.Equal(t, 0, empty["Other Security Issues"])
}

func TestAnalyzeCWE_AuxiliaryFailureDegrades(t *testing.T) {
	api := mocks.NewMockAPI(t)
	expectIssueSearches(api, scenarioIssues())
	api.EXPECT().SearchRulesByKeys(mock.Anything, mock.Anything).Return([]models.Rule{}, nil)
	api.EXPECT().GetRule(mock.Anything, mock.Anything).Return(nil, nil)
	api.EXPECT().GetMeasures(mock.Anything, mock.Anything, mock.Anything).Return(nil, &sonar.APIError{StatusCode: 500, Endpoint: "/api/measures/component"})
	api.EXPECT().IssueFacet(mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("facet failed"))

	res, err := newTestService(api).AnalyzeCWE(context.Background(), CWEOptions{ProjectKey: "proj"})
	require.NoError(t, err)

	aux := res.Auxiliary
	assert.Equal(t, models.SignalUnavailable, aux.SecurityHotspots.Status)
	assert.Equal(t, 0, aux.SecurityHotspots.Value)
	assert.NotEmpty(t, aux.SecurityHotspots.Error)
	assert.Equal(t, models.SignalUnavailable, aux.CWEFacet.Status)
	assert.NotNil(t, aux.CWEFacet.Value)
	assert.Equal(t, models.SignalUnavailable, aux.ProjectMetrics.Status)
	assert.NotNil(t, aux.SecurityTrends.Value)
	assert.True(t, aux.SecurityRules.Available())
}

func TestAnalyzeCWE_AuxiliaryTimeout(t *testing.T) {
	api := mocks.NewMockAPI(t)
	expectIssueSearches(api, nil)
	api.EXPECT().GetMeasures(mock.Anything, mock.Anything, mock.Anything).RunAndReturn(
		func(ctx context.Context, _ string, _ []string) ([]models.Measure, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		})
	api.EXPECT().IssueFacet(mock.Anything, mock.Anything, mock.Anything).Return(map[string]int{}, nil)

	start := time.Now()
	res, err := newTestService(api).AnalyzeCWE(context.Background(), CWEOptions{ProjectKey: "proj"})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.Equal(t, models.SignalUnavailable, res.Auxiliary.SecurityHotspots.Status)
	assert.Contains(t, res.Auxiliary.SecurityHotspots.Error, "deadline")
	assert.Equal(t, models.SignalMeasured, res.Auxiliary.CWEFacet.Status)
}

func TestAnalyzeCWE_IssueFetchFailure(t *testing.T) {
	api := mocks.NewMockAPI(t)
	api.EXPECT().SearchIssues(mock.Anything, mock.Anything).Return(nil, &sonar.APIError{StatusCode: 401})

	_, err := newTestService(api).AnalyzeCWE(context.Background(), CWEOptions{ProjectKey: "proj"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIssuesUnavailable)
	assert.ErrorIs(t, err, sonar.ErrUnauthorized)
}

func TestAnalyzeCWE_CatalogFailureIsFatal(t *testing.T) {
	api := mocks.NewMockAPI(t)
	expectIssueSearches(api, scenarioIssues())
	api.EXPECT().SearchRulesByKeys(mock.Anything, mock.Anything).Return(nil, errors.New("down"))
	api.EXPECT().GetRule(mock.Anything, mock.Anything).Return(nil, errors.New("down"))

	_, err := newTestService(api).AnalyzeCWE(context.Background(), CWEOptions{ProjectKey: "proj"})
	require.Error(t, err)
	assert.ErrorIs(t, err, rulecatalog.ErrCatalogUnavailable)
}

func TestAnalyzeCWE_ProjectKeyFallsBackToFirstIssue(t *testing.T) {
	api := mocks.NewMockAPI(t)
	expectIssueSearches(api, scenarioIssues())
	api.EXPECT().SearchRulesByKeys(mock.Anything, mock.Anything).RunAndReturn(
		func(_ context.Context, keys []string) ([]models.Rule, error) {
			rules := make([]models.Rule, len(keys))
			for i, k := range keys {
				rules[i] = models.Rule{Key: k}
			}
			return rules, nil
		})
	api.EXPECT().GetMeasures(mock.Anything, "proj", mock.Anything).RunAndReturn(measuresFor)
	api.EXPECT().IssueFacet(mock.Anything, sonar.IssueFilter{}, "cwe").Return(map[string]int{}, nil)

	res, err := newTestService(api).AnalyzeCWE(context.Background(), CWEOptions{})
	require.NoError(t, err)
	assert.Equal(t, "proj", res.ProjectKey)
	assert.Equal(t, models.Measured(7), res.Auxiliary.SecurityHotspots)
}

func TestAnalyzeCWE_EmptyProjectWithoutIssues(t *testing.T) {
	api := mocks.NewMockAPI(t)
	expectIssueSearches(api, nil)
	api.EXPECT().IssueFacet(mock.Anything, mock.Anything, mock.Anything).Return(map[string]int{}, nil)

	res, err := newTestService(api).AnalyzeCWE(context.Background(), CWEOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0, res.TotalIssues)
	assert.NotNil(t, res.Issues)
	assert.Empty(t, res.ProjectKey)
	assert.Equal(t, 0.0, res.Statistics.Coverage.Percentage)
	assert.Equal(t, models.SignalUnavailable, res.Auxiliary.SecurityHotspots.Status)
	assert.Equal(t, models.SignalUnavailable, res.Auxiliary.ProjectMetrics.Status)
	assert.Equal(t, models.Estimated(models.SecurityIssueCounts{}), res.Auxiliary.SecurityIssues)
}

func TestAnalyzeCWE_SkipAuxiliary(t *testing.T) {
	api := mocks.NewMockAPI(t)
	api.EXPECT().SearchIssues(mock.Anything, mock.Anything).Return(&sonar.IssuesPage{
		Issues: []models.Issue{{Key: "A", Rule: "python:S2076", Project: "p"}},
		Paging: sonar.Paging{Total: 1},
	}, nil).Once()
	api.EXPECT().SearchRulesByKeys(mock.Anything, []string{"python:S2076"}).Return([]models.Rule{{Key: "python:S2076"}}, nil)

	res, err := newTestService(api).AnalyzeCWE(context.Background(), CWEOptions{SkipAuxiliary: true})
	require.NoError(t, err)
	assert.Equal(t, models.DefaultAuxiliary(), res.Auxiliary)
	assert.Equal(t, []string{"CWE-79"}, res.Issues[0].CWEs)
}

func TestAnalyzeCWE_CoveragePrecision(t *testing.T) {
	issues := []models.Issue{
		{Key: "A", Rule: "java:S3649", Project: "p"},
		{Key: "B", Rule: "java:S1", Project: "p"},
		{Key: "C", Rule: "python:S2076", Project: "p"},
	}
	tests := []struct {
		precision int
		want      float64
	}{
		{0, 67},
		{2, 66.67},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("precision %d", tt.precision), func(t *testing.T) {
			api := mocks.NewMockAPI(t)
			api.EXPECT().SearchIssues(mock.Anything, mock.Anything).Return(&sonar.IssuesPage{
				Issues: issues,
				Paging: sonar.Paging{Total: len(issues)},
			}, nil).Once()
			api.EXPECT().SearchRulesByKeys(mock.Anything, mock.Anything).Return([]models.Rule{
				{Key: "java:S3649"}, {Key: "java:S1"}, {Key: "python:S2076"},
			}, nil)

			cfg := testConfig()
			cfg.Analysis.CoveragePrecision = tt.precision
			res, err := newTestService(api, WithConfig(cfg)).AnalyzeCWE(context.Background(), CWEOptions{SkipAuxiliary: true})
			require.NoError(t, err)
			assert.Equal(t, 2, res.Statistics.Coverage.Classified)
			assert.Equal(t, tt.want, res.Statistics.Coverage.Percentage)
		})
	}
}

func TestAnalyzeCWE_Filter(t *testing.T) {
	api := mocks.NewMockAPI(t)
	expectIssueSearches(api, scenarioIssues())
	api.EXPECT().SearchRulesByKeys(mock.Anything, mock.Anything).Return([]models.Rule{
		{Key: "java:S3649", SecurityStandards: map[string][]string{"cwe": {"89"}}},
		{Key: "js:S9999"},
		{Key: "js:S5131"},
	}, nil)

	res, err := newTestService(api).AnalyzeCWE(context.Background(), CWEOptions{
		ProjectKey:    "proj",
		SkipAuxiliary: true,
		Filter:        &models.IssueFilter{CWEs: []string{"CWE-79"}},
	})
	require.NoError(t, err)
	require.Equal(t, 1, res.TotalIssues)
	assert.Equal(t, "C", res.Issues[0].Key)
	assert.Equal(t, map[string]int{"CWE-79": 1}, res.Statistics.Counts)
}

func TestFetchIssues_Paging(t *testing.T) {
	all := make([]models.Issue, 5)
	for i := range all {
		all[i] = models.Issue{Key: string(rune('a' + i))}
	}

	tests := []struct {
		name      string
		maxPages  int
		wantCount int
		wantCalls int
	}{
		{"reads every page", 10, 5, 3},
		{"stops at page limit", 2, 4, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := mocks.NewMockAPI(t)
			calls := 0
			api.EXPECT().SearchIssues(mock.Anything, mock.Anything).RunAndReturn(
				func(_ context.Context, f sonar.IssueFilter) (*sonar.IssuesPage, error) {
					calls++
					assert.Equal(t, 2, f.PageSize)
					start := (f.Page - 1) * f.PageSize
					end := min(start+f.PageSize, len(all))
					return &sonar.IssuesPage{Issues: all[start:end], Paging: sonar.Paging{PageIndex: f.Page, PageSize: 2, Total: len(all)}}, nil
				})

			var progress []int
			issues, err := newTestService(api).FetchIssues(context.Background(), CWEOptions{
				PageSize: 2,
				MaxPages: tt.maxPages,
				OnPage:   func(fetched, _ int) { progress = append(progress, fetched) },
			})
			require.NoError(t, err)
			assert.Len(t, issues, tt.wantCount)
			assert.Equal(t, tt.wantCalls, calls)
			assert.Len(t, progress, tt.wantCalls)
		})
	}
}

func TestFetchIssues_StopsAtSearchWindow(t *testing.T) {
	tests := []struct {
		name      string
		pageSize  int
		maxPages  int
		wantCount int
	}{
		{"large pages", 500, 30, 10000},
		{"uneven page size", 300, 100, 9900},
		{"page limit below window", 500, 4, 2000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := mocks.NewMockAPI(t)
			api.EXPECT().SearchIssues(mock.Anything, mock.Anything).RunAndReturn(
				func(_ context.Context, f sonar.IssueFilter) (*sonar.IssuesPage, error) {
					if f.Page*f.PageSize > sonar.MaxSearchResults {
						return nil, &sonar.APIError{StatusCode: 400, Endpoint: "/api/issues/search", Body: "Can return only the first 10000 results"}
					}
					page := make([]models.Issue, f.PageSize)
					for i := range page {
						page[i] = models.Issue{Key: fmt.Sprintf("k%d-%d", f.Page, i)}
					}
					return &sonar.IssuesPage{Issues: page, Paging: sonar.Paging{PageIndex: f.Page, PageSize: f.PageSize, Total: 25000}}, nil
				})

			issues, err := newTestService(api).FetchIssues(context.Background(), CWEOptions{
				PageSize: tt.pageSize,
				MaxPages: tt.maxPages,
			})
			require.NoError(t, err)
			assert.Len(t, issues, tt.wantCount)
		})
	}
}

func TestFetchIssues_ClampsPageSize(t *testing.T) {
	api := mocks.NewMockAPI(t)
	api.EXPECT().SearchIssues(mock.Anything, mock.MatchedBy(func(f sonar.IssueFilter) bool {
		return f.PageSize == sonar.MaxPageSize && f.Page == 1
	})).Return(&sonar.IssuesPage{Paging: sonar.Paging{Total: 0}}, nil).Once()

	issues, err := newTestService(api).FetchIssues(context.Background(), CWEOptions{PageSize: 10000})
	require.NoError(t, err)
	assert.NotNil(t, issues)
	assert.Empty(t, issues)
}

func TestClassifyIssue_CatalogUnavailableFallsThrough(t *testing.T) {
	tests := []struct {
		name       string
		issue      models.Issue
		wantCWEs   []string
		wantSource models.ClassificationSource
	}{
		{"issue tags", models.Issue{Key: "a", Rule: "java:S3649", Tags: []string{"cwe-79"}}, []string{"CWE-79"}, models.SourceIssueTag},
		{"rule number table", models.Issue{Key: "b", Rule: "java:S3649"}, []string{"CWE-89"}, models.SourceRuleKey},
		{"no evidence", models.Issue{Key: "c", Rule: "java:S1"}, []string{}, models.SourceNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := mocks.NewMockAPI(t)
			api.EXPECT().SearchRulesByKeys(mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
			api.EXPECT().GetRule(mock.Anything, tt.issue.Rule).Return(nil, errors.New("connection refused"))

			c, err := newTestService(api).ClassifyIssue(context.Background(), tt.issue)
			require.NoError(t, err)
			assert.Equal(t, tt.wantCWEs, c.CWEs)
			assert.Equal(t, tt.wantSource, c.Source)
		})
	}
}

func TestClassifyIssue(t *testing.T) {
	api := mocks.NewMockAPI(t)
	api.EXPECT().SearchRulesByKeys(mock.Anything, []string{"java:S2083"}).Return([]models.Rule{{Key: "java:S2083"}}, nil)

	svc := newTestService(api)
	c, err := svc.ClassifyIssue(context.Background(), models.Issue{Key: "x", Rule: "java:S2083"})
	require.NoError(t, err)
	assert.Equal(t, []string{"CWE-367"}, c.CWEs)
	assert.Equal(t, models.SourceRuleKey, c.Source)

	c, err = svc.ClassifyIssue(context.Background(), models.Issue{Key: "y", Tags: []string{"CWE_22"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"CWE-22"}, c.CWEs)
}

func TestTrends(t *testing.T) {
	got := Trends([]models.Measure{
		{Metric: "security_hotspots", Value: "3"},
		{Metric: "new_security_hotspots", Value: "0"},
		{Metric: "vulnerabilities", Value: "5"},
		{Metric: "new_bugs", PeriodValue: "4"},
		{Metric: "reliability_rating", Value: "2.0"},
	})

	assert.Equal(t, models.MetricTrend{Current: 3, New: 0, Trend: "stable"}, got["security_hotspots"])
	assert.Equal(t, models.MetricTrend{Current: 5}, got["vulnerabilities"])
	assert.Equal(t, models.MetricTrend{New: 4}, got["bugs"])
	assert.Equal(t, models.MetricTrend{Current: 2}, got["reliability_rating"])
	assert.Equal(t, []string{"bugs", "reliability_rating", "security_hotspots", "vulnerabilities"}, SortedTrendKeys(got))
}

func TestParseCount(t *testing.T) {
	tests := map[string]int{
		"12":  12,
		"2.0": 2,
		"":    0,
		"abc": 0,
		"NaN": 0,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseCount(in), in)
	}
}

func TestEngineFromConfig(t *testing.T) {
	cfg := testConfig()
	e, err := EngineFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, 30, e.Table().Len())

	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  \"4790\": CWE-328\n"), 0o644))
	cfg.Analysis.RuleTable = path
	e, err = EngineFromConfig(cfg)
	require.NoError(t, err)
	id, ok := e.Table().Lookup("4790")
	assert.True(t, ok)
	assert.Equal(t, "CWE-328", id)

	cfg.Analysis.RuleTable = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = EngineFromConfig(cfg)
	assert.Error(t, err)
}
