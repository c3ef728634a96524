package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/cwelens/internal/cache"
	"github.com/panbanda/cwelens/pkg/models"
)

// runApp runs the CLI with args and returns stdout.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}
	err := app.Run(append([]string{"cwelens", "--no-color"}, args...))
	return out.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cwelens.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSplitList(t *testing.T) {
	tests := []struct {
		name  string
		in    []string
		upper bool
		want  []string
	}{
		{name: "nil", in: nil, want: nil},
		{name: "comma separated", in: []string{"bug, vulnerability"}, upper: true, want: []string{"BUG", "VULNERABILITY"}},
		{name: "repeated", in: []string{"CWE-89", "cwe-79"}, want: []string{"CWE-89", "cwe-79"}},
		{name: "empty parts", in: []string{",,MAJOR,"}, upper: true, want: []string{"MAJOR"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitList(tt.in, tt.upper)
			if fmt.Sprint(got) != fmt.Sprint(tt.want) {
				t.Errorf("splitList(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestCWEOptions(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		check   func(t *testing.T, project string, resolved *bool, filter *models.IssueFilter, types []string)
		wantErr bool
	}{
		{
			name: "positional project",
			args: []string{"shop"},
			check: func(t *testing.T, project string, resolved *bool, filter *models.IssueFilter, _ []string) {
				if project != "shop" || resolved != nil || filter != nil {
					t.Errorf("project=%q resolved=%v filter=%v", project, resolved, filter)
				}
			},
		},
		{
			name: "flags",
			args: []string{"--project", "api", "--type", "bug,vulnerability", "--resolved", "false", "--cwe", "89"},
			check: func(t *testing.T, project string, resolved *bool, filter *models.IssueFilter, types []string) {
				if project != "api" {
					t.Errorf("project = %q", project)
				}
				if resolved == nil || *resolved {
					t.Errorf("resolved = %v, want false", resolved)
				}
				if filter == nil || fmt.Sprint(filter.CWEs) != "[CWE-89]" {
					t.Errorf("filter = %+v", filter)
				}
				if fmt.Sprint(types) != "[BUG VULNERABILITY]" {
					t.Errorf("types = %v", types)
				}
			},
		},
		{
			name:    "invalid resolved",
			args:    []string{"--resolved", "maybe"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &cli.App{
				Flags: selectionFlags(),
				Action: func(c *cli.Context) error {
					opts, err := cweOptions(c)
					if (err != nil) != tt.wantErr {
						t.Fatalf("cweOptions() error = %v, wantErr %v", err, tt.wantErr)
					}
					if tt.check != nil {
						tt.check(t, opts.ProjectKey, opts.Resolved, opts.Filter, opts.Types)
					}
					return nil
				},
			}
			if err := app.Run(append([]string{"test"}, tt.args...)); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestCWELookupCommand(t *testing.T) {
	out, err := runApp(t, "cwe", "lookup", "-f", "json", "89", "CWE-79")
	if err != nil {
		t.Fatalf("cwe lookup: %v", err)
	}
	var entries []map[string]any
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if len(entries) != 2 || entries[0]["name"] != "SQL Injection" {
		t.Errorf("entries = %v", entries)
	}
}

func TestCWELookupUnknown(t *testing.T) {
	if _, err := runApp(t, "cwe", "lookup", "CWE-99999"); err == nil {
		t.Error("expected error for unknown id")
	}
}

func TestCWESearchText(t *testing.T) {
	out, err := runApp(t, "cwe", "search", "-f", "text", "traversal")
	if err != nil {
		t.Fatalf("cwe search: %v", err)
	}
	if !strings.Contains(out, "CWE-22") {
		t.Errorf("output missing CWE-22:\n%s", out)
	}
}

func TestCWECVEsCommand(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		fmt.Fprint(w, `{"totalResults": 41, "vulnerabilities": [
			{"cve": {"id": "CVE-2024-1111", "published": "2024-03-01T00:00:00.000",
				"descriptions": [{"lang": "en", "value": "Path traversal in upload"}],
				"metrics": {"cvssMetricV31": [{"cvssData": {"baseScore": 7.5, "baseSeverity": "HIGH"}}]}}}
		]}`)
	}))
	t.Cleanup(srv.Close)
	t.Setenv("CWELENS_NVD_BASE_URL", srv.URL)

	out, err := runApp(t, "cwe", "cves", "-f", "json", "--limit", "5", "cwe_22")
	if err != nil {
		t.Fatalf("cwe cves: %v", err)
	}
	if gotQuery != "cweId=CWE-22&resultsPerPage=5&startIndex=0" {
		t.Errorf("query = %q", gotQuery)
	}
	var got models.CVELookup
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if got.CWE != "CWE-22" || got.Total != 41 || len(got.CVEs) != 1 || got.CVEs[0].Severity != "HIGH" {
		t.Errorf("lookup = %+v", got)
	}

	if _, err := runApp(t, "cwe", "cves", "path traversal"); err == nil {
		t.Error("expected error for a non-identifier")
	}
}

func TestRulesTableCommand(t *testing.T) {
	out, err := runApp(t, "rules", "table", "-f", "json")
	if err != nil {
		t.Fatalf("rules table: %v", err)
	}
	var table map[string]string
	if err := json.Unmarshal([]byte(out), &table); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if table["3649"] != "CWE-89" {
		t.Errorf("3649 = %q, want CWE-89", table["3649"])
	}
}

func TestRulesSchemaCommand(t *testing.T) {
	out, err := runApp(t, "rules", "schema")
	if err != nil {
		t.Fatalf("rules schema: %v", err)
	}
	var schema map[string]any
	if err := json.Unmarshal([]byte(out), &schema); err != nil {
		t.Fatalf("schema is not JSON: %v", err)
	}
	if schema["title"] != "cwelens rule table" {
		t.Errorf("title = %v", schema["title"])
	}
}

func TestConfigShowRedactsToken(t *testing.T) {
	t.Setenv("SONAR_TOKEN", "")
	path := writeConfig(t, "[sonar]\ntoken = \"super-secret\"\norganization = \"acme\"\n")

	out, err := runApp(t, "-c", path, "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	if strings.Contains(out, "super-secret") {
		t.Error("token should be redacted")
	}
	for _, want := range []string{"# Configuration from: " + path, "********", "acme"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigValidate(t *testing.T) {
	valid := writeConfig(t, "[sonar]\norganization = \"acme\"\n")
	out, err := runApp(t, "-c", valid, "config", "validate")
	if err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}
	if !strings.Contains(out, "Configuration valid") {
		t.Errorf("output = %q", out)
	}

	invalid := writeConfig(t, "[sonar]\npage_size = 0\n[analysis]\ntop_n = 50\n")
	out, err = runApp(t, "-c", invalid, "config", "validate")
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"sonar.page_size", "analysis.top_n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestCacheStatsAndClear(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, fmt.Sprintf("[cache]\nenabled = true\ndir = %q\n", dir))
	if err := os.WriteFile(filepath.Join(dir, "x.json"), []byte(`{"key":"k","timestamp":"2026-01-01T00:00:00Z","data":"e30="}`), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := runApp(t, "-c", path, "cache", "stats", "-f", "json")
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	var st map[string]any
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if st["backend"] != "file" || st["entries"] != float64(1) {
		t.Errorf("stats = %v", st)
	}

	if _, err := runApp(t, "-c", path, "cache", "clear"); err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "x.json")); !os.IsNotExist(err) {
		t.Error("cache entry should be removed")
	}
}

func TestCacheClearRules(t *testing.T) {
	t.Setenv("SONAR_ORGANIZATION", "")
	dir := t.TempDir()
	path := writeConfig(t, fmt.Sprintf("[sonar]\norganization = \"acme\"\n[cache]\nenabled = true\ndir = %q\n", dir))

	backend, err := cache.NewFileStore(dir, time.Hour, true)
	if err != nil {
		t.Fatal(err)
	}
	store := cache.NewRecordStore(backend, "acme")
	ctx := context.Background()
	for _, r := range []string{"java:S2076", "java:S3649"} {
		if err := store.PutRecord(ctx, r, models.RuleRecord{Tags: []string{"cwe"}}); err != nil {
			t.Fatal(err)
		}
	}

	out, err := runApp(t, "-c", path, "cache", "clear", "java:S2076")
	if err != nil {
		t.Fatalf("cache clear: %v", err)
	}
	if !strings.Contains(out, "Removed 1 cached rules") {
		t.Errorf("output = %q", out)
	}
	if _, ok := store.GetRecord(ctx, "java:S2076"); ok {
		t.Error("java:S2076 should be removed")
	}
	if _, ok := store.GetRecord(ctx, "java:S3649"); !ok {
		t.Error("java:S3649 should be kept")
	}
}

// fakeSonar serves the two endpoints an analysis without auxiliary signals
// needs.
func fakeSonar(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/issues/search", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		fmt.Fprint(w, `{
			"total": 3,
			"paging": {"pageIndex": 1, "pageSize": 100, "total": 3},
			"issues": [
				{"key": "I1", "rule": "java:S3649", "severity": "CRITICAL", "type": "VULNERABILITY", "project": "shop", "component": "shop:Db.java", "line": 12},
				{"key": "I2", "rule": "js:S1000", "severity": "MAJOR", "type": "BUG", "project": "shop", "component": "shop:a.js", "tags": ["cwe-79"]},
				{"key": "I3", "rule": "js:S1001", "severity": "MINOR", "type": "CODE_SMELL", "project": "shop", "component": "shop:b.js"}
			]
		}`)
	})
	mux.HandleFunc("/api/rules/search", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total": 3, "rules": [
			{"key": "java:S3649", "securityStandards": {"cwe": ["89", "564"]}},
			{"key": "js:S1000"},
			{"key": "js:S1001"}
		]}`)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestAnalyzeCommand(t *testing.T) {
	t.Setenv("SONAR_TOKEN", "")
	srv := fakeSonar(t)
	path := writeConfig(t, fmt.Sprintf("[sonar]\nbase_url = %q\ntoken = \"tok\"\nretries = 0\n[cache]\nenabled = false\n", srv.URL))

	out, err := runApp(t, "-c", path, "analyze", "-f", "json", "--skip-auxiliary", "--no-progress", "shop")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	var a models.Analysis
	if err := json.Unmarshal([]byte(out), &a); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if a.TotalIssues != 3 || a.IssuesWithCWE != 2 {
		t.Errorf("total=%d with_cwe=%d", a.TotalIssues, a.IssuesWithCWE)
	}
	if a.Statistics.TotalOccurrences != 3 {
		t.Errorf("occurrences = %d, want 3", a.Statistics.TotalOccurrences)
	}
	if len(a.Fingerprint) != 16 {
		t.Errorf("fingerprint = %q", a.Fingerprint)
	}
	if a.Auxiliary.SecurityHotspots.Status != models.SignalUnavailable {
		t.Errorf("hotspots status = %q", a.Auxiliary.SecurityHotspots.Status)
	}
}

func TestAnalyzeCommandWithCVEs(t *testing.T) {
	t.Setenv("SONAR_TOKEN", "")
	srv := fakeSonar(t)
	nvdSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Query().Get("cweId")
		fmt.Fprintf(w, `{"totalResults": 9, "vulnerabilities": [{"cve": {"id": "CVE-2024-9999", "weaknesses": [{"description": [{"lang": "en", "value": %q}]}]}}]}`, id)
	}))
	t.Cleanup(nvdSrv.Close)
	path := writeConfig(t, fmt.Sprintf("[sonar]\nbase_url = %q\ntoken = \"tok\"\nretries = 0\n[nvd]\nbase_url = %q\n[cache]\nenabled = false\n", srv.URL, nvdSrv.URL))

	out, err := runApp(t, "-c", path, "analyze", "-f", "json", "--cves", "--no-progress", "shop")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var a models.Analysis
	if err := json.Unmarshal([]byte(out), &a); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	sig := a.Auxiliary.RelatedCVEs
	if sig.Status != models.SignalMeasured || len(sig.Value) == 0 {
		t.Fatalf("related CVEs = %+v", sig)
	}
	for id, l := range sig.Value {
		if l.Total != 9 || len(l.CVEs) != 1 || l.CVEs[0].CWEs[0] != id {
			t.Errorf("lookup for %s = %+v", id, l)
		}
	}
}

func TestReportCommandFromFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "analysis.json")
	a := models.Analysis{
		ProjectKey:  "shop",
		TotalIssues: 1,
		Issues:      []models.ClassifiedIssue{},
		Statistics: models.CWEStatistics{
			TopCategories: []models.CategoryShare{{ID: "CWE-89", Count: 1, Percentage: 100}},
		},
		Auxiliary: models.DefaultAuxiliary(),
	}
	data, _ := json.Marshal(a)
	if err := os.WriteFile(src, data, 0o644); err != nil {
		t.Fatal(err)
	}

	dst := filepath.Join(dir, "report.html")
	if _, err := runApp(t, "report", "--from", src, "-o", dst); err != nil {
		t.Fatalf("report: %v", err)
	}
	html, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(html), "SQL Injection") {
		t.Error("report missing top category name")
	}
}

func TestMCPManifestCommand(t *testing.T) {
	out, err := runApp(t, "mcp", "manifest")
	if err != nil {
		t.Fatalf("mcp manifest: %v", err)
	}
	if !strings.Contains(out, `"io.github.panbanda/cwelens"`) {
		t.Errorf("manifest = %s", out)
	}
}
