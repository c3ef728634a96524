package cwe

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/panbanda/cwelens/pkg/models"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"79", "CWE-79", true},
		{"CWE-79", "CWE-79", true},
		{"cwe-79", "CWE-79", true},
		{"cwe:89", "CWE-89", true},
		{"CWE_22", "CWE-22", true},
		{"cwe79", "CWE-79", true},
		{" 0079 ", "CWE-79", true},
		{"0", "CWE-0", true},
		{"", "", false},
		{"CWE-", "", false},
		{"owasp-a1", "", false},
		{"79a", "", false},
	}
	for _, tt := range tests {
		got, ok := Normalize(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Normalize(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestNormalizeAll(t *testing.T) {
	got := NormalizeAll([]string{"89", "CWE-79", "cwe-89", "bogus", "79"})
	want := []string{"CWE-89", "CWE-79"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NormalizeAll() = %v, want %v", got, want)
	}
	if empty := NormalizeAll(nil); empty == nil || len(empty) != 0 {
		t.Errorf("NormalizeAll(nil) = %#v, want empty non-nil", empty)
	}
}

func TestFromTags(t *testing.T) {
	tests := []struct {
		name string
		tags []string
		want []string
	}{
		{"dash", []string{"cwe-89"}, []string{"CWE-89"}},
		{"no separator", []string{"CWE79"}, []string{"CWE-79"}},
		{"bare digits ignored", []string{"79"}, []string{}},
		{"mixed", []string{"security", "cwe-22", "owasp-a1", "Cwe_78"}, []string{"CWE-22", "CWE-78"}},
		{"duplicates", []string{"cwe-89", "CWE-89"}, []string{"CWE-89"}},
		{"none", nil, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FromTags(tt.tags)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FromTags(%v) = %v, want %v", tt.tags, got, tt.want)
			}
		})
	}
}

func TestRuleNumber(t *testing.T) {
	tests := []struct {
		key    string
		want   string
		wantOK bool
	}{
		{"java:S3649", "3649", true},
		{"typescript:S106", "106", true},
		{"python:S12345", "", false},
		{"S3649", "", false},
		{"java:3649", "", false},
		{"java:S12", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := RuleNumber(tt.key)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("RuleNumber(%q) = %q, %v; want %q, %v", tt.key, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestDefaultRuleTable(t *testing.T) {
	table := DefaultRuleTable()
	cases := map[string]string{
		"java:S3649":       "CWE-89",
		"java:S2083":       "CWE-367",
		"javascript:S2076": "CWE-79",
		"php:S106":         "CWE-78",
		"java:S6096":       "CWE-22",
		"java:S5254":       "CWE-693",
	}
	for key, want := range cases {
		got, ok := table.LookupRuleKey(key)
		if !ok || got != want {
			t.Errorf("LookupRuleKey(%q) = %q, %v; want %q", key, got, ok, want)
		}
	}
	if _, ok := table.LookupRuleKey("java:S9999"); ok {
		t.Error("unexpected mapping for S9999")
	}
	for _, key := range []string{"Web:DoctypePresenceCheck", "Web:PageWithoutTitleCheck"} {
		if got, ok := table.LookupRuleKey(key); !ok || got != "CWE-693" {
			t.Errorf("LookupRuleKey(%q) = %q, %v; want CWE-693", key, got, ok)
		}
	}
	if got := len(table.Numbers()) + len(table.Keys()); got != table.Len() {
		t.Errorf("Len() = %d, want %d", table.Len(), got)
	}
	for _, n := range table.Numbers() {
		id, _ := table.Lookup(n)
		if !strings.HasPrefix(id, Prefix) {
			t.Errorf("entry %s maps to non-canonical %q", n, id)
		}
	}
}

func TestRuleTable_With(t *testing.T) {
	base := DefaultRuleTable()
	table, err := base.With(map[string]string{
		"java:S5145": "117",
		"3649":       "cwe-564",
	})
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}
	if got, _ := table.Lookup("5145"); got != "CWE-117" {
		t.Errorf("Lookup(5145) = %q", got)
	}
	if got, _ := table.Lookup("3649"); got != "CWE-564" {
		t.Errorf("Lookup(3649) = %q", got)
	}
	if got, _ := base.Lookup("3649"); got != "CWE-89" {
		t.Errorf("base table mutated: %q", got)
	}

	if _, err := base.With(map[string]string{"abc": "79"}); err == nil {
		t.Error("expected error for bad rule number")
	}
	if _, err := base.With(map[string]string{"1234": "nope"}); err == nil {
		t.Error("expected error for bad identifier")
	}
}

func TestRuleTable_WithExactKeys(t *testing.T) {
	base := DefaultRuleTable()
	table, err := base.With(map[string]string{
		"Web:ImgWithoutAltCheck":     "CWE-1022",
		" Web:DoctypePresenceCheck ": "79",
		"java:S2245":                 "330",
	})
	if err != nil {
		t.Fatalf("With() error = %v", err)
	}

	tests := []struct {
		key  string
		want string
	}{
		{"Web:ImgWithoutAltCheck", "CWE-1022"},
		{"Web:DoctypePresenceCheck", "CWE-79"},
		{"Web:PageWithoutTitleCheck", "CWE-693"},
		{"kotlin:S2245", "CWE-330"},
	}
	for _, tt := range tests {
		if got, ok := table.LookupRuleKey(tt.key); !ok || got != tt.want {
			t.Errorf("LookupRuleKey(%q) = %q, %v; want %q", tt.key, got, ok, tt.want)
		}
	}
	if _, ok := table.LookupRuleKey("Web:ImgWithoutAltChecks"); ok {
		t.Error("exact keys must not match by prefix")
	}
	if _, ok := base.LookupRuleKey("Web:ImgWithoutAltCheck"); ok {
		t.Error("base table mutated")
	}
	if got, want := table.Len(), base.Len()+2; got != want {
		t.Errorf("Len() = %d, want %d", got, want)
	}
	want := []string{"Web:DoctypePresenceCheck", "Web:ImgWithoutAltCheck", "Web:PageWithoutTitleCheck"}
	if got := table.Keys(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Keys() = %v, want %v", got, want)
	}
}

func TestLoadRuleTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	content := "rules:\n  \"4790\": CWE-328\n  \"java:S2245\": \"330\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	table, err := LoadRuleTable(path)
	if err != nil {
		t.Fatalf("LoadRuleTable() error = %v", err)
	}
	if table.Len() != DefaultRuleTable().Len()+2 {
		t.Errorf("Len() = %d", table.Len())
	}
	if got, _ := table.Lookup("2245"); got != "CWE-330" {
		t.Errorf("Lookup(2245) = %q", got)
	}

	if _, err := LoadRuleTable(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadRuleTableRejectsInvalidFiles(t *testing.T) {
	cases := map[string]string{
		"empty":          "",
		"unknown field":  "rules:\n  \"1\": CWE-1\nextra: true\n",
		"bad rule key":   "rules:\n  \"not a key\": CWE-1\n",
		"bad identifier": "rules:\n  \"4790\": weak hash\n",
		"rules not map":  "rules: [1, 2]\n",
	}
	dir := t.TempDir()
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".yaml")
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadRuleTable(path); err == nil {
				t.Errorf("LoadRuleTable(%q) expected error", content)
			}
		})
	}
}

func TestLoadRuleTableUnquotedNumbers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(path, []byte("rules:\n  4790: 328\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	table, err := LoadRuleTable(path)
	if err != nil {
		t.Fatalf("LoadRuleTable() error = %v", err)
	}
	if got, _ := table.Lookup("4790"); got != "CWE-328" {
		t.Errorf("Lookup(4790) = %q", got)
	}
}

func TestRuleTableSchema(t *testing.T) {
	if !strings.Contains(string(RuleTableSchema()), `"rules"`) {
		t.Error("schema does not describe rules")
	}
	if _, err := ruleSchema(); err != nil {
		t.Fatalf("schema does not compile: %v", err)
	}
}

func TestCatalog(t *testing.T) {
	e, ok := Lookup("79")
	if !ok || e.Name != "Cross-site Scripting (XSS)" {
		t.Fatalf("Lookup(79) = %+v, %v", e, ok)
	}
	if e.URL() != "https://cwe.mitre.org/data/definitions/79.html" {
		t.Errorf("URL() = %q", e.URL())
	}
	if _, ok := Lookup("CWE-9999"); ok {
		t.Error("unexpected entry for CWE-9999")
	}

	all := All()
	if len(all) != 10 {
		t.Fatalf("All() returned %d entries", len(all))
	}
	for i := 1; i < len(all); i++ {
		if Number(all[i-1].ID) >= Number(all[i].ID) {
			t.Errorf("All() not sorted at %d", i)
		}
	}

	if got := Search("injection"); len(got) != 3 {
		t.Errorf("Search(injection) = %d entries, want 3", len(got))
	}
	if got := Search(""); len(got) != 0 {
		t.Error("empty search should return nothing")
	}

	st := Stats()
	if st.Total != 10 || st.ByCategory["Injection"] != 3 || st.BySeverity["Critical"] != 3 {
		t.Errorf("Stats() = %+v", st)
	}
	if Describe("CWE-12345") != "CWE-12345" {
		t.Error("Describe should fall back to the identifier")
	}
}

func TestIssueLink(t *testing.T) {
	got := IssueLink("", "my proj", "AX-1")
	want := "https://sonarcloud.io/project/issues?id=my+proj&open=AX-1"
	if got != want {
		t.Errorf("IssueLink() = %q, want %q", got, want)
	}
}

type mapLookup map[string]models.RuleRecord

func (m mapLookup) Lookup(key string) (models.RuleRecord, bool) {
	r, ok := m[key]
	return r, ok
}

func TestEngine_Classify(t *testing.T) {
	rules := mapLookup{
		"js:S5131":   {DeclaredCWEs: []string{"79"}},
		"java:S2077": {DeclaredCWEs: []string{"89", "CWE-564", "cwe-89"}},
		"go:S1":      {Tags: []string{"cwe-20", "injection"}},
		"go:S2":      {DeclaredCWEs: []string{"CWE-78"}, Tags: []string{"CWE-88", "cwe-78"}},
		"go:S3":      {Tags: []string{"cwe", "owasp-a1"}},
	}
	engine := NewEngine()

	tests := []struct {
		name       string
		issue      models.Issue
		wantCWEs   []string
		wantConf   models.Confidence
		wantSource models.ClassificationSource
	}{
		{
			name:       "declared standard wins over tags",
			issue:      models.Issue{Rule: "js:S5131", Tags: []string{"cwe-89"}},
			wantCWEs:   []string{"CWE-79"},
			wantConf:   models.ConfidenceHigh,
			wantSource: models.SourceDeclared,
		},
		{
			name:       "declared list normalized and deduplicated",
			issue:      models.Issue{Rule: "java:S2077"},
			wantCWEs:   []string{"CWE-89", "CWE-564"},
			wantConf:   models.ConfidenceHigh,
			wantSource: models.SourceDeclared,
		},
		{
			name:       "issue tags",
			issue:      models.Issue{Rule: "py:S100", Tags: []string{"cwe-89", "CWE-22"}},
			wantCWEs:   []string{"CWE-89", "CWE-22"},
			wantConf:   models.ConfidenceMedium,
			wantSource: models.SourceIssueTag,
		},
		{
			name:       "rule cwe tags count as declared",
			issue:      models.Issue{Rule: "go:S1", Tags: []string{"cwe-89"}},
			wantCWEs:   []string{"CWE-20"},
			wantConf:   models.ConfidenceHigh,
			wantSource: models.SourceDeclared,
		},
		{
			name:       "rule tags merged after standards",
			issue:      models.Issue{Rule: "go:S2"},
			wantCWEs:   []string{"CWE-78", "CWE-88"},
			wantConf:   models.ConfidenceHigh,
			wantSource: models.SourceDeclared,
		},
		{
			name:       "rule tags without a number are ignored",
			issue:      models.Issue{Rule: "go:S3"},
			wantCWEs:   []string{},
			wantConf:   models.ConfidenceLow,
			wantSource: models.SourceNone,
		},
		{
			name:       "exact rule key",
			issue:      models.Issue{Rule: "Web:PageWithoutTitleCheck"},
			wantCWEs:   []string{"CWE-693"},
			wantConf:   models.ConfidenceMedium,
			wantSource: models.SourceRuleKey,
		},
		{
			name:       "rule key table",
			issue:      models.Issue{Rule: "java:S3649"},
			wantCWEs:   []string{"CWE-89"},
			wantConf:   models.ConfidenceMedium,
			wantSource: models.SourceRuleKey,
		},
		{
			name:       "malformed rule key falls through",
			issue:      models.Issue{Rule: "S3649"},
			wantCWEs:   []string{},
			wantConf:   models.ConfidenceLow,
			wantSource: models.SourceNone,
		},
		{
			name:       "no evidence",
			issue:      models.Issue{Rule: "java:S1234", Tags: []string{"convention"}},
			wantCWEs:   []string{},
			wantConf:   models.ConfidenceLow,
			wantSource: models.SourceNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Classify(tt.issue, rules)
			if !reflect.DeepEqual(got.CWEs, tt.wantCWEs) {
				t.Errorf("CWEs = %v, want %v", got.CWEs, tt.wantCWEs)
			}
			if got.Confidence != tt.wantConf {
				t.Errorf("Confidence = %s, want %s", got.Confidence, tt.wantConf)
			}
			if got.Source != tt.wantSource {
				t.Errorf("Source = %s, want %s", got.Source, tt.wantSource)
			}
		})
	}
}

func TestEngine_NilCatalog(t *testing.T) {
	got := NewEngine().Classify(models.Issue{Rule: "java:S3649"}, nil)
	if got.Confidence != models.ConfidenceMedium || got.CWEs[0] != "CWE-89" {
		t.Errorf("Classify() = %+v", got)
	}
}

func TestEngine_WithRuleTable(t *testing.T) {
	table, err := DefaultRuleTable().With(map[string]string{"9999": "CWE-1"})
	if err != nil {
		t.Fatal(err)
	}
	got := NewEngine(WithRuleTable(table)).Classify(models.Issue{Rule: "x:S9999"}, nil)
	if !got.HasCWE() || got.CWEs[0] != "CWE-1" {
		t.Errorf("Classify() = %+v", got)
	}
}

func TestEngine_ThreeIssueScenario(t *testing.T) {
	rules := mapLookup{"web:S5131": {DeclaredCWEs: []string{"79"}}}
	issues := []models.Issue{
		{Key: "A", Rule: "web:S5131"},
		{Key: "B", Rule: "web:S1000", Tags: []string{"cwe-89"}},
		{Key: "C", Rule: "java:S3649"},
	}
	got := NewEngine().ClassifyAll(issues, rules)

	want := []struct {
		id   string
		conf models.Confidence
	}{
		{"CWE-79", models.ConfidenceHigh},
		{"CWE-89", models.ConfidenceMedium},
		{"CWE-89", models.ConfidenceMedium},
	}
	for i, w := range want {
		c := got[i].Classification
		if len(c.CWEs) != 1 || c.CWEs[0] != w.id || c.Confidence != w.conf {
			t.Errorf("issue %s = %+v, want %s/%s", got[i].Key, c, w.id, w.conf)
		}
	}
}
