package cwe

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleTable maps rule-local numbers (the digits of "S3649") to a single
// weakness identifier. Rules without a numeric key, such as
// "Web:DoctypePresenceCheck", are mapped by their exact key instead. A
// RuleTable is immutable; With returns a copy.
type RuleTable struct {
	entries map[string]string
	exact   map[string]string
}

// exactKeyPattern matches full rule keys used as exact entries.
var exactKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_.-]+:[A-Za-z0-9_.-]+$`)

// seedRules is hand-curated from rule keys observed in practice. It is a
// starting point, not an authoritative mapping.
var seedRules = map[string]string{
	// injection
	"3649": "CWE-89",
	// time-of-check time-of-use
	"2083": "CWE-367",
	// path traversal
	"6096": "CWE-22",
	// protection mechanism failure
	"5254": "CWE-693",
	// cross-site scripting
	"2486": "CWE-79",
	"6853": "CWE-79",
	"6774": "CWE-79",
	"1481": "CWE-79",
	"1854": "CWE-79",
	"1874": "CWE-79",
	"6479": "CWE-79",
	"6819": "CWE-79",
	"6551": "CWE-79",
	"6582": "CWE-79",
	"5131": "CWE-79",
	"2076": "CWE-79",
	// OS command injection
	"106":  "CWE-78",
	"1075": "CWE-78",
	"112":  "CWE-78",
	"1220": "CWE-78",
	"1172": "CWE-78",
	"5786": "CWE-78",
	"1989": "CWE-78",
	"1135": "CWE-78",
	"1128": "CWE-78",
	"1161": "CWE-78",
	"1130": "CWE-78",
	"1118": "CWE-78",
}

// seedKeys maps rules whose keys carry no number.
var seedKeys = map[string]string{
	"Web:DoctypePresenceCheck":  "CWE-693",
	"Web:PageWithoutTitleCheck": "CWE-693",
}

// DefaultRuleTable returns the built-in seed table.
func DefaultRuleTable() RuleTable {
	return RuleTable{entries: seedRules, exact: seedKeys}
}

// Lookup returns the weakness for a rule-local number.
func (t RuleTable) Lookup(number string) (string, bool) {
	id, ok := t.entries[number]
	return id, ok
}

// LookupRuleKey resolves a full rule key: an exact entry wins, otherwise
// the key's number is looked up.
func (t RuleTable) LookupRuleKey(ruleKey string) (string, bool) {
	ruleKey = strings.TrimSpace(ruleKey)
	if id, ok := t.exact[ruleKey]; ok {
		return id, true
	}
	n, ok := RuleNumber(ruleKey)
	if !ok {
		return "", false
	}
	return t.Lookup(n)
}

// Len returns the number of mapped rule numbers and exact keys.
func (t RuleTable) Len() int {
	return len(t.entries) + len(t.exact)
}

// Keys returns the exact-key entries in ascending order.
func (t RuleTable) Keys() []string {
	out := make([]string, 0, len(t.exact))
	for k := range t.exact {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Numbers returns the mapped rule numbers in ascending numeric order.
func (t RuleTable) Numbers() []string {
	out := make([]string, 0, len(t.entries))
	for n := range t.entries {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) < len(out[j])
		}
		return out[i] < out[j]
	})
	return out
}

// With returns a new table containing t's entries overlaid by overrides.
// Override keys may be bare numbers ("3649"), numbered rule keys
// ("java:S3649", applied by number) or any other full rule key
// ("Web:PageWithoutTitleCheck", matched exactly). Values are normalized
// weakness identifiers.
func (t RuleTable) With(overrides map[string]string) (RuleTable, error) {
	numbers := make(map[string]string, len(t.entries)+len(overrides))
	for k, v := range t.entries {
		numbers[k] = v
	}
	exact := make(map[string]string, len(t.exact))
	for k, v := range t.exact {
		exact[k] = v
	}
	for k, v := range overrides {
		id, ok := Normalize(v)
		if !ok {
			return RuleTable{}, fmt.Errorf("rule %s: invalid weakness identifier %q", k, v)
		}
		key := strings.TrimSpace(k)
		if n, ok := RuleNumber(key); ok {
			numbers[n] = id
			continue
		}
		switch {
		case key != "" && strings.Trim(key, "0123456789") == "":
			numbers[key] = id
		case exactKeyPattern.MatchString(key):
			exact[key] = id
		default:
			return RuleTable{}, fmt.Errorf("invalid rule key %q", k)
		}
	}
	return RuleTable{entries: numbers, exact: exact}, nil
}

// tableFile is the YAML layout of a rule table override file:
//
//	rules:
//	  "3649": CWE-89
//	  "java:S5145": "117"
//	  "Web:PageWithoutTitleCheck": CWE-693
type tableFile struct {
	Rules map[string]string `yaml:"rules" json:"rules"`
}

// LoadRuleTable reads YAML overrides from path and merges them on top of
// the seed table.
func LoadRuleTable(path string) (RuleTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return RuleTable{}, fmt.Errorf("reading rule table %s: %w", path, err)
	}
	var tf tableFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tf); err != nil && !errors.Is(err, io.EOF) {
		return RuleTable{}, fmt.Errorf("parsing rule table %s: %w", path, err)
	}
	if err := validateTableFile(tf); err != nil {
		return RuleTable{}, fmt.Errorf("rule table %s: %w", path, err)
	}
	table, err := DefaultRuleTable().With(tf.Rules)
	if err != nil {
		return RuleTable{}, fmt.Errorf("rule table %s: %w", path, err)
	}
	return table, nil
}
