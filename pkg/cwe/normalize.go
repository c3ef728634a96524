// Package cwe maps static-analysis findings to Common Weakness Enumeration
// identifiers and carries a small reference catalog of common weaknesses.
package cwe

import (
	"regexp"
	"strconv"
	"strings"
)

// Prefix is the canonical identifier prefix.
const Prefix = "CWE-"

var (
	// idPattern accepts "79", "CWE-79", "cwe:79", "cwe_79" and "CWE 79".
	idPattern = regexp.MustCompile(`(?i)^(?:cwe[-_:\s]?)?0*(\d+)$`)

	// tagPattern only accepts identifiers carrying the cwe prefix.
	tagPattern = regexp.MustCompile(`(?i)^cwe[-_:\s]?(\d+)$`)

	// ruleKeyPattern extracts the rule-local number from keys such as
	// "java:S3649" or "typescript:S2076".
	ruleKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+:[A-Za-z](\d{3,4})$`)
)

// Normalize converts a raw identifier to the canonical "CWE-<digits>" form.
// It returns false when raw is not a recognizable identifier.
func Normalize(raw string) (string, bool) {
	m := idPattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return "", false
	}
	return Prefix + m[1], true
}

// NormalizeAll normalizes every identifier, dropping unrecognizable ones and
// duplicates while preserving first-seen order. The result is never nil.
func NormalizeAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, r := range raw {
		id, ok := Normalize(r)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// FromTags returns the normalized identifiers found in weakness-marker tags
// such as "cwe-89" or "CWE79". Other tags are ignored.
func FromTags(tags []string) []string {
	out := make([]string, 0)
	seen := make(map[string]struct{})
	for _, tag := range tags {
		m := tagPattern.FindStringSubmatch(strings.TrimSpace(tag))
		if m == nil {
			continue
		}
		id, ok := Normalize(m[1])
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// RuleNumber extracts the rule-local number from a rule key. Keys without a
// tool prefix or with a malformed suffix yield false.
func RuleNumber(ruleKey string) (string, bool) {
	m := ruleKeyPattern.FindStringSubmatch(strings.TrimSpace(ruleKey))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// Number returns the numeric part of a canonical identifier, or 0.
func Number(id string) int {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToUpper(id), Prefix))
	if err != nil {
		return 0
	}
	return n
}
