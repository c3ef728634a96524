package cwe

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// mitreBaseURL hosts the MITRE definition pages.
const mitreBaseURL = "https://cwe.mitre.org/data/definitions"

// Entry describes one weakness in the reference catalog.
type Entry struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Severity    string `json:"severity"`
}

// URL returns the MITRE definition page for the entry.
func (e Entry) URL() string {
	return URL(e.ID)
}

// URL returns the MITRE definition page for an identifier, or "" when the
// identifier is not recognizable.
func URL(id string) string {
	norm, ok := Normalize(id)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%s/%s.html", mitreBaseURL, strings.TrimPrefix(norm, Prefix))
}

var reference = []Entry{
	{
		ID:          "CWE-79",
		Name:        "Cross-site Scripting (XSS)",
		Description: "User-controllable input is not neutralized, or is incorrectly neutralized, before it is placed in output served to other users as a web page.",
		Category:    "Injection",
		Severity:    "High",
	},
	{
		ID:          "CWE-89",
		Name:        "SQL Injection",
		Description: "An SQL command is built from externally-influenced input without neutralizing special elements that could modify the intended command.",
		Category:    "Injection",
		Severity:    "Critical",
	},
	{
		ID:          "CWE-78",
		Name:        "OS Command Injection",
		Description: "An OS command is built from externally-influenced input without neutralizing special elements that could modify the intended command.",
		Category:    "Injection",
		Severity:    "Critical",
	},
	{
		ID:          "CWE-367",
		Name:        "Time-of-check Time-of-use (TOCTOU) Race Condition",
		Description: "The state of a resource is checked before use, but it can change between the check and the use in a way that invalidates the check.",
		Category:    "Race Condition",
		Severity:    "Medium",
	},
	{
		ID:          "CWE-693",
		Name:        "Protection Mechanism Failure",
		Description: "A protection mechanism that should defend against directed attacks is missing or used incorrectly.",
		Category:    "Protection Mechanism",
		Severity:    "Medium",
	},
	{
		ID:          "CWE-22",
		Name:        "Path Traversal",
		Description: "External input is used to build a pathname under a restricted directory without neutralizing elements that let it resolve outside that directory.",
		Category:    "Path Traversal",
		Severity:    "High",
	},
	{
		ID:          "CWE-352",
		Name:        "Cross-Site Request Forgery (CSRF)",
		Description: "The application cannot sufficiently verify that a well-formed request was intentionally submitted by the user.",
		Category:    "CSRF",
		Severity:    "Medium",
	},
	{
		ID:          "CWE-434",
		Name:        "Unrestricted Upload of File with Dangerous Type",
		Description: "Files of dangerous types can be uploaded and are then processed automatically within the product's environment.",
		Category:    "File Upload",
		Severity:    "High",
	},
	{
		ID:          "CWE-798",
		Name:        "Use of Hard-coded Credentials",
		Description: "Credentials such as passwords or cryptographic keys are embedded in the product and used for authentication or encryption.",
		Category:    "Authentication",
		Severity:    "Critical",
	},
	{
		ID:          "CWE-311",
		Name:        "Missing Encryption of Sensitive Data",
		Description: "Sensitive or critical information is not encrypted before storage or transmission.",
		Category:    "Cryptography",
		Severity:    "High",
	},
}

var referenceIndex = func() map[string]Entry {
	m := make(map[string]Entry, len(reference))
	for _, e := range reference {
		m[e.ID] = e
	}
	return m
}()

// Lookup returns the catalog entry for an identifier in any accepted form.
func Lookup(id string) (Entry, bool) {
	norm, ok := Normalize(id)
	if !ok {
		return Entry{}, false
	}
	e, ok := referenceIndex[norm]
	return e, ok
}

// Describe returns the entry name for known identifiers, or the identifier
// itself.
func Describe(id string) string {
	if e, ok := Lookup(id); ok {
		return e.Name
	}
	return id
}

// All returns every catalog entry ordered by numeric identifier.
func All() []Entry {
	out := make([]Entry, len(reference))
	copy(out, reference)
	sort.Slice(out, func(i, j int) bool {
		return Number(out[i].ID) < Number(out[j].ID)
	})
	return out
}

// Search returns entries whose id, name, category or description contains
// query, case-insensitively. An empty query returns nothing.
func Search(query string) []Entry {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]Entry, 0)
	if q == "" {
		return out
	}
	for _, e := range All() {
		if strings.Contains(strings.ToLower(e.ID), q) ||
			strings.Contains(strings.ToLower(e.Name), q) ||
			strings.Contains(strings.ToLower(e.Category), q) ||
			strings.Contains(strings.ToLower(e.Description), q) {
			out = append(out, e)
		}
	}
	return out
}

// CatalogStats summarizes the reference catalog.
type CatalogStats struct {
	Total      int            `json:"total"`
	ByCategory map[string]int `json:"by_category"`
	BySeverity map[string]int `json:"by_severity"`
}

// Stats counts catalog entries per category and severity.
func Stats() CatalogStats {
	st := CatalogStats{
		Total:      len(reference),
		ByCategory: make(map[string]int),
		BySeverity: make(map[string]int),
	}
	for _, e := range reference {
		if e.Category != "" {
			st.ByCategory[e.Category]++
		}
		if e.Severity != "" {
			st.BySeverity[e.Severity]++
		}
	}
	return st
}

// IssueLink builds the SonarQube Cloud deep link for an issue.
func IssueLink(baseURL, projectKey, issueKey string) string {
	if baseURL == "" {
		baseURL = "https://sonarcloud.io"
	}
	q := url.Values{}
	q.Set("id", projectKey)
	q.Set("open", issueKey)
	return strings.TrimRight(baseURL, "/") + "/project/issues?" + q.Encode()
}
