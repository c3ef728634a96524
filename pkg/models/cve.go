package models

import "time"

// CVE is one published vulnerability record from the National
// Vulnerability Database.
type CVE struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	// Severity is the CVSS base severity, newest metric version first, or
	// UNKNOWN when the record carries no score.
	Severity     string    `json:"severity"`
	Score        float64   `json:"score,omitempty"`
	Published    time.Time `json:"published"`
	LastModified time.Time `json:"last_modified"`
	CWEs         []string  `json:"cwe_ids"`
	URL          string    `json:"url"`
}

// CVELookup holds the CVEs recorded against one weakness. Total counts
// every match upstream; CVEs holds the first page only.
type CVELookup struct {
	CWE   string `json:"cwe_id"`
	Total int    `json:"total"`
	CVEs  []CVE  `json:"cves"`
}

// HotspotCategories is a rough split of security hotspots by topic, derived
// from a sample of vulnerability issues.
type HotspotCategories struct {
	Total      int            `json:"total"`
	Categories map[string]int `json:"categories"`
}
