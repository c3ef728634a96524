package nvd

import (
	"strings"
	"time"

	"github.com/panbanda/cwelens/pkg/cwe"
	"github.com/panbanda/cwelens/pkg/models"
)

const (
	detailURL     = "https://nvd.nist.gov/vuln/detail/"
	noDescription = "No description available"
	unknown       = "UNKNOWN"
)

// nvdTimeLayouts cover the API's zone-less timestamps.
var nvdTimeLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

type cveResponse struct {
	ResultsPerPage  int             `json:"resultsPerPage"`
	StartIndex      int             `json:"startIndex"`
	TotalResults    int             `json:"totalResults"`
	Vulnerabilities []vulnerability `json:"vulnerabilities"`
}

type vulnerability struct {
	CVE rawCVE `json:"cve"`
}

type langString struct {
	Lang  string `json:"lang"`
	Value string `json:"value"`
}

type weakness struct {
	Source      string       `json:"source"`
	Type        string       `json:"type"`
	Description []langString `json:"description"`
}

type cvssData struct {
	BaseScore    float64 `json:"baseScore"`
	BaseSeverity string  `json:"baseSeverity"`
}

type cvssV3 struct {
	CVSSData cvssData `json:"cvssData"`
}

// cvssV2 keeps its severity beside the vector data, not inside it.
type cvssV2 struct {
	CVSSData     cvssData `json:"cvssData"`
	BaseSeverity string   `json:"baseSeverity"`
}

type metrics struct {
	V31 []cvssV3 `json:"cvssMetricV31"`
	V30 []cvssV3 `json:"cvssMetricV30"`
	V2  []cvssV2 `json:"cvssMetricV2"`
}

type rawCVE struct {
	ID           string       `json:"id"`
	Published    string       `json:"published"`
	LastModified string       `json:"lastModified"`
	Descriptions []langString `json:"descriptions"`
	Metrics      metrics      `json:"metrics"`
	Weaknesses   []weakness   `json:"weaknesses"`
}

func (r rawCVE) toModel() models.CVE {
	severity, score := r.Metrics.severity()
	return models.CVE{
		ID:           r.ID,
		Description:  englishDescription(r.Descriptions),
		Severity:     severity,
		Score:        score,
		Published:    parseTime(r.Published),
		LastModified: parseTime(r.LastModified),
		CWEs:         r.weaknessIDs(),
		URL:          detailURL + r.ID,
	}
}

// severity prefers CVSS v3.1, then v3.0, then v2.
func (m metrics) severity() (string, float64) {
	for _, v := range [][]cvssV3{m.V31, m.V30} {
		if len(v) > 0 && v[0].CVSSData.BaseSeverity != "" {
			return strings.ToUpper(v[0].CVSSData.BaseSeverity), v[0].CVSSData.BaseScore
		}
	}
	if len(m.V2) > 0 && m.V2[0].BaseSeverity != "" {
		return strings.ToUpper(m.V2[0].BaseSeverity), m.V2[0].CVSSData.BaseScore
	}
	return unknown, 0
}

// weaknessIDs drops placeholders such as NVD-CWE-Other.
func (r rawCVE) weaknessIDs() []string {
	var raw []string
	for _, w := range r.Weaknesses {
		for _, d := range w.Description {
			raw = append(raw, d.Value)
		}
	}
	return cwe.NormalizeAll(raw)
}

func englishDescription(descs []langString) string {
	for _, d := range descs {
		if d.Lang == "en" && strings.TrimSpace(d.Value) != "" {
			return strings.TrimSpace(d.Value)
		}
	}
	return noDescription
}

func parseTime(s string) time.Time {
	for _, layout := range nvdTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
