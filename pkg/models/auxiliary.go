package models

// SignalStatus marks the data quality of an auxiliary value.
type SignalStatus string

const (
	// SignalMeasured values come straight from the service.
	SignalMeasured SignalStatus = "measured"
	// SignalEstimated values are derived approximations.
	SignalEstimated SignalStatus = "estimated"
	// SignalUnavailable values are documented defaults used after a failed fetch.
	SignalUnavailable SignalStatus = "unavailable"
)

// Signal wraps a best-effort auxiliary value with its status.
type Signal[T any] struct {
	Value  T            `json:"value"`
	Status SignalStatus `json:"status"`
	Error  string       `json:"error,omitempty"`
}

// Available reports whether the value came from a successful fetch.
func (s Signal[T]) Available() bool {
	return s.Status != SignalUnavailable
}

// Measured wraps a value read directly from the service.
func Measured[T any](v T) Signal[T] {
	return Signal[T]{Value: v, Status: SignalMeasured}
}

// Estimated wraps an approximated value.
func Estimated[T any](v T) Signal[T] {
	return Signal[T]{Value: v, Status: SignalEstimated}
}

// Unavailable wraps the documented default for a signal that could not be fetched.
func Unavailable[T any](def T, err error) Signal[T] {
	s := Signal[T]{Value: def, Status: SignalUnavailable}
	if err != nil {
		s.Error = err.Error()
	}
	return s
}

// MetricValue is a raw project measure.
type MetricValue struct {
	Value     string `json:"value"`
	BestValue bool   `json:"best_value,omitempty"`
}

// MetricTrend compares a metric's overall value with its new-code value.
type MetricTrend struct {
	Current int    `json:"current"`
	New     int    `json:"new"`
	Trend   string `json:"trend,omitempty"`
}

// SecurityIssueCounts summarizes security-flavoured issues in the fetched set.
type SecurityIssueCounts struct {
	SecurityIssues      int `json:"security_issues"`
	VulnerabilityIssues int `json:"vulnerability_issues"`
}

// Auxiliary holds signals fetched independently of classification. None of
// them can fail a report.
type Auxiliary struct {
	SecurityHotspots Signal[int]                    `json:"security_hotspots"`
	SecurityRules    Signal[int]                    `json:"security_rules"`
	CWEFacet         Signal[map[string]int]         `json:"cwe_facet"`
	ProjectMetrics   Signal[map[string]MetricValue] `json:"project_metrics"`
	SecurityTrends   Signal[map[string]MetricTrend] `json:"security_trends"`
	SecurityIssues   Signal[SecurityIssueCounts]    `json:"security_issues"`
	// HotspotCategories is always an estimate.
	HotspotCategories Signal[HotspotCategories] `json:"hotspot_categories"`
	// RelatedCVEs is keyed by top category and stays unavailable unless
	// NVD lookups are enabled.
	RelatedCVEs Signal[map[string]CVELookup] `json:"related_cves"`
}

// DefaultAuxiliary returns every signal at its documented default.
func DefaultAuxiliary() Auxiliary {
	return Auxiliary{
		SecurityHotspots:  Unavailable(0, nil),
		SecurityRules:     Unavailable(0, nil),
		CWEFacet:          Unavailable(map[string]int{}, nil),
		ProjectMetrics:    Unavailable(map[string]MetricValue{}, nil),
		SecurityTrends:    Unavailable(map[string]MetricTrend{}, nil),
		SecurityIssues:    Unavailable(SecurityIssueCounts{}, nil),
		HotspotCategories: Unavailable(HotspotCategories{Categories: map[string]int{}}, nil),
		RelatedCVEs:       Unavailable(map[string]CVELookup{}, nil),
	}
}
