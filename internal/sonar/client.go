// Package sonar is a client for the SonarQube Cloud Web API, covering the
// endpoints needed to classify issues: issue search, rule metadata and
// component measures.
package sonar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/panbanda/cwelens/pkg/models"
)

const (
	// DefaultBaseURL is the SonarQube Cloud host.
	DefaultBaseURL = "https://sonarcloud.io"

	defaultTimeout  = 30 * time.Second
	defaultRetries  = 1
	defaultBackoff  = 500 * time.Millisecond
	maxErrorBody    = 512
	maxResponseSize = 32 * 1024 * 1024

	// MaxPageSize is the largest page size issues/search accepts.
	MaxPageSize = 500
	// MaxSearchResults is the search window: issues/search rejects any page
	// ending past this offset.
	MaxSearchResults = 10000

	ruleFields = "name,lang,langName,severity,type,status,tags,sysTags,securityStandards"

	tracerName = "github.com/panbanda/cwelens/internal/sonar"
)

// API is the subset of the Web API the analysis pipeline depends on.
type API interface {
	SearchIssues(ctx context.Context, filter IssueFilter) (*IssuesPage, error)
	SearchRulesByKeys(ctx context.Context, keys []string) ([]models.Rule, error)
	// GetRule returns (nil, nil) when the rule does not exist.
	GetRule(ctx context.Context, key string) (*models.Rule, error)
	GetMeasures(ctx context.Context, component string, metricKeys []string) ([]models.Measure, error)
	IssueFacet(ctx context.Context, filter IssueFilter, facet string) (map[string]int, error)
}

// IssueFilter scopes an issue search.
type IssueFilter struct {
	ProjectKey string
	Types      []string
	Severities []string
	Tags       []string
	Statuses   []string
	// Resolved limits the search to resolved or unresolved issues when set.
	Resolved *bool
	Page     int
	PageSize int
	Facets   []string
}

// Paging describes the position of a page in a result set.
type Paging struct {
	PageIndex int `json:"page_index"`
	PageSize  int `json:"page_size"`
	Total     int `json:"total"`
}

// IssuesPage is one page of issues/search.
type IssuesPage struct {
	Issues []models.Issue
	Paging Paging
	// Facets maps facet property to value counts.
	Facets map[string]map[string]int
}

// Client talks to the Web API. It is safe for concurrent use.
type Client struct {
	baseURL      string
	token        string
	organization string
	httpClient   *http.Client
	timeout      time.Duration
	retries      int
	backoff      time.Duration
	limiter      *rate.Limiter
	tracer       trace.Tracer
	logger       *zap.SugaredLogger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the service host.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithToken sets the bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithOrganization scopes every request to an organization.
func WithOrganization(org string) Option {
	return func(c *Client) { c.organization = org }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each attempt of each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRetries sets how many times a transient failure is retried.
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = n }
}

// WithBackoff sets the delay before the first retry; it doubles per retry.
func WithBackoff(d time.Duration) Option {
	return func(c *Client) { c.backoff = d }
}

// WithRateLimit caps outgoing requests per minute. Zero disables limiting.
func WithRateLimit(requestsPerMinute int) Option {
	return func(c *Client) {
		if requestsPerMinute <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), requestsPerMinute)
	}
}

// WithTracerProvider records a span per request.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

// WithLogger sets the logger used for retries.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{},
		timeout:    defaultTimeout,
		retries:    defaultRetries,
		backoff:    defaultBackoff,
		tracer:     noop.NewTracerProvider().Tracer(tracerName),
		logger:     zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retries < 0 {
		c.retries = 0
	}
	if c.logger == nil {
		c.logger = zap.NewNop().Sugar()
	}
	return c
}

// Organization returns the configured organization.
func (c *Client) Organization() string {
	return c.organization
}

// BaseURL returns the configured service host.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SearchIssues fetches one page of issues.
func (c *Client) SearchIssues(ctx context.Context, filter IssueFilter) (*IssuesPage, error) {
	q := c.issueQuery(filter)
	var resp issuesResponse
	if err := c.get(ctx, "/api/issues/search", q, &resp); err != nil {
		return nil, err
	}

	page := &IssuesPage{
		Issues: make([]models.Issue, 0, len(resp.Issues)),
		Paging: Paging{
			PageIndex: resp.Paging.PageIndex,
			PageSize:  resp.Paging.PageSize,
			Total:     resp.Paging.Total,
		},
		Facets: make(map[string]map[string]int, len(resp.Facets)),
	}
	if page.Paging.Total == 0 && resp.Total > 0 {
		page.Paging.Total = resp.Total
	}
	for _, ri := range resp.Issues {
		page.Issues = append(page.Issues, ri.toModel())
	}
	for _, f := range resp.Facets {
		page.Facets[f.Property] = facetCounts(resp.Facets, f.Property)
	}
	return page, nil
}

// IssueFacet returns value counts for one facet over the filtered issues.
func (c *Client) IssueFacet(ctx context.Context, filter IssueFilter, facetName string) (map[string]int, error) {
	filter.Facets = []string{facetName}
	filter.Page = 1
	filter.PageSize = 1
	page, err := c.SearchIssues(ctx, filter)
	if err != nil {
		return nil, err
	}
	counts, ok := page.Facets[facetName]
	if !ok {
		return map[string]int{}, nil
	}
	return counts, nil
}

// SearchRulesByKeys fetches metadata, including security standards, for up
// to one batch of rule keys. Unknown keys are absent from the result.
func (c *Client) SearchRulesByKeys(ctx context.Context, keys []string) ([]models.Rule, error) {
	if len(keys) == 0 {
		return []models.Rule{}, nil
	}
	q := url.Values{}
	c.setOrganization(q)
	q.Set("rule_keys", strings.Join(keys, ","))
	q.Set("f", ruleFields)
	q.Set("ps", strconv.Itoa(MaxPageSize))

	var resp rulesResponse
	if err := c.get(ctx, "/api/rules/search", q, &resp); err != nil {
		return nil, err
	}
	rules := make([]models.Rule, 0, len(resp.Rules))
	for _, rr := range resp.Rules {
		rules = append(rules, rr.toModel())
	}
	return rules, nil
}

// GetRule fetches a single rule. A missing rule is not an error.
func (c *Client) GetRule(ctx context.Context, key string) (*models.Rule, error) {
	q := url.Values{}
	c.setOrganization(q)
	q.Set("key", key)

	var resp ruleShowResponse
	err := c.get(ctx, "/api/rules/show", q, &resp)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if resp.Rule == nil {
		return nil, nil
	}
	rule := resp.Rule.toModel()
	if rule.Key == "" {
		rule.Key = key
	}
	return &rule, nil
}

// GetMeasures fetches metric values for a component.
func (c *Client) GetMeasures(ctx context.Context, component string, metricKeys []string) ([]models.Measure, error) {
	if component == "" {
		return nil, errors.New("sonar: component is required")
	}
	q := url.Values{}
	q.Set("component", component)
	q.Set("metricKeys", strings.Join(metricKeys, ","))

	var resp measuresResponse
	if err := c.get(ctx, "/api/measures/component", q, &resp); err != nil {
		return nil, err
	}
	out := make([]models.Measure, 0, len(resp.Component.Measures))
	for _, m := range resp.Component.Measures {
		out = append(out, m.toModel())
	}
	return out, nil
}

func (c *Client) issueQuery(f IssueFilter) url.Values {
	q := url.Values{}
	c.setOrganization(q)
	if f.ProjectKey != "" {
		q.Set("componentKeys", f.ProjectKey)
	}
	setList(q, "types", f.Types)
	setList(q, "severities", f.Severities)
	setList(q, "tags", f.Tags)
	setList(q, "statuses", f.Statuses)
	setList(q, "facets", f.Facets)
	if f.Resolved != nil {
		q.Set("resolved", strconv.FormatBool(*f.Resolved))
	}
	if f.Page > 0 {
		q.Set("p", strconv.Itoa(f.Page))
	}
	if f.PageSize > 0 {
		ps := f.PageSize
		if ps > MaxPageSize {
			ps = MaxPageSize
		}
		q.Set("ps", strconv.Itoa(ps))
	}
	return q
}

func (c *Client) setOrganization(q url.Values) {
	if c.organization != "" {
		q.Set("organization", c.organization)
	}
}

func setList(q url.Values, key string, values []string) {
	if len(values) > 0 {
		q.Set(key, strings.Join(values, ","))
	}
}

// get performs a GET with retries on transient failure and decodes the JSON
// body into out.
func (c *Client) get(ctx context.Context, endpoint string, q url.Values, out any) error {
	ctx, span := c.tracer.Start(ctx, "sonar "+endpoint,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("sonar.endpoint", endpoint)),
	)
	defer span.End()

	var err error
	for attempt := 0; ; attempt++ {
		err = c.attempt(ctx, endpoint, q, out)
		if err == nil || attempt >= c.retries || !IsTransient(err) || ctx.Err() != nil {
			break
		}
		delay := c.backoff * time.Duration(1<<attempt)
		c.logger.Debugw("retrying request", "endpoint", endpoint, "attempt", attempt+1, "delay", delay, "error", err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
		case <-timer.C:
		}
		if ctx.Err() != nil {
			break
		}
	}

	span.SetAttributes(attribute.Bool("sonar.ok", err == nil))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			span.SetAttributes(attribute.Int("http.status_code", apiErr.StatusCode))
		}
	}
	return err
}

func (c *Client) attempt(ctx context.Context, endpoint string, q url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("sonar %s: rate limit: %w", endpoint, err)
		}
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	u := c.baseURL + endpoint
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("sonar %s: creating request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sonar %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			StatusCode: resp.StatusCode,
			Endpoint:   endpoint,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("sonar %s: decoding response: %w", endpoint, err)
	}
	return nil
}
