// Package nvd looks up published CVEs by weakness in the National
// Vulnerability Database CVE API 2.0.
package nvd

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
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/panbanda/cwelens/pkg/cwe"
	"github.com/panbanda/cwelens/pkg/models"
)

const (
	// DefaultBaseURL is the CVE API endpoint.
	DefaultBaseURL = "https://services.nvd.nist.gov/rest/json/cves/2.0"
	// DefaultResultsPerPage matches what the reports show per weakness.
	DefaultResultsPerPage = 20
	// MaxResultsPerPage is the largest page the API serves.
	MaxResultsPerPage = 2000

	defaultTimeout  = 15 * time.Second
	maxErrorBody    = 512
	maxResponseSize = 64 * 1024 * 1024
	userAgent       = "cwelens"

	tracerName = "github.com/panbanda/cwelens/internal/nvd"
)

// ErrInvalidWeakness is returned for identifiers that do not normalize to
// CWE-<digits>.
var ErrInvalidWeakness = errors.New("nvd: invalid weakness identifier")

// APIError is a non-2xx response. The API answers 403 when the caller
// exceeds its rate limit.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("nvd: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("nvd: HTTP %d: %s", e.StatusCode, e.Body)
}

// Client queries the CVE API. Results are kept in memory for the life of
// the client. It is safe for concurrent use.
type Client struct {
	baseURL        string
	apiKey         string
	resultsPerPage int
	httpClient     *http.Client
	timeout        time.Duration
	limiter        *rate.Limiter
	tracer         trace.Tracer
	logger         *zap.SugaredLogger

	mu   sync.Mutex
	seen map[string]*models.CVELookup
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithAPIKey sends an NVD API key, which raises the service's rate limit.
func WithAPIKey(key string) Option {
	return func(c *Client) { c.apiKey = key }
}

// WithResultsPerPage sets how many CVEs are fetched per weakness.
func WithResultsPerPage(n int) Option {
	return func(c *Client) { c.resultsPerPage = n }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRateLimit caps outgoing requests per minute. The service counts
// requests in a rolling 30 second window, so half the budget may burst.
// Zero disables limiting.
func WithRateLimit(requestsPerMinute int) Option {
	return func(c *Client) {
		if requestsPerMinute <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), max(requestsPerMinute/2, 1))
	}
}

// WithTracerProvider records a span per request.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(tracerName) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:        DefaultBaseURL,
		resultsPerPage: DefaultResultsPerPage,
		httpClient:     &http.Client{},
		timeout:        defaultTimeout,
		tracer:         noop.NewTracerProvider().Tracer(tracerName),
		logger:         zap.NewNop().Sugar(),
		seen:           make(map[string]*models.CVELookup),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.resultsPerPage = min(max(c.resultsPerPage, 1), MaxResultsPerPage)
	if c.logger == nil {
		c.logger = zap.NewNop().Sugar()
	}
	return c
}

// CVEsByWeakness returns the first page of CVEs whose weakness list names
// id. Identifiers are normalized first, so "79" and "cwe_79" are the same
// query.
func (c *Client) CVEsByWeakness(ctx context.Context, id string) (*models.CVELookup, error) {
	norm, ok := cwe.Normalize(id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidWeakness, id)
	}

	c.mu.Lock()
	cached, hit := c.seen[norm]
	c.mu.Unlock()
	if hit {
		return cached, nil
	}

	q := url.Values{}
	q.Set("cweId", norm)
	q.Set("resultsPerPage", strconv.Itoa(c.resultsPerPage))
	q.Set("startIndex", "0")

	var resp cveResponse
	if err := c.get(ctx, norm, q, &resp); err != nil {
		return nil, err
	}

	out := &models.CVELookup{
		CWE:   norm,
		Total: resp.TotalResults,
		CVEs:  make([]models.CVE, 0, len(resp.Vulnerabilities)),
	}
	for _, v := range resp.Vulnerabilities {
		if v.CVE.ID == "" {
			continue
		}
		out.CVEs = append(out.CVEs, v.CVE.toModel())
	}
	c.logger.Debugw("nvd lookup", "cwe", norm, "total", out.Total, "returned", len(out.CVEs))

	c.mu.Lock()
	c.seen[norm] = out
	c.mu.Unlock()
	return out, nil
}

func (c *Client) get(ctx context.Context, id string, q url.Values, out any) error {
	ctx, span := c.tracer.Start(ctx, "nvd cves",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("nvd.cwe", id)),
	)
	defer span.End()

	err := c.do(ctx, q, out)
	span.SetAttributes(attribute.Bool("nvd.ok", err == nil))
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

func (c *Client) do(ctx context.Context, q url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("nvd: rate limit: %w", err)
		}
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("nvd: creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if c.apiKey != "" {
		req.Header.Set("apiKey", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("nvd: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseSize)).Decode(out); err != nil {
		return fmt.Errorf("nvd: decoding response: %w", err)
	}
	return nil
}
