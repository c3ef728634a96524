package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/panbanda/cwelens/internal/nvd"
	"github.com/panbanda/cwelens/internal/sonar"
	"github.com/panbanda/cwelens/pkg/analyzer/cwestats"
	"github.com/panbanda/cwelens/pkg/analyzer/rulecatalog"
	"github.com/panbanda/cwelens/pkg/config"
	"github.com/panbanda/cwelens/pkg/cwe"
	"github.com/panbanda/cwelens/pkg/models"
)

// ErrIssuesUnavailable is returned when the issue list cannot be fetched.
var ErrIssuesUnavailable = errors.New("issues unavailable")

// CVESource looks up published CVEs recorded against a weakness.
type CVESource interface {
	CVEsByWeakness(ctx context.Context, id string) (*models.CVELookup, error)
}

// Service orchestrates CWE analysis operations.
type Service struct {
	config *config.Config
	client sonar.API
	cves   CVESource
	engine *cwe.Engine
	store  rulecatalog.Store
	logger *zap.SugaredLogger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithClient sets the SonarQube client (for testing).
func WithClient(client sonar.API) Option {
	return func(s *Service) {
		s.client = client
	}
}

// WithCVESource sets where CVEs are looked up.
func WithCVESource(src CVESource) Option {
	return func(s *Service) {
		s.cves = src
	}
}

// WithEngine sets the classification engine.
func WithEngine(e *cwe.Engine) Option {
	return func(s *Service) {
		s.engine = e
	}
}

// WithStore caches resolved rule records.
func WithStore(store rulecatalog.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(s *Service) {
		s.logger = l
	}
}

// WithClock overrides the report timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// New creates a new analysis service. Without WithClient a client is built
// from the configuration.
func New(opts ...Option) *Service {
	s := &Service{
		engine: cwe.NewEngine(),
		logger: zap.NewNop().Sugar(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.config == nil {
		s.config = config.LoadOrDefault()
	}
	if s.client == nil {
		s.client = NewClient(s.config, s.logger, nil)
	}
	if s.cves == nil {
		s.cves = NewCVEClient(s.config, s.logger, nil)
	}
	return s
}

// NewClient builds a SonarQube client from configuration. tp may be nil.
func NewClient(cfg *config.Config, logger *zap.SugaredLogger, tp trace.TracerProvider) *sonar.Client {
	opts := []sonar.Option{
		sonar.WithBaseURL(cfg.Sonar.BaseURL),
		sonar.WithToken(cfg.Sonar.Token),
		sonar.WithOrganization(cfg.Sonar.Organization),
		sonar.WithTimeout(cfg.Sonar.Timeout()),
		sonar.WithRetries(cfg.Sonar.Retries),
		sonar.WithRateLimit(cfg.Sonar.RequestsPerMinute),
		sonar.WithLogger(logger),
	}
	if tp != nil {
		opts = append(opts, sonar.WithTracerProvider(tp))
	}
	return sonar.New(opts...)
}

// NewCVEClient builds an NVD client from configuration. tp may be nil.
func NewCVEClient(cfg *config.Config, logger *zap.SugaredLogger, tp trace.TracerProvider) *nvd.Client {
	opts := []nvd.Option{
		nvd.WithBaseURL(cfg.NVD.BaseURL),
		nvd.WithAPIKey(cfg.NVD.APIKey),
		nvd.WithResultsPerPage(cfg.NVD.ResultsPerPage),
		nvd.WithTimeout(cfg.NVD.Timeout()),
		nvd.WithRateLimit(cfg.NVD.RequestsPerMinute),
		nvd.WithLogger(logger),
	}
	if tp != nil {
		opts = append(opts, nvd.WithTracerProvider(tp))
	}
	return nvd.New(opts...)
}

// EngineFromConfig builds an engine, merging the configured rule table
// overrides on top of the built-in table.
func EngineFromConfig(cfg *config.Config) (*cwe.Engine, error) {
	if cfg.Analysis.RuleTable == "" {
		return cwe.NewEngine(), nil
	}
	table, err := cwe.LoadRuleTable(cfg.Analysis.RuleTable)
	if err != nil {
		return nil, fmt.Errorf("loading rule table: %w", err)
	}
	return cwe.NewEngine(cwe.WithRuleTable(table)), nil
}

// Client returns the SonarQube client in use.
func (s *Service) Client() sonar.API {
	return s.client
}

// Engine returns the classification engine in use.
func (s *Service) Engine() *cwe.Engine {
	return s.engine
}

// CWEOptions configures a CWE analysis run.
type CWEOptions struct {
	// ProjectKey scopes the issue search. When empty, auxiliary signals use
	// the project of the first fetched issue.
	ProjectKey string
	Types      []string
	Severities []string
	// Resolved restricts the search to resolved or unresolved issues.
	Resolved *bool
	// Filter narrows classified issues before aggregation.
	Filter        *models.IssueFilter
	PageSize      int
	MaxPages      int
	SkipAuxiliary bool
	// OnPage is called after each fetched page.
	OnPage func(fetched, total int)
}

// AnalyzeCWE fetches issues, classifies each one and aggregates the result.
// It fails only when issues cannot be listed or no rule metadata at all
// can be obtained; auxiliary signals degrade to defaults.
func (s *Service) AnalyzeCWE(ctx context.Context, opts CWEOptions) (*models.Analysis, error) {
	issues, err := s.FetchIssues(ctx, opts)
	if err != nil {
		return nil, err
	}

	catalog, err := s.ResolveRules(ctx, ruleKeys(issues))
	if err != nil {
		return nil, err
	}

	classified := s.engine.ClassifyAll(issues, catalog)
	if opts.Filter != nil {
		classified = opts.Filter.Apply(classified)
	}

	st := cwestats.Compute(classified, s.statsOptions())
	fp, err := cwestats.Fingerprint(st)
	if err != nil {
		return nil, fmt.Errorf("fingerprinting statistics: %w", err)
	}

	withCWE := 0
	for _, ci := range classified {
		if ci.HasCWE() {
			withCWE++
		}
	}

	projectKey := opts.ProjectKey
	if projectKey == "" && len(issues) > 0 {
		projectKey = issues[0].Project
	}

	aux := models.DefaultAuxiliary()
	if !opts.SkipAuxiliary {
		top := make([]string, 0, len(st.TopCategories))
		for _, c := range st.TopCategories {
			top = append(top, c.ID)
		}
		aux = s.auxiliary(ctx, projectKey, opts.ProjectKey, classified, top)
	}

	s.logger.Debugw("cwe analysis complete",
		"issues", len(classified),
		"with_cwe", withCWE,
		"rules", catalog.Len(),
		"fingerprint", fp)

	return &models.Analysis{
		Issues:        classified,
		Statistics:    st,
		TotalIssues:   len(classified),
		IssuesWithCWE: withCWE,
		ProjectKey:    projectKey,
		Auxiliary:     aux,
		GeneratedAt:   s.now().UTC(),
		Fingerprint:   fp,
	}, nil
}

// CVEs returns the first page of published CVEs recorded against a
// weakness.
func (s *Service) CVEs(ctx context.Context, id string) (*models.CVELookup, error) {
	res, err := s.cves.CVEsByWeakness(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("looking up CVEs for %s: %w", id, err)
	}
	return res, nil
}

// FetchIssues pages through issues/search until every issue is read, the
// page limit is reached or the server's search window is exhausted. Hitting
// a limit truncates the result with a warning rather than failing.
func (s *Service) FetchIssues(ctx context.Context, opts CWEOptions) ([]models.Issue, error) {
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = s.config.Sonar.PageSize
	}
	pageSize = min(max(pageSize, 1), sonar.MaxPageSize)
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = s.config.Sonar.MaxPages
	}
	maxPages = min(max(maxPages, 1), max(sonar.MaxSearchResults/pageSize, 1))

	filter := sonar.IssueFilter{
		ProjectKey: opts.ProjectKey,
		Types:      opts.Types,
		Severities: opts.Severities,
		Resolved:   opts.Resolved,
		PageSize:   pageSize,
	}

	var issues []models.Issue
	for page := 1; page <= maxPages; page++ {
		filter.Page = page
		res, err := s.client.SearchIssues(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %w", ErrIssuesUnavailable, page, err)
		}
		issues = append(issues, res.Issues...)
		if opts.OnPage != nil {
			opts.OnPage(len(issues), res.Paging.Total)
		}
		if len(res.Issues) == 0 || len(issues) >= res.Paging.Total {
			break
		}
		if page == maxPages {
			s.logger.Warnw("issue list truncated at page limit",
				"fetched", len(issues),
				"total", res.Paging.Total,
				"max_pages", maxPages,
				"search_window", sonar.MaxSearchResults)
		}
	}
	if issues == nil {
		issues = []models.Issue{}
	}
	return issues, nil
}

// ResolveRules resolves rule metadata for keys through the configured store
// and client.
func (s *Service) ResolveRules(ctx context.Context, keys []string) (*rulecatalog.Catalog, error) {
	opts := []rulecatalog.Option{
		rulecatalog.WithBatchSize(s.config.Analysis.BatchSize),
		rulecatalog.WithWorkers(s.config.Analysis.Workers),
		rulecatalog.WithLogger(s.logger),
	}
	if s.store != nil {
		opts = append(opts, rulecatalog.WithStore(s.store))
	}
	catalog, err := rulecatalog.New(s.client, opts...).Resolve(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("resolving %d rules: %w", len(keys), err)
	}
	return catalog, nil
}

// ClassifyIssue classifies a single issue, resolving its rule on demand.
// An unreachable catalog only removes the declared-standard evidence; tags
// and the rule-number table still apply.
func (s *Service) ClassifyIssue(ctx context.Context, issue models.Issue) (models.Classification, error) {
	var catalog *rulecatalog.Catalog
	if issue.Rule != "" {
		c, err := s.ResolveRules(ctx, []string{issue.Rule})
		switch {
		case errors.Is(err, rulecatalog.ErrCatalogUnavailable):
			s.logger.Warnw("rule metadata unavailable, classifying without it", "rule", issue.Rule, "error", err)
		case err != nil:
			return models.Unclassified(), err
		default:
			catalog = c
		}
	}
	return s.engine.Classify(issue, catalog), nil
}

func (s *Service) statsOptions() cwestats.Options {
	opts := cwestats.DefaultOptions()
	if s.config.Analysis.TopN > 0 {
		opts.TopN = s.config.Analysis.TopN
	}
	if s.config.Analysis.Precision >= 0 {
		opts.Precision = s.config.Analysis.Precision
	}
	if s.config.Analysis.CoveragePrecision >= 0 {
		opts.CoveragePrecision = s.config.Analysis.CoveragePrecision
	}
	return opts
}

func ruleKeys(issues []models.Issue) []string {
	keys := make([]string, 0, len(issues))
	for _, i := range issues {
		if i.Rule != "" {
			keys = append(keys, i.Rule)
		}
	}
	return keys
}
