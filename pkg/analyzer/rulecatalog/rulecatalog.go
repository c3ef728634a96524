// Package rulecatalog resolves rule keys to the classification-relevant
// metadata of their rules, tolerating partial upstream failure.
package rulecatalog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/panbanda/cwelens/pkg/cwe"
	"github.com/panbanda/cwelens/pkg/models"
)

// MaxBatchSize is the largest number of keys sent in one batch request.
const MaxBatchSize = 200

// DefaultWorkers bounds concurrent requests issued by a Resolver.
const DefaultWorkers = 4

// ErrCatalogUnavailable is returned when rule keys were requested but no
// rule metadata could be obtained from any source.
var ErrCatalogUnavailable = errors.New("rule catalog unavailable")

// Source fetches rule metadata from the analysis service.
type Source interface {
	SearchRulesByKeys(ctx context.Context, keys []string) ([]models.Rule, error)
	// GetRule returns (nil, nil) when the rule does not exist.
	GetRule(ctx context.Context, key string) (*models.Rule, error)
}

// Store persists resolved records between runs.
type Store interface {
	GetRecord(ctx context.Context, ruleKey string) (models.RuleRecord, bool)
	PutRecord(ctx context.Context, ruleKey string, rec models.RuleRecord) error
}

// Stats describes where the records of a Catalog came from.
type Stats struct {
	Requested int `json:"requested"`
	FromStore int `json:"from_store"`
	FromBatch int `json:"from_batch"`
	// FromFallback counts keys resolved by single-rule requests.
	FromFallback  int `json:"from_fallback"`
	Unresolved    int `json:"unresolved"`
	BatchCalls    int `json:"batch_calls"`
	FailedBatches int `json:"failed_batches"`
}

// Catalog is a read-only rule key to record lookup. It is safe for
// concurrent reads.
type Catalog struct {
	records map[string]models.RuleRecord
	stats   Stats
}

// NewCatalog builds a catalog directly from records.
func NewCatalog(records map[string]models.RuleRecord) *Catalog {
	c := &Catalog{records: make(map[string]models.RuleRecord, len(records))}
	for k, v := range records {
		c.records[k] = v
	}
	c.stats.Requested = len(records)
	return c
}

// Lookup returns the record for a rule key. Requested keys that could not be
// resolved are present with an empty record.
func (c *Catalog) Lookup(ruleKey string) (models.RuleRecord, bool) {
	if c == nil {
		return models.RuleRecord{}, false
	}
	rec, ok := c.records[ruleKey]
	return rec, ok
}

// Len returns the number of keys in the catalog.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.records)
}

// Keys returns the catalog's rule keys, sorted.
func (c *Catalog) Keys() []string {
	if c == nil {
		return nil
	}
	keys := make([]string, 0, len(c.records))
	for k := range c.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Stats returns resolution statistics.
func (c *Catalog) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return c.stats
}

// RecordFromRule extracts declared weaknesses and tags from a rule.
func RecordFromRule(rule models.Rule) models.RuleRecord {
	standards := make([]string, 0, len(rule.SecurityStandards))
	for standard := range rule.SecurityStandards {
		if strings.EqualFold(standard, "cwe") {
			standards = append(standards, standard)
		}
	}
	sort.Strings(standards)
	var declared []string
	for _, standard := range standards {
		declared = append(declared, rule.SecurityStandards[standard]...)
	}
	tags := make([]string, len(rule.Tags))
	copy(tags, rule.Tags)
	return models.RuleRecord{
		DeclaredCWEs: cwe.NormalizeAll(declared),
		Tags:         tags,
	}
}

// Resolver builds Catalogs from a Source, optionally backed by a Store.
type Resolver struct {
	source    Source
	store     Store
	batchSize int
	workers   int
	logger    *zap.SugaredLogger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStore serves and saves records through s.
func WithStore(s Store) Option {
	return func(r *Resolver) {
		r.store = s
	}
}

// WithBatchSize sets the number of keys per batch request, clamped to
// 1..MaxBatchSize.
func WithBatchSize(n int) Option {
	return func(r *Resolver) {
		r.batchSize = n
	}
}

// WithWorkers bounds concurrent requests.
func WithWorkers(n int) Option {
	return func(r *Resolver) {
		r.workers = n
	}
}

// WithLogger sets the logger for degraded failures.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// New creates a Resolver fetching from src.
func New(src Source, opts ...Option) *Resolver {
	r := &Resolver{
		source:    src,
		batchSize: MaxBatchSize,
		workers:   DefaultWorkers,
		logger:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.batchSize <= 0 || r.batchSize > MaxBatchSize {
		r.batchSize = MaxBatchSize
	}
	if r.workers <= 0 {
		r.workers = DefaultWorkers
	}
	if r.logger == nil {
		r.logger = zap.NewNop().Sugar()
	}
	return r
}

// Resolve returns a record for every distinct non-empty key. Keys that no
// source could resolve map to an empty record. It fails only when no rule
// metadata could be obtained at all.
func (r *Resolver) Resolve(ctx context.Context, keys []string) (*Catalog, error) {
	uniq := dedupe(keys)
	cat := &Catalog{records: make(map[string]models.RuleRecord, len(uniq))}
	cat.stats.Requested = len(uniq)
	if len(uniq) == 0 {
		return cat, nil
	}

	missing := make([]string, 0, len(uniq))
	for _, k := range uniq {
		if r.store != nil {
			if rec, ok := r.store.GetRecord(ctx, k); ok {
				cat.records[k] = rec
				cat.stats.FromStore++
				continue
			}
		}
		missing = append(missing, k)
	}
	if len(missing) == 0 {
		return cat, nil
	}

	fetched, batchOK := r.fetchBatches(ctx, missing, &cat.stats)

	leftover := make([]string, 0)
	for _, k := range missing {
		if _, ok := fetched[k]; !ok {
			leftover = append(leftover, k)
		}
	}
	cat.stats.FromBatch = len(fetched)

	single, singleOK := r.fetchIndividually(ctx, leftover)
	cat.stats.FromFallback = len(single)

	if batchOK == 0 && singleOK == 0 && cat.stats.FromStore == 0 {
		return nil, fmt.Errorf("%w: %d rules requested", ErrCatalogUnavailable, len(uniq))
	}

	for k, rec := range single {
		fetched[k] = rec
	}
	for _, k := range missing {
		rec, ok := fetched[k]
		if !ok {
			cat.records[k] = models.RuleRecord{}
			cat.stats.Unresolved++
			continue
		}
		cat.records[k] = rec
		if r.store != nil {
			if err := r.store.PutRecord(ctx, k, rec); err != nil {
				r.logger.Debugw("rule cache write failed", "rule", k, "error", err)
			}
		}
	}

	return cat, nil
}

// fetchBatches requests keys in chunks and returns the records found along
// with the number of batch calls that succeeded.
func (r *Resolver) fetchBatches(ctx context.Context, keys []string, stats *Stats) (map[string]models.RuleRecord, int) {
	wanted := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}

	var (
		mu      sync.Mutex
		found   = make(map[string]models.RuleRecord, len(keys))
		okCalls int
	)
	chunks := chunk(keys, r.batchSize)
	stats.BatchCalls = len(chunks)

	p := pool.New().WithMaxGoroutines(r.workers)
	for _, c := range chunks {
		p.Go(func() {
			rules, err := r.source.SearchRulesByKeys(ctx, c)
			if err != nil {
				r.logger.Warnw("rule batch fetch failed", "keys", len(c), "first", c[0], "error", err)
				mu.Lock()
				stats.FailedBatches++
				mu.Unlock()
				return
			}
			mu.Lock()
			defer mu.Unlock()
			okCalls++
			for _, rule := range rules {
				if _, ok := wanted[rule.Key]; ok {
					found[rule.Key] = RecordFromRule(rule)
				}
			}
		})
	}
	p.Wait()

	return found, okCalls
}

// fetchIndividually requests each key on its own. Not-found rules count as
// successful calls without a record.
func (r *Resolver) fetchIndividually(ctx context.Context, keys []string) (map[string]models.RuleRecord, int) {
	var (
		mu      sync.Mutex
		found   = make(map[string]models.RuleRecord, len(keys))
		okCalls int
	)
	if len(keys) == 0 {
		return found, 0
	}

	p := pool.New().WithMaxGoroutines(r.workers)
	for _, k := range keys {
		p.Go(func() {
			rule, err := r.source.GetRule(ctx, k)
			if err != nil {
				r.logger.Warnw("rule fetch failed", "rule", k, "error", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			okCalls++
			if rule != nil {
				found[k] = RecordFromRule(*rule)
			}
		})
	}
	p.Wait()

	return found, okCalls
}

func dedupe(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func chunk(keys []string, size int) [][]string {
	var out [][]string
	for start := 0; start < len(keys); start += size {
		end := start + size
		if end > len(keys) {
			end = len(keys)
		}
		out = append(out, keys[start:end])
	}
	return out
}
