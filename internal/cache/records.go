package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/panbanda/cwelens/pkg/models"
)

// recordVersion is bumped whenever RuleRecord's encoding changes.
const recordVersion = "v1"

// Options selects and configures a backend.
type Options struct {
	Enabled  bool
	Dir      string
	TTL      time.Duration
	RedisURL string
}

// Open returns the Redis backend when a URL is configured, otherwise the
// file backend (disabled when caching is off).
func Open(ctx context.Context, opts Options) (Backend, error) {
	if !opts.Enabled {
		return NewFileStore("", 0, false)
	}
	if opts.RedisURL != "" {
		return NewRedisStore(ctx, RedisOptions{URL: opts.RedisURL, TTL: opts.TTL})
	}
	return NewFileStore(opts.Dir, opts.TTL, true)
}

// RecordStore persists rule records in a Backend, namespaced so records
// from different organizations never collide.
type RecordStore struct {
	backend   Backend
	namespace string
}

// NewRecordStore wraps backend. namespace is typically the organization.
func NewRecordStore(backend Backend, namespace string) *RecordStore {
	return &RecordStore{backend: backend, namespace: namespace}
}

func (s *RecordStore) key(ruleKey string) string {
	return fmt.Sprintf("rule:%s:%s:%s", recordVersion, s.namespace, ruleKey)
}

// GetRecord returns a cached record.
func (s *RecordStore) GetRecord(ctx context.Context, ruleKey string) (models.RuleRecord, bool) {
	data, ok := s.backend.Get(ctx, s.key(ruleKey))
	if !ok {
		return models.RuleRecord{}, false
	}
	var rec models.RuleRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return models.RuleRecord{}, false
	}
	return rec, true
}

// DeleteRecord drops a cached record so the next run refetches it.
func (s *RecordStore) DeleteRecord(ctx context.Context, ruleKey string) error {
	return s.backend.Delete(ctx, s.key(ruleKey))
}

// PutRecord caches a record.
func (s *RecordStore) PutRecord(ctx context.Context, ruleKey string, rec models.RuleRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, s.key(ruleKey), data)
}
