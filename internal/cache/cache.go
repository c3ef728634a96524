// Package cache stores resolved rule records between runs, on disk or in
// Redis.
package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/zeebo/blake3"
)

// Backend is a byte-oriented key/value store with expiry.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, data []byte) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Stats(ctx context.Context) (*Stats, error)
	Close() error
}

// Stats returns cache statistics.
type Stats struct {
	Backend   string        `json:"backend"`
	Entries   int           `json:"entries"`
	TotalSize int64         `json:"total_size"`
	OldestAge time.Duration `json:"oldest_age"`
	NewestAge time.Duration `json:"newest_age"`
}

// FileStore provides file-based caching. A disabled FileStore never hits.
type FileStore struct {
	dir     string
	ttl     time.Duration
	enabled bool
}

// Entry is the on-disk envelope of a cached value.
type Entry struct {
	Key       string    `json:"key"`
	Timestamp time.Time `json:"timestamp"`
	Data      []byte    `json:"data"`
}

// NewFileStore creates a file store rooted at dir.
func NewFileStore(dir string, ttl time.Duration, enabled bool) (*FileStore, error) {
	if !enabled {
		return &FileStore{enabled: false}, nil
	}
	if dir == "" {
		return nil, errors.New("cache directory is required")
	}

	// Ensure cache directory exists
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	return &FileStore{
		dir:     dir,
		ttl:     ttl,
		enabled: true,
	}, nil
}

// HashBytes computes a BLAKE3 hash of bytes and returns it as a hex string.
func HashBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}

// Get retrieves a cached entry if it exists and is not expired.
func (c *FileStore) Get(_ context.Context, key string) ([]byte, bool) {
	if !c.enabled {
		return nil, false
	}

	path := c.keyPath(key)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	if entry.Key != key {
		return nil, false
	}

	if c.ttl > 0 && time.Since(entry.Timestamp) > c.ttl {
		os.Remove(path)
		return nil, false
	}

	return entry.Data, true
}

// Set stores data in the cache.
func (c *FileStore) Set(_ context.Context, key string, data []byte) error {
	if !c.enabled {
		return nil
	}

	entry := Entry{
		Key:       key,
		Timestamp: time.Now(),
		Data:      data,
	}

	entryData, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	// Write to a temp file first so concurrent readers never see a torn entry.
	path := c.keyPath(key)
	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(entryData); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0600); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Delete removes a cache entry. Missing entries are not an error.
func (c *FileStore) Delete(_ context.Context, key string) error {
	if !c.enabled {
		return nil
	}
	err := os.Remove(c.keyPath(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// Clear removes all cache entries.
func (c *FileStore) Clear(_ context.Context) error {
	if !c.enabled {
		return nil
	}
	matches, err := filepath.Glob(filepath.Join(c.dir, "*.json"))
	if err != nil {
		return err
	}
	for _, m := range matches {
		if err := os.Remove(m); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	return nil
}

// Close is a no-op for file stores.
func (c *FileStore) Close() error {
	return nil
}

// keyPath converts a key to a filesystem path.
func (c *FileStore) keyPath(key string) string {
	// Use BLAKE3 hash of key for filename to avoid path issues
	return filepath.Join(c.dir, HashBytes([]byte(key))+".json")
}

// Stats returns statistics about the cache.
func (c *FileStore) Stats(_ context.Context) (*Stats, error) {
	stats := &Stats{Backend: "file"}
	if !c.enabled {
		stats.Backend = "disabled"
		return stats, nil
	}

	var oldest, newest time.Time

	err := filepath.Walk(c.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		if filepath.Ext(path) != ".json" {
			return nil
		}

		stats.Entries++
		stats.TotalSize += info.Size()

		modTime := info.ModTime()
		if oldest.IsZero() || modTime.Before(oldest) {
			oldest = modTime
		}
		if newest.IsZero() || modTime.After(newest) {
			newest = modTime
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	if !oldest.IsZero() {
		stats.OldestAge = time.Since(oldest)
	}
	if !newest.IsZero() {
		stats.NewestAge = time.Since(newest)
	}

	return stats, nil
}
