package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes environment overrides, e.g. CWELENS_SONAR_PAGE_SIZE.
const EnvPrefix = "CWELENS_"

// Config holds all configuration options for cwelens.
type Config struct {
	// SonarQube connection settings
	Sonar SonarConfig `koanf:"sonar" toml:"sonar"`

	// Classification and statistics settings
	Analysis AnalysisConfig `koanf:"analysis" toml:"analysis"`

	// NVD CVE lookup settings
	NVD NVDConfig `koanf:"nvd" toml:"nvd"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`
}

// SonarConfig describes the SonarQube Cloud connection.
type SonarConfig struct {
	BaseURL           string `koanf:"base_url" toml:"base_url"`
	Organization      string `koanf:"organization" toml:"organization"`
	Token             string `koanf:"token" toml:"token"`
	PageSize          int    `koanf:"page_size" toml:"page_size"`
	MaxPages          int    `koanf:"max_pages" toml:"max_pages"`
	TimeoutSeconds    int    `koanf:"timeout_seconds" toml:"timeout_seconds"`
	AuxTimeoutSeconds int    `koanf:"aux_timeout_seconds" toml:"aux_timeout_seconds"`
	Retries           int    `koanf:"retries" toml:"retries"`
	RequestsPerMinute int    `koanf:"requests_per_minute" toml:"requests_per_minute"`
}

// Timeout is the per-request timeout.
func (s SonarConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

// AuxTimeout bounds each auxiliary signal.
func (s SonarConfig) AuxTimeout() time.Duration {
	return time.Duration(s.AuxTimeoutSeconds) * time.Second
}

// AnalysisConfig controls rule resolution and statistics.
type AnalysisConfig struct {
	BatchSize         int    `koanf:"batch_size" toml:"batch_size"`
	Workers           int    `koanf:"workers" toml:"workers"`
	Precision         int    `koanf:"precision" toml:"precision"`
	CoveragePrecision int    `koanf:"coverage_precision" toml:"coverage_precision"`
	TopN              int    `koanf:"top_n" toml:"top_n"`
	RuleTable         string `koanf:"rule_table" toml:"rule_table"` // optional YAML overrides
}

// NVDConfig controls CVE lookups against the National Vulnerability
// Database. Enabled only adds related CVEs to analysis reports; explicit
// lookups always work.
type NVDConfig struct {
	Enabled           bool   `koanf:"enabled" toml:"enabled"`
	BaseURL           string `koanf:"base_url" toml:"base_url"`
	APIKey            string `koanf:"api_key" toml:"api_key"`
	ResultsPerPage    int    `koanf:"results_per_page" toml:"results_per_page"`
	TimeoutSeconds    int    `koanf:"timeout_seconds" toml:"timeout_seconds"`
	RequestsPerMinute int    `koanf:"requests_per_minute" toml:"requests_per_minute"`
	// Categories is how many top categories a report looks up.
	Categories int `koanf:"categories" toml:"categories"`
}

// Timeout is the per-request timeout.
func (n NVDConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled  bool   `koanf:"enabled" toml:"enabled"`
	Dir      string `koanf:"dir" toml:"dir"`
	TTL      int    `koanf:"ttl" toml:"ttl"` // TTL in hours
	RedisURL string `koanf:"redis_url" toml:"redis_url"`
}

// TTLDuration converts the TTL to a duration.
func (c CacheConfig) TTLDuration() time.Duration {
	return time.Duration(c.TTL) * time.Hour
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format" toml:"format"` // text, json, markdown, toon, html
	Color   bool   `koanf:"color" toml:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Sonar: SonarConfig{
			BaseURL:           "https://sonarcloud.io",
			PageSize:          100,
			MaxPages:          10,
			TimeoutSeconds:    30,
			AuxTimeoutSeconds: 10,
			Retries:           1,
			RequestsPerMinute: 300,
		},
		Analysis: AnalysisConfig{
			BatchSize: 200,
			Workers:   4,
			Precision: 2,
			TopN:      10,
		},
		NVD: NVDConfig{
			BaseURL:           "https://services.nvd.nist.gov/rest/json/cves/2.0",
			ResultsPerPage:    20,
			TimeoutSeconds:    15,
			RequestsPerMinute: 10,
			Categories:        3,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".cwelens/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   true,
			Verbose: false,
		},
	}
}

// Load loads configuration from a file, then applies environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		// Try to detect from content or default to TOML
		parser = toml.Parser()
	}

	// Load the config file
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := loadEnv(k); err != nil {
		return nil, err
	}

	// Unmarshal into config struct
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	applySonarEnv(cfg)

	return cfg, nil
}

// FromEnv returns defaults with environment overrides applied.
func FromEnv() (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()
	if err := loadEnv(k); err != nil {
		return nil, err
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}
	applySonarEnv(cfg)
	return cfg, nil
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	if path := Find(); path != "" {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	cfg, err := FromEnv()
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

// Find returns the first config file in the standard locations, or "".
func Find() string {
	// Standard config file names to search for
	configNames := []string{
		"cwelens.toml",
		"cwelens.yaml",
		"cwelens.yml",
		"cwelens.json",
		".cwelens.toml",
		".cwelens.yaml",
		".cwelens.yml",
		".cwelens.json",
	}

	// Search in current directory and .cwelens directory
	searchDirs := []string{".", ".cwelens"}

	for _, dir := range searchDirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// loadEnv maps CWELENS_SECTION_KEY to section.key.
func loadEnv(k *koanf.Koanf) error {
	return k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "_", ".", 1)
	}), nil)
}

// applySonarEnv honors the variable names SonarQube tooling already uses.
func applySonarEnv(cfg *Config) {
	if v := os.Getenv("SONAR_TOKEN"); v != "" {
		cfg.Sonar.Token = v
	}
	if v := os.Getenv("SONAR_ORGANIZATION"); v != "" {
		cfg.Sonar.Organization = v
	}
	if v := os.Getenv("NVD_API_KEY"); v != "" {
		cfg.NVD.APIKey = v
	}
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Sonar.BaseURL == "" {
		errs = append(errs, errors.New("sonar.base_url is required"))
	}
	if c.Sonar.PageSize < 1 || c.Sonar.PageSize > 500 {
		errs = append(errs, fmt.Errorf("sonar.page_size must be between 1 and 500, got %d", c.Sonar.PageSize))
	}
	if c.Sonar.MaxPages < 1 {
		errs = append(errs, fmt.Errorf("sonar.max_pages must be positive, got %d", c.Sonar.MaxPages))
	}
	if c.Sonar.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("sonar.timeout_seconds must be positive, got %d", c.Sonar.TimeoutSeconds))
	}
	if c.Sonar.AuxTimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("sonar.aux_timeout_seconds must be positive, got %d", c.Sonar.AuxTimeoutSeconds))
	}
	if c.Sonar.Retries < 0 {
		errs = append(errs, fmt.Errorf("sonar.retries must not be negative, got %d", c.Sonar.Retries))
	}
	if c.Sonar.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("sonar.requests_per_minute must not be negative, got %d", c.Sonar.RequestsPerMinute))
	}
	if c.Analysis.BatchSize < 1 || c.Analysis.BatchSize > 200 {
		errs = append(errs, fmt.Errorf("analysis.batch_size must be between 1 and 200, got %d", c.Analysis.BatchSize))
	}
	if c.Analysis.Workers < 1 {
		errs = append(errs, fmt.Errorf("analysis.workers must be positive, got %d", c.Analysis.Workers))
	}
	if c.Analysis.Precision < 0 || c.Analysis.Precision > 6 {
		errs = append(errs, fmt.Errorf("analysis.precision must be between 0 and 6, got %d", c.Analysis.Precision))
	}
	if c.Analysis.CoveragePrecision < 0 || c.Analysis.CoveragePrecision > 6 {
		errs = append(errs, fmt.Errorf("analysis.coverage_precision must be between 0 and 6, got %d", c.Analysis.CoveragePrecision))
	}
	if c.Analysis.TopN < 1 || c.Analysis.TopN > 10 {
		errs = append(errs, fmt.Errorf("analysis.top_n must be between 1 and 10, got %d", c.Analysis.TopN))
	}
	if c.NVD.BaseURL == "" {
		errs = append(errs, errors.New("nvd.base_url is required"))
	}
	if c.NVD.ResultsPerPage < 1 || c.NVD.ResultsPerPage > 2000 {
		errs = append(errs, fmt.Errorf("nvd.results_per_page must be between 1 and 2000, got %d", c.NVD.ResultsPerPage))
	}
	if c.NVD.TimeoutSeconds < 1 {
		errs = append(errs, fmt.Errorf("nvd.timeout_seconds must be positive, got %d", c.NVD.TimeoutSeconds))
	}
	if c.NVD.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("nvd.requests_per_minute must not be negative, got %d", c.NVD.RequestsPerMinute))
	}
	if c.NVD.Categories < 1 || c.NVD.Categories > 10 {
		errs = append(errs, fmt.Errorf("nvd.categories must be between 1 and 10, got %d", c.NVD.Categories))
	}
	if c.Cache.Enabled && c.Cache.Dir == "" && c.Cache.RedisURL == "" {
		errs = append(errs, errors.New("cache.dir or cache.redis_url is required when caching is enabled"))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must not be negative, got %d", c.Cache.TTL))
	}
	switch c.Output.Format {
	case "text", "json", "markdown", "toon", "html":
	default:
		errs = append(errs, fmt.Errorf("output.format %q is not one of text, json, markdown, toon, html", c.Output.Format))
	}
	return errors.Join(errs...)
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Sonar.Token != "" {
		out.Sonar.Token = "********"
	}
	if out.NVD.APIKey != "" {
		out.NVD.APIKey = "********"
	}
	return &out
}
