package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/panbanda/cwelens/internal/cache"
	"github.com/panbanda/cwelens/internal/logging"
	"github.com/panbanda/cwelens/internal/output"
	"github.com/panbanda/cwelens/internal/service/analysis"
	"github.com/panbanda/cwelens/pkg/config"
)

// messages writes status lines to w, colored unless disabled globally.
func messages(w io.Writer) *output.Formatter {
	return output.NewWriterFormatter(output.FormatText, w, !color.NoColor)
}

// outputFlags are shared by every command that prints results.
func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Output format: text, json, markdown, toon (default from config)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write output to file",
		},
		&cli.BoolFlag{
			Name:  "no-cache",
			Usage: "Disable the rule cache",
		},
	}
}

// loadConfig reads --config, or the first config file found, or the
// environment, and validates the result.
func loadConfig(c *cli.Context) (*config.Config, string, error) {
	path := c.String("config")
	if path == "" {
		path = config.Find()
	}

	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		return nil, path, err
	}

	if c.Bool("verbose") || c.Bool("trace") {
		cfg.Output.Verbose = true
	}
	if c.Bool("no-color") {
		cfg.Output.Color = false
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, path, nil
}

func newLogger(c *cli.Context, cfg *config.Config) (*zap.SugaredLogger, error) {
	return logging.New(cfg.Output.Verbose, c.Bool("log-json"))
}

// env bundles what a command needs to talk to SonarQube.
type env struct {
	cfg     *config.Config
	logger  *zap.SugaredLogger
	svc     *analysis.Service
	closers []func() error
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			e.logger.Warnw("cleanup failed", "error", err)
		}
	}
	_ = e.logger.Sync()
}

// newEnv wires configuration, logging, tracing, the rule cache and the
// analysis service.
func newEnv(c *cli.Context) (*env, error) {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if c.Bool("cves") {
		cfg.NVD.Enabled = true
	}
	logger, err := newLogger(c, cfg)
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger}

	var tp trace.TracerProvider
	if c.Bool("trace") {
		sdk := logging.NewTracerProvider(logger)
		tp = sdk
		e.closers = append(e.closers, func() error { return sdk.Shutdown(context.Background()) })
	}

	engine, err := analysis.EngineFromConfig(cfg)
	if err != nil {
		e.Close()
		return nil, err
	}

	opts := []analysis.Option{
		analysis.WithConfig(cfg),
		analysis.WithLogger(logger),
		analysis.WithEngine(engine),
		analysis.WithClient(analysis.NewClient(cfg, logger, tp)),
		analysis.WithCVESource(analysis.NewCVEClient(cfg, logger, tp)),
	}

	if cfg.Cache.Enabled && !c.Bool("no-cache") {
		backend, err := cache.Open(c.Context, cacheOptions(cfg))
		if err != nil {
			// A broken cache only costs extra requests.
			logger.Warnw("rule cache unavailable", "error", err)
		} else {
			e.closers = append(e.closers, backend.Close)
			opts = append(opts, analysis.WithStore(cache.NewRecordStore(backend, cfg.Sonar.Organization)))
		}
	}

	e.svc = analysis.New(opts...)
	return e, nil
}

func cacheOptions(cfg *config.Config) cache.Options {
	return cache.Options{
		Enabled:  cfg.Cache.Enabled,
		Dir:      cfg.Cache.Dir,
		TTL:      cfg.Cache.TTLDuration(),
		RedisURL: cfg.Cache.RedisURL,
	}
}

// newFormatter honors --format and --output, falling back to the config.
func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	format := c.String("format")
	if format == "" {
		format = cfg.Output.Format
	}
	colored := cfg.Output.Color && !color.NoColor
	if path := c.String("output"); path != "" {
		return output.NewFormatter(output.ParseFormat(format), path, false)
	}
	return output.NewWriterFormatter(output.ParseFormat(format), c.App.Writer, colored), nil
}

// splitList flattens repeated and comma-separated flag values.
func splitList(values []string, upper bool) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if upper {
				part = strings.ToUpper(part)
			}
			out = append(out, part)
		}
	}
	return out
}
