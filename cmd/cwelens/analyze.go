package main

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/cwelens/internal/output"
	"github.com/panbanda/cwelens/internal/progress"
	"github.com/panbanda/cwelens/internal/report"
	"github.com/panbanda/cwelens/internal/service/analysis"
	"github.com/panbanda/cwelens/pkg/cwe"
	"github.com/panbanda/cwelens/pkg/models"
)

// selectionFlags choose which issues are fetched and kept.
func selectionFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "project",
			Aliases: []string{"p"},
			Usage:   "SonarQube project key (or pass it as the first argument)",
		},
		&cli.StringSliceFlag{
			Name:  "type",
			Usage: "Issue types to fetch: BUG, VULNERABILITY, CODE_SMELL (repeatable or comma-separated)",
		},
		&cli.StringSliceFlag{
			Name:  "severity",
			Usage: "Severities to fetch: BLOCKER, CRITICAL, MAJOR, MINOR, INFO",
		},
		&cli.StringFlag{
			Name:  "resolved",
			Usage: "Fetch only resolved (true) or unresolved (false) issues",
		},
		&cli.StringSliceFlag{
			Name:  "cwe",
			Usage: "Keep only issues classified into these CWE ids",
		},
		&cli.StringFlag{
			Name:  "search",
			Usage: "Keep only issues whose key, rule, message or component contains this text",
		},
		&cli.IntFlag{
			Name:  "page-size",
			Usage: "Issues per page, 1-500 (default from config)",
		},
		&cli.IntFlag{
			Name:  "max-pages",
			Usage: "Maximum pages to fetch (default from config)",
		},
		&cli.BoolFlag{
			Name:  "skip-auxiliary",
			Usage: "Skip hotspot, metric and trend signals",
		},
		&cli.BoolFlag{
			Name:  "cves",
			Usage: "Look up published CVEs for the top categories (same as nvd.enabled)",
		},
		&cli.BoolFlag{
			Name:  "no-progress",
			Usage: "Do not draw a progress bar",
		},
	}
}

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Aliases:   []string{"a"},
		Usage:     "Classify a project's issues into CWE categories",
		ArgsUsage: "[project-key]",
		Description: `Fetches issues, resolves their rules, classifies each issue and prints the
statistics. Flags must precede the project key.

Examples:
  cwelens analyze my_project
  cwelens analyze -f json -o analysis.json my_project
  cwelens analyze --type VULNERABILITY --cwe CWE-89 my_project`,
		Flags: append(append(selectionFlags(), outputFlags()...),
			&cli.IntFlag{
				Name:  "max-issues",
				Usage: "Issues listed in text and markdown output",
				Value: output.DefaultMaxIssues,
			},
		),
		Action: runAnalyze,
	}
}

func runAnalyze(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	result, err := analyze(c, e)
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, e.cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	if c.String("format") == "" && e.cfg.Output.Format == "html" {
		r, err := report.NewRenderer(report.WithBaseURL(e.cfg.Sonar.BaseURL))
		if err != nil {
			return err
		}
		return r.Render(result, formatter.Writer())
	}
	return formatter.Output(output.NewAnalysisView(result, c.Int("max-issues")))
}

// analyze runs an analysis from the selection flags.
func analyze(c *cli.Context, e *env) (*models.Analysis, error) {
	opts, err := cweOptions(c)
	if err != nil {
		return nil, err
	}

	tracker := progress.Disabled()
	if !c.Bool("no-progress") {
		tracker = progress.NewTracker("Fetching issues", 0)
	}
	opts.OnPage = tracker.Page

	result, err := e.svc.AnalyzeCWE(c.Context, opts)
	if err != nil {
		tracker.FinishError(err)
		return nil, err
	}
	tracker.FinishSuccess()
	return result, nil
}

func cweOptions(c *cli.Context) (analysis.CWEOptions, error) {
	project := c.String("project")
	if project == "" {
		project = c.Args().First()
	}

	opts := analysis.CWEOptions{
		ProjectKey:    project,
		Types:         splitList(c.StringSlice("type"), true),
		Severities:    splitList(c.StringSlice("severity"), true),
		PageSize:      c.Int("page-size"),
		MaxPages:      c.Int("max-pages"),
		SkipAuxiliary: c.Bool("skip-auxiliary"),
	}

	if v := c.String("resolved"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return opts, fmt.Errorf("--resolved must be true or false, got %q", v)
		}
		opts.Resolved = &b
	}

	ids := splitList(c.StringSlice("cwe"), false)
	if len(ids) > 0 || c.String("search") != "" {
		opts.Filter = &models.IssueFilter{CWEs: cwe.NormalizeAll(ids), Search: c.String("search")}
	}
	return opts, nil
}
