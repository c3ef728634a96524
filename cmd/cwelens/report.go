package main

import (
	"github.com/urfave/cli/v2"

	"github.com/panbanda/cwelens/internal/report"
	"github.com/panbanda/cwelens/pkg/models"
)

func reportCmd() *cli.Command {
	return &cli.Command{
		Name:      "report",
		Usage:     "Generate an HTML dashboard for a project",
		ArgsUsage: "[project-key]",
		Description: `Renders a self-contained HTML report. The analysis is run live unless --from
points at JSON written by "cwelens analyze -f json".

Examples:
  cwelens report -o security.html my_project
  cwelens report --from analysis.json -o security.html`,
		Flags: append(selectionFlags(),
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Value:   "cwelens-report.html",
				Usage:   "Output HTML file",
			},
			&cli.StringFlag{
				Name:  "from",
				Usage: "Render a saved analysis JSON instead of fetching",
			},
			&cli.IntFlag{
				Name:  "max-issues",
				Value: report.DefaultMaxIssues,
				Usage: "Issues listed in the report",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable the rule cache",
			},
		),
		Action: runReport,
	}
}

func runReport(c *cli.Context) error {
	var (
		result  *models.Analysis
		baseURL string
	)

	if from := c.String("from"); from != "" {
		a, err := report.LoadAnalysis(from)
		if err != nil {
			return err
		}
		result = a
		if cfg, _, err := loadConfig(c); err == nil {
			baseURL = cfg.Sonar.BaseURL
		}
	} else {
		e, err := newEnv(c)
		if err != nil {
			return err
		}
		defer e.Close()
		a, err := analyze(c, e)
		if err != nil {
			return err
		}
		result = a
		baseURL = e.cfg.Sonar.BaseURL
	}

	r, err := report.NewRenderer(report.WithBaseURL(baseURL), report.WithMaxIssues(c.Int("max-issues")))
	if err != nil {
		return err
	}
	path := c.String("output")
	if err := r.RenderToFile(result, path); err != nil {
		return err
	}
	messages(c.App.ErrWriter).Success("Report written to %s", path)
	return nil
}
