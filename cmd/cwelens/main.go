package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "cwelens",
		Usage:   "CWE classification for SonarQube Cloud issues",
		Version: version,
		Description: `cwelens pulls issues and rules from a SonarQube Cloud organization, maps every
issue to CWE weakness categories and reports deterministic statistics.

Credentials are read from SONAR_TOKEN and SONAR_ORGANIZATION, from CWELENS_*
variables, or from a cwelens.toml / .yaml / .json config file.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"CWELENS_CONFIG"},
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable debug logging",
			},
			&cli.BoolFlag{
				Name:  "log-json",
				Usage: "Emit logs as JSON",
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "Log a span for every SonarQube request (implies --verbose)",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("no-color") {
				color.NoColor = true
			}
			return nil
		},
		Commands: []*cli.Command{
			analyzeCmd(),
			reportCmd(),
			rulesCmd(),
			cweCmd(),
			configCmd(),
			cacheCmd(),
			mcpCmd(),
		},
	}
}
