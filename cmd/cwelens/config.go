package main

import (
	"fmt"

	"github.com/pelletier/go-toml"
	"github.com/urfave/cli/v2"
)

func configCmd() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management commands",
		Subcommands: []*cli.Command{
			{
				Name:  "validate",
				Usage: "Validate a configuration file",
				Description: `Validates a cwelens configuration file for syntax errors and invalid values.

Examples:
  cwelens config validate                  # Validates default config locations
  cwelens -c cwelens.toml config validate  # Validates specific file`,
				Action: runConfigValidate,
			},
			{
				Name:   "show",
				Usage:  "Show the effective configuration with the token redacted",
				Action: runConfigShow,
			},
		},
	}
}

func runConfigValidate(c *cli.Context) error {
	_, source, err := loadConfig(c)
	if err != nil {
		msg := messages(c.App.Writer)
		msg.Error("Configuration validation failed:")
		msg.Info("  - %s", err)
		return err
	}

	if source != "" {
		messages(c.App.Writer).Success("Configuration valid: %s", source)
	} else {
		messages(c.App.Writer).Warning("No config file found. Default configuration is valid.")
	}
	return nil
}

func runConfigShow(c *cli.Context) error {
	cfg, source, err := loadConfig(c)
	if err != nil {
		return err
	}

	if source != "" {
		fmt.Fprintf(c.App.Writer, "# Configuration from: %s\n\n", source)
	} else {
		fmt.Fprintln(c.App.Writer, "# Default configuration (no config file found)")
	}

	content, err := toml.Marshal(*cfg.Redacted())
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	fmt.Fprint(c.App.Writer, string(content))
	return nil
}
