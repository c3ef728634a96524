package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/cwelens/internal/mcpserver"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes CWE analysis as
tools that LLMs can invoke.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "cwelens": {
        "command": "cwelens",
        "args": ["mcp"],
        "env": {"SONAR_TOKEN": "...", "SONAR_ORGANIZATION": "..."}
      }
    }
  }

Available tools:
  - analyze_cwe         Classify a project's issues and aggregate statistics
  - classify_issue      Classify one rule key and tag set
  - lookup_cwe          Reference entry for a CWE id
  - search_cwe          Search the reference catalog
  - list_rule_mappings  Rule-number to CWE fallback table`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable the rule cache",
			},
		},
		Action: runMCP,
		Subcommands: []*cli.Command{
			{
				Name:  "manifest",
				Usage: "Print the MCP registry manifest (server.json)",
				Action: func(c *cli.Context) error {
					data, err := mcpserver.GenerateManifest(version)
					if err != nil {
						return err
					}
					fmt.Fprintln(c.App.Writer, string(data))
					return nil
				},
			},
		},
	}
}

func runMCP(c *cli.Context) error {
	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()
	return mcpserver.NewServer(version, e.svc).Run(c.Context)
}
