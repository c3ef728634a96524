package main

import (
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/cwelens/internal/output"
	"github.com/panbanda/cwelens/internal/service/analysis"
	"github.com/panbanda/cwelens/pkg/config"
	"github.com/panbanda/cwelens/pkg/cwe"
)

func cweCmd() *cli.Command {
	return &cli.Command{
		Name:  "cwe",
		Usage: "Browse the CWE reference catalog",
		Subcommands: []*cli.Command{
			{
				Name:      "lookup",
				Usage:     "Show catalog entries for identifiers such as CWE-89, cwe_89 or 89",
				ArgsUsage: "<id>...",
				Flags:     outputFlags(),
				Action:    runCWELookup,
			},
			{
				Name:      "search",
				Usage:     "Search entries by id, name, category or description",
				ArgsUsage: "<query>",
				Flags:     outputFlags(),
				Action:    runCWESearch,
			},
			{
				Name:   "list",
				Usage:  "List every catalog entry",
				Flags:  outputFlags(),
				Action: runCWEList,
			},
			{
				Name:      "cves",
				Usage:     "List published CVEs recorded against a weakness in the National Vulnerability Database",
				ArgsUsage: "<id>",
				Flags: append(outputFlags(), &cli.IntFlag{
					Name:    "limit",
					Aliases: []string{"n"},
					Usage:   "Number of CVEs to fetch (default from config)",
				}),
				Action: runCWECVEs,
			},
		},
	}
}

func runCWELookup(c *cli.Context) error {
	if c.NArg() == 0 {
		return cli.Exit("at least one CWE id is required", 1)
	}
	var (
		entries []cwe.Entry
		missing []string
	)
	for _, id := range c.Args().Slice() {
		e, ok := cwe.Lookup(id)
		if !ok {
			missing = append(missing, id)
			continue
		}
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return fmt.Errorf("not in the reference catalog: %s", strings.Join(missing, ", "))
	}
	if err := printCatalog(c, entries); err != nil {
		return err
	}
	if len(missing) > 0 {
		fmt.Fprintf(c.App.ErrWriter, "not in the reference catalog: %s\n", strings.Join(missing, ", "))
	}
	return nil
}

func runCWESearch(c *cli.Context) error {
	query := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return cli.Exit("a search query is required", 1)
	}
	return printCatalog(c, cwe.Search(query))
}

func runCWEList(c *cli.Context) error {
	return printCatalog(c, cwe.All())
}

func runCWECVEs(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("exactly one CWE id is required", 1)
	}
	id := c.Args().First()
	if _, ok := cwe.Normalize(id); !ok {
		return cli.Exit(fmt.Sprintf("not a CWE id: %q", id), 1)
	}

	cfg, _, err := loadConfig(c)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	if n := c.Int("limit"); n > 0 {
		cfg.NVD.ResultsPerPage = n
	}
	logger, err := newLogger(c, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	svc := analysis.New(
		analysis.WithConfig(cfg),
		analysis.WithLogger(logger),
		analysis.WithCVESource(analysis.NewCVEClient(cfg, logger, nil)),
	)
	res, err := svc.CVEs(c.Context, id)
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(&output.CVEView{Lookup: res})
}

// printCatalog needs no SonarQube access, so an invalid or missing config
// falls back to defaults.
func printCatalog(c *cli.Context, entries []cwe.Entry) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		cfg = config.DefaultConfig()
	}
	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(&output.CatalogView{Entries: entries})
}
