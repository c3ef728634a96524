package main

import (
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/cwelens/internal/output"
	"github.com/panbanda/cwelens/pkg/analyzer/rulecatalog"
	"github.com/panbanda/cwelens/pkg/cwe"
	"github.com/panbanda/cwelens/pkg/models"
)

func rulesCmd() *cli.Command {
	return &cli.Command{
		Name:  "rules",
		Usage: "Inspect rule to CWE mappings",
		Subcommands: []*cli.Command{
			{
				Name:   "table",
				Usage:  "Show the built-in rule-number table, merged with analysis.rule_table",
				Flags:  outputFlags(),
				Action: runRulesTable,
			},
			{
				Name:      "resolve",
				Usage:     "Fetch rules and show the weaknesses each one maps to",
				ArgsUsage: "<rule-key>...",
				Flags:     outputFlags(),
				Action:    runRulesResolve,
			},
			{
				Name:  "schema",
				Usage: "Print the JSON schema for rule table files",
				Action: func(c *cli.Context) error {
					_, err := c.App.Writer.Write(cwe.RuleTableSchema())
					return err
				},
			},
		},
	}
}

func runRulesTable(c *cli.Context) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}
	table := cwe.DefaultRuleTable()
	if cfg.Analysis.RuleTable != "" {
		if table, err = cwe.LoadRuleTable(cfg.Analysis.RuleTable); err != nil {
			return err
		}
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()
	return formatter.Output(&output.RuleTableView{Table: table})
}

// ruleResolution is one row of "rules resolve".
type ruleResolution struct {
	Rule         string   `json:"rule"`
	DeclaredCWEs []string `json:"declared_cwe_ids"`
	Tags         []string `json:"tags"`
	CWEs         []string `json:"cwe_ids"`
	Confidence   string   `json:"confidence"`
	Source       string   `json:"source"`
}

func runRulesResolve(c *cli.Context) error {
	keys := c.Args().Slice()
	if len(keys) == 0 {
		return cli.Exit("at least one rule key is required", 1)
	}

	e, err := newEnv(c)
	if err != nil {
		return err
	}
	defer e.Close()

	catalog, err := e.svc.ResolveRules(c.Context, keys)
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, e.cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	rows := resolutions(e.svc.Engine(), catalog, keys)
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		cells = append(cells, []string{r.Rule, dash(r.DeclaredCWEs), dash(r.CWEs), r.Confidence, r.Source})
	}
	e.logger.Debugw("rules resolved", "stats", catalog.Stats())
	return formatter.Output(output.NewTable("Rules", []string{"Rule", "Declared", "CWE", "Confidence", "Source"}, cells, nil, rows))
}

func resolutions(engine *cwe.Engine, catalog *rulecatalog.Catalog, keys []string) []ruleResolution {
	out := make([]ruleResolution, 0, len(keys))
	for _, k := range keys {
		rec, _ := catalog.Lookup(k)
		cls := engine.Classify(models.Issue{Rule: k}, catalog)
		out = append(out, ruleResolution{
			Rule:         k,
			DeclaredCWEs: nonNil(rec.DeclaredCWEs),
			Tags:         nonNil(rec.Tags),
			CWEs:         cls.CWEs,
			Confidence:   string(cls.Confidence),
			Source:       string(cls.Source),
		})
	}
	return out
}

func dash(ids []string) string {
	if len(ids) == 0 {
		return "-"
	}
	return strings.Join(ids, ", ")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
