package main

import (
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/cwelens/internal/cache"
	"github.com/panbanda/cwelens/internal/output"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Manage the rule metadata cache",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cache backend, entry count and size",
				Flags:  outputFlags(),
				Action: runCacheStats,
			},
			{
				Name:      "clear",
				Usage:     "Remove cached rule records, or only the given rules",
				ArgsUsage: "[rule-key]...",
				Action:    runCacheClear,
			},
		},
	}
}

func runCacheStats(c *cli.Context) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}
	backend, err := cache.Open(c.Context, cacheOptions(cfg))
	if err != nil {
		return err
	}
	defer backend.Close()

	st, err := backend.Stats(c.Context)
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	rows := [][]string{
		{"Backend", st.Backend},
		{"Entries", strconv.Itoa(st.Entries)},
		{"Total size", strconv.FormatInt(st.TotalSize, 10) + " bytes"},
	}
	if st.Entries > 0 {
		rows = append(rows,
			[]string{"Oldest entry", st.OldestAge.Round(time.Second).String()},
			[]string{"Newest entry", st.NewestAge.Round(time.Second).String()},
		)
	}
	return formatter.Output(output.NewTable("Cache", []string{"Property", "Value"}, rows, nil, st))
}

func runCacheClear(c *cli.Context) error {
	cfg, _, err := loadConfig(c)
	if err != nil {
		return err
	}
	backend, err := cache.Open(c.Context, cacheOptions(cfg))
	if err != nil {
		return err
	}
	defer backend.Close()

	if rules := c.Args().Slice(); len(rules) > 0 {
		store := cache.NewRecordStore(backend, cfg.Sonar.Organization)
		for _, r := range rules {
			if err := store.DeleteRecord(c.Context, r); err != nil {
				return err
			}
		}
		messages(c.App.Writer).Success("Removed %d cached rules", len(rules))
		return nil
	}

	if err := backend.Clear(c.Context); err != nil {
		return err
	}
	messages(c.App.Writer).Success("Cache cleared")
	return nil
}
