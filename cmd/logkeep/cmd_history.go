package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yairfalse/logkeep/internal/journal"
)

func newHistoryCmd(a *app) *cobra.Command {
	var (
		limit   int
		key     string
		latest  string
		compact int64
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded create and delete operations",
		Example: `  logkeep history --limit 20
  logkeep history --key /app/web
  logkeep history --latest /app/
  logkeep history --compact 1000`,
		Args: cobra.NoArgs,
		RunE: a.withOpen(func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Journal.Disabled {
				return fmt.Errorf("history: journal is disabled in config")
			}
			j, err := journal.Open(a.cfg.Journal.Path)
			if err != nil {
				return err
			}
			a.journal = j

			switch {
			case compact > 0:
				removed, err := j.Compact(compact)
				if err != nil {
					return fmt.Errorf("compact journal: %w", err)
				}
				a.success(fmt.Sprintf("removed %d entries, kept the newest %d", removed, compact))
				return nil

			case key != "":
				e, ok := j.Latest(key)
				if !ok {
					a.info(fmt.Sprintf("nothing recorded for %s", key))
					return nil
				}
				a.info(fmt.Sprintf("%s: %d operations recorded", key, j.Count(key)))
				return a.entryTable([]journal.Entry{e})

			case cmd.Flags().Changed("latest"):
				entries := j.LatestByPrefix(latest)
				if len(entries) == 0 {
					a.info("nothing recorded")
					return nil
				}
				return a.entryTable(entries)
			}

			entries, err := j.History(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				a.info("nothing recorded")
				return nil
			}
			return a.entryTable(entries)
		}),
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show, newest first (0 for all)")
	cmd.Flags().StringVar(&key, "key", "", "Show the latest entry for one group or group/stream key")
	cmd.Flags().StringVar(&latest, "latest", "", "Show the latest entry per key under this prefix")
	cmd.Flags().Int64Var(&compact, "compact", 0, "Drop all but the newest N entries")
	cmd.MarkFlagsMutuallyExclusive("key", "latest", "compact")
	return cmd
}
