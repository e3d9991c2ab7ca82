package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/logkeep/internal/filter"
	"github.com/yairfalse/logkeep/internal/lifecycle"
	"github.com/yairfalse/logkeep/pkg/logresource"
)

func newGroupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group",
		Short: "Manage log groups",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create NAME",
			Short: "Create a log group and wait until it is visible",
			Example: `  logkeep group create /app/web
  logkeep group create /app/web --timeout 1m`,
			Args: cobra.ExactArgs(1),
			RunE: a.withOpen(func(cmd *cobra.Command, args []string) error {
				a.openJournal()
				name := args[0]
				start := time.Now()

				g, err := a.manager.CreateGroup(cmd.Context(), name, a.cfg.Lifecycle.Timeout)
				a.record(lifecycle.OpCreateGroup, name, start, g != nil, err)
				if err != nil {
					return err
				}
				if g == nil {
					return a.notConfirmed(fmt.Sprintf("group %s", name))
				}

				a.success(fmt.Sprintf("group %s is ready", name))
				return a.groupTable([]logresource.Group{*g})
			}),
		},
		&cobra.Command{
			Use:   "delete NAME",
			Short: "Delete a log group and wait until it is gone",
			Args:  cobra.ExactArgs(1),
			RunE: a.withOpen(func(cmd *cobra.Command, args []string) error {
				a.openJournal()
				name := args[0]
				start := time.Now()

				gone, err := a.manager.DeleteGroup(cmd.Context(), name, a.cfg.Lifecycle.Timeout)
				a.record(lifecycle.OpDeleteGroup, name, start, gone, err)
				if err != nil {
					return err
				}
				if !gone {
					return a.notConfirmed(fmt.Sprintf("deletion of group %s", name))
				}

				a.success(fmt.Sprintf("group %s is gone", name))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "describe NAME",
			Short: "Show a log group by exact name",
			Args:  cobra.ExactArgs(1),
			RunE: a.withOpen(func(cmd *cobra.Command, args []string) error {
				g, err := a.manager.DescribeGroup(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if g == nil {
					return fmt.Errorf("group %s: %w", args[0], lifecycle.ErrNotFound)
				}
				return a.groupTable([]logresource.Group{*g})
			}),
		},
		newGroupListCmd(a),
	)
	return cmd
}

func newGroupListCmd(a *app) *cobra.Command {
	var (
		prefix  string
		include []string
		exclude []string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List log groups",
		Args:  cobra.NoArgs,
		RunE: a.withOpen(func(cmd *cobra.Command, _ []string) error {
			f, err := filter.New(include, exclude)
			if err != nil {
				return err
			}

			groups, err := a.manager.ListGroups(cmd.Context(), prefix)
			if err != nil {
				return err
			}
			groups = f.Groups(groups)
			if len(groups) == 0 {
				a.info("no log groups found")
				return nil
			}
			return a.groupTable(groups)
		}),
	}

	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "Only list groups whose names start with this prefix")
	cmd.Flags().StringSliceVar(&include, "match", nil, "Only show groups matching these glob patterns")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Hide groups matching these glob patterns")
	return cmd
}
