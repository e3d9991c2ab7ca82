package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yairfalse/logkeep/internal/filter"
	"github.com/yairfalse/logkeep/internal/lifecycle"
	"github.com/yairfalse/logkeep/pkg/logresource"
)

func newStreamCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Manage log streams",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create GROUP STREAM",
			Short: "Create a log stream, creating its group first if needed",
			Long: `Create a log stream and wait until it is visible.

If the group does not exist it is created first. The group and the stream
each get the full --timeout, so the command can take up to twice as long.`,
			Example: `  logkeep stream create /app/web access`,
			Args:    cobra.ExactArgs(2),
			RunE: a.withOpen(func(cmd *cobra.Command, args []string) error {
				a.openJournal()
				group, stream := args[0], args[1]
				key := logresource.StreamKey(group, stream)
				start := time.Now()

				s, err := a.manager.CreateStream(cmd.Context(), group, stream, a.cfg.Lifecycle.Timeout)
				a.record(lifecycle.OpCreateStream, key, start, s != nil, err)
				if err != nil {
					return err
				}
				if s == nil {
					return a.notConfirmed(fmt.Sprintf("stream %s", key))
				}

				a.success(fmt.Sprintf("stream %s is ready", key))
				return a.streamTable([]logresource.Stream{*s})
			}),
		},
		&cobra.Command{
			Use:   "delete GROUP STREAM",
			Short: "Delete a log stream and wait until it is gone",
			Args:  cobra.ExactArgs(2),
			RunE: a.withOpen(func(cmd *cobra.Command, args []string) error {
				a.openJournal()
				group, stream := args[0], args[1]
				key := logresource.StreamKey(group, stream)
				start := time.Now()

				gone, err := a.manager.DeleteStream(cmd.Context(), group, stream, a.cfg.Lifecycle.Timeout)
				a.record(lifecycle.OpDeleteStream, key, start, gone, err)
				if err != nil {
					return err
				}
				if !gone {
					return a.notConfirmed(fmt.Sprintf("deletion of stream %s", key))
				}

				a.success(fmt.Sprintf("stream %s is gone", key))
				return nil
			}),
		},
		&cobra.Command{
			Use:   "describe GROUP STREAM",
			Short: "Show a log stream by exact name",
			Args:  cobra.ExactArgs(2),
			RunE: a.withOpen(func(cmd *cobra.Command, args []string) error {
				s, err := a.manager.DescribeStream(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				if s == nil {
					return fmt.Errorf("stream %s: %w", logresource.StreamKey(args[0], args[1]), lifecycle.ErrNotFound)
				}
				return a.streamTable([]logresource.Stream{*s})
			}),
		},
		newStreamListCmd(a),
	)
	return cmd
}

func newStreamListCmd(a *app) *cobra.Command {
	var (
		prefix  string
		include []string
		exclude []string
	)

	cmd := &cobra.Command{
		Use:   "list GROUP",
		Short: "List the streams in a log group",
		Args:  cobra.ExactArgs(1),
		RunE: a.withOpen(func(cmd *cobra.Command, args []string) error {
			f, err := filter.New(include, exclude)
			if err != nil {
				return err
			}

			streams, err := a.manager.ListStreams(cmd.Context(), args[0], prefix)
			if err != nil {
				return err
			}
			streams = f.Streams(streams)
			if len(streams) == 0 {
				a.info(fmt.Sprintf("no streams in %s", args[0]))
				return nil
			}
			return a.streamTable(streams)
		}),
	}

	cmd.Flags().StringVarP(&prefix, "prefix", "p", "", "Only list streams whose names start with this prefix")
	cmd.Flags().StringSliceVar(&include, "match", nil, "Only show streams matching these glob patterns")
	cmd.Flags().StringSliceVar(&exclude, "exclude", nil, "Hide streams matching these glob patterns")
	return cmd
}
