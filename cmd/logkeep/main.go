// logkeep - lifecycle manager for log groups and log streams.
// Create. Confirm. Done.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"

	_ "github.com/yairfalse/logkeep/internal/plugin/aws"
	_ "github.com/yairfalse/logkeep/internal/plugin/memory"
)

// Exit codes.
const (
	exitConfirmed    = 0
	exitError        = 1
	exitNotConfirmed = 2
)

// errNotConfirmed marks a run whose change was accepted but not observed
// before the timeout or cancellation.
var errNotConfirmed = errors.New("change not confirmed")

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Ctrl+C cancels any wait in progress; the change is then reported
	// as not confirmed.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return exitCode(execute(ctx, args, os.Stdout))
}

func execute(ctx context.Context, args []string, out io.Writer) error {
	cmd := newRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(out)
	return cmd.ExecuteContext(ctx)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitConfirmed
	case errors.Is(err, errNotConfirmed):
		return exitNotConfirmed
	default:
		fmt.Fprint(os.Stderr, pterm.Error.Sprintln(err.Error()))
		return exitError
	}
}
