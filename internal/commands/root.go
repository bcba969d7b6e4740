// Package commands provides CLI commands for ultron.
package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var (
	// Version info (set at build time)
	Version   = "0.1.0"
	BuildTime = "unknown"
)

// NewRootCmd builds the command tree around deps
func NewRootCmd(deps *Dependencies) *cobra.Command {
	var opts askOptions

	cmd := &cobra.Command{
		Use:   "ultron [prompt]",
		Short: "Terminal client for the Ultron scheduling assistant",
		Long: `ultron is a terminal client for Ultron, an AI assistant that plans
schedules, workouts and study sessions. Replies stream in as they are
written, and every conversation is stored by the backend as a session.

Examples:
  ultron chat                           Start interactive chat
  ultron chat -s @last                  Resume the newest session
  ultron "Plan my week"                 Send a single message
  ultron -f goals.md                    Read the message from a file
  cat notes.txt | ultron                Read the message from stdin
  ultron "Plan my week" -o plan.md      Save the reply to a file
  ultron sessions list                  List stored sessions
  ultron devserver                      Run a local backend`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if v, _ := cmd.Flags().GetBool("version"); v {
				printVersion(deps)
				return nil
			}

			prompt, ok, err := readPrompt(deps, args, opts.file)
			if err != nil {
				return err
			}
			if !ok {
				return cmd.Help()
			}
			return runAsk(cmd.Context(), deps, prompt, opts)
		},
	}
	cmd.SetIn(deps.Stdin)
	cmd.SetOut(deps.Stdout)
	cmd.SetErr(deps.Stderr)

	cmd.PersistentFlags().BoolVar(&deps.Debug, "debug", false, "Log debug output to stderr")
	cmd.PersistentFlags().StringVar(&deps.BaseURL, "base-url", "", "Backend address (overrides config)")
	bindAskFlags(cmd, &opts)
	cmd.Flags().BoolP("version", "v", false, "Show version and exit")

	cmd.AddCommand(
		newChatCmd(deps),
		newAskCmd(deps),
		newSessionsCmd(deps),
		newUploadCmd(deps),
		NewConfigCmd(deps),
		newDevServerCmd(deps),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Args:  cobra.NoArgs,
			Run: func(cmd *cobra.Command, args []string) {
				printVersion(deps)
			},
		},
	)
	return cmd
}

func printVersion(deps *Dependencies) {
	fmt.Fprintf(deps.Stdout, "ultron %s (built %s)\n", Version, BuildTime)
}

// reportedError marks an error the command already showed to the user
type reportedError struct{ err error }

func (e reportedError) Error() string { return e.err.Error() }
func (e reportedError) Unwrap() error { return e.err }

func reported(err error) error {
	if err == nil {
		return nil
	}
	return reportedError{err: err}
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	deps := NewDependencies()
	err := NewRootCmd(deps).ExecuteContext(ctx)
	if err == nil {
		return
	}

	var shown reportedError
	if !errors.As(err, &shown) && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(deps.Stderr, formatErrorMessage(err, "Error"))
	}
	stop()
	os.Exit(1)
}
