package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/ultronhq/ultron/internal/api"
	"github.com/ultronhq/ultron/internal/history"
	"github.com/ultronhq/ultron/internal/render"
)

// askOptions are shared by the root command and "ask"
type askOptions struct {
	session  string
	file     string
	output   string
	noStream bool
	raw      bool
}

func bindAskFlags(cmd *cobra.Command, opts *askOptions) {
	cmd.Flags().StringVarP(&opts.session, "session", "s", "", "Continue a stored session: @last, index, #id or title")
	cmd.Flags().StringVarP(&opts.file, "file", "f", "", "Read prompt from file")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Save response to file")
	cmd.Flags().BoolVar(&opts.noStream, "no-stream", false, "Wait for the whole reply instead of streaming it")
	cmd.Flags().BoolVar(&opts.raw, "raw", false, "Print the reply text only, without markdown rendering")
}

func newAskCmd(deps *Dependencies) *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask [prompt]",
		Short: "Send one message and print the reply",
		Long: `Send a single message to Ultron and print the reply.

Without --session a new session is created by the backend. The prompt may
come from an argument, a file (-f) or stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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
	bindAskFlags(cmd, &opts)
	return cmd
}

// readPrompt takes the prompt from the file flag, the argument or stdin, in
// that order. ok is false when there is no input at all.
func readPrompt(deps *Dependencies, args []string, file string) (string, bool, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return "", false, fmt.Errorf("failed to read file: %w", err)
		}
		return string(data), true, nil
	}
	if len(args) > 0 {
		return args[0], true, nil
	}
	if deps.stdinIsPiped() {
		data, err := io.ReadAll(deps.Stdin)
		if err != nil {
			return "", false, fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), true, nil
	}
	return "", false, nil
}

// runAsk sends prompt and writes the reply. On a terminal the reply is
// collected behind a spinner and rendered as markdown; otherwise fragments
// are written to stdout as they arrive.
func runAsk(ctx context.Context, deps *Dependencies, prompt string, opts askOptions) error {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return fmt.Errorf("prompt cannot be empty")
	}

	b, err := deps.open(true)
	if err != nil {
		return err
	}
	defer b.Close()

	var sessionID *int
	if opts.session != "" {
		s, err := history.NewResolver(b.client).Resolve(ctx, opts.session)
		if err != nil {
			return fmt.Errorf("failed to resolve session: %w", err)
		}
		sessionID = &s.ID
		b.logger.Debug().Int("session_id", s.ID).Str("title", s.Title).Msg("continuing session")
	}

	decorated := !opts.raw && opts.output == "" && deps.stdoutIsTerminal()

	var spin *spinner
	if decorated {
		spin = newSpinner(deps.Stderr, "Contacting Ultron")
		spin.start()
	}

	var (
		reply     string
		createdID int
	)
	if opts.noStream {
		res, sendErr := b.client.SendMessage(ctx, prompt, sessionID)
		if res != nil {
			reply, createdID = res.Response, res.SessionID
		}
		err = sendErr
	} else {
		var live io.Writer
		if !decorated && opts.output == "" {
			live = deps.Stdout
		}
		reply, err = streamReply(ctx, b.client, prompt, sessionID, live, spin)
	}

	if err != nil {
		if spin != nil {
			spin.stopWithError()
		}
		if !opts.raw {
			if reply != "" && decorated {
				fmt.Fprintln(deps.Stdout, reply)
			}
			fmt.Fprintln(deps.Stderr, formatErrorMessage(err, "Request failed"))
			return reported(err)
		}
		return err
	}
	if spin != nil {
		spin.stopWithSuccess("Done")
	}

	if err := writeReply(deps, b, reply, opts, decorated); err != nil {
		return err
	}

	if sessionID == nil && !opts.raw {
		reportNewSession(ctx, deps, b.client, createdID)
	}
	return nil
}

// streamReply reads the whole stream. Fragments are copied to live as they
// arrive when it is non-nil. The text received so far is returned with any
// error.
func streamReply(ctx context.Context, client api.ClientInterface, prompt string, sessionID *int, live io.Writer, spin *spinner) (string, error) {
	stream, err := client.OpenStream(ctx, prompt, sessionID)
	if err != nil {
		return "", err
	}
	defer func() {
		_ = stream.Close()
	}()

	var sb strings.Builder
	for {
		frag, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sb.String(), err
		}
		sb.WriteString(frag)
		if live != nil {
			if _, err := io.WriteString(live, frag); err != nil {
				return sb.String(), err
			}
		}
		if spin != nil {
			spin.setMessage(fmt.Sprintf("Receiving (%d chars)", sb.Len()))
		}
	}

	if live != nil && sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
		_, _ = io.WriteString(live, "\n")
	}
	return sb.String(), nil
}

func writeReply(deps *Dependencies, b *backend, reply string, opts askOptions, decorated bool) error {
	if opts.output != "" {
		if err := os.WriteFile(opts.output, []byte(reply), 0o644); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		if !opts.raw {
			fmt.Fprintln(deps.Stderr, successStyle.Render(fmt.Sprintf("✓ Response saved to %s", opts.output)))
		}
		return nil
	}

	if opts.noStream && !decorated {
		fmt.Fprintln(deps.Stdout, reply)
	}

	if decorated {
		bubbleWidth := min(max(getTerminalWidth()-4, 40), 120)
		contentWidth := bubbleWidth - 4

		rendered := render.MarkdownOrPlain(reply, render.LoadOptions(b.cfg, contentWidth))
		fmt.Fprintln(deps.Stdout, assistantLabelStyle.Render("◆ Ultron"))
		fmt.Fprintln(deps.Stdout, assistantBubbleStyle.Width(bubbleWidth).Render(rendered))
	}

	if b.cfg.CopyToClipboard && decorated {
		if err := clipboard.WriteAll(reply); err != nil {
			fmt.Fprintln(deps.Stderr, warnStyle.Render(fmt.Sprintf("⚠ Failed to copy to clipboard: %v", err)))
		} else {
			fmt.Fprintln(deps.Stderr, successStyle.Render("✓ Copied to clipboard"))
		}
	}
	return nil
}

// reportNewSession tells the user which session the backend created, so
// the conversation can be continued with --session.
func reportNewSession(ctx context.Context, deps *Dependencies, client api.ClientInterface, id int) {
	if id == 0 {
		sessions, err := client.ListSessions(ctx)
		if err != nil || len(sessions) == 0 {
			return
		}
		id = sessions[0].ID
	}
	fmt.Fprintln(deps.Stderr, dimStyle.Render(fmt.Sprintf("Session #%d · continue with --session '#%d'", id, id)))
}
