package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/muesli/reflow/truncate"
	"github.com/spf13/cobra"

	"github.com/ultronhq/ultron/internal/history"
	"github.com/ultronhq/ultron/internal/models"
)

// maxShownContent caps message bodies printed by "sessions show"
const maxShownContent = 500

func newSessionsCmd(deps *Dependencies) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sessions",
		Aliases: []string{"history"},
		Short:   "List, show and export stored sessions",
		Long: `Inspect the sessions stored by the backend.

` + history.ListAliases(),
	}
	cmd.AddCommand(
		newSessionsListCmd(deps),
		newSessionsShowCmd(deps),
		newSessionsExportCmd(deps),
		newSessionsClearCmd(deps),
	)
	return cmd
}

func newSessionsListCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored sessions, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := deps.open(true)
			if err != nil {
				return err
			}
			defer b.Close()

			sessions, err := b.client.ListSessions(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list sessions: %w", err)
			}

			if len(sessions) == 0 {
				fmt.Fprintln(deps.Stdout, "No sessions found.")
				return nil
			}

			w := tabwriter.NewWriter(deps.Stdout, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "#\tID\tTITLE\tUPDATED")
			_, _ = fmt.Fprintln(w, "-\t--\t-----\t-------")

			for i, s := range sessions {
				_, _ = fmt.Fprintf(w, "%d\t%d\t%s\t%s\n",
					i+1, s.ID, truncate.StringWithTail(sessionTitle(s), 40, "..."), history.FormatRelativeTime(s.UpdatedAt))
			}

			return w.Flush()
		},
	}
}

func newSessionsShowCmd(deps *Dependencies) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "show <ref>",
		Short: "Show a session's messages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := deps.open(true)
			if err != nil {
				return err
			}
			defer b.Close()

			ctx := cmd.Context()
			s, err := history.NewResolver(b.client).Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			msgs, err := b.client.ListMessages(ctx, s.ID)
			if err != nil {
				return fmt.Errorf("failed to load session %d: %w", s.ID, err)
			}

			out := deps.Stdout
			fmt.Fprintf(out, "ID: %d\n", s.ID)
			fmt.Fprintf(out, "Title: %s\n", sessionTitle(s))
			if !s.UpdatedAt.IsZero() {
				fmt.Fprintf(out, "Updated: %s\n", s.UpdatedAt.Format("2006-01-02 15:04:05"))
			}
			fmt.Fprintf(out, "Messages: %d\n\n", len(msgs))

			t := history.Transcript{Messages: msgs, BaseURL: b.client.BaseURL()}
			for i, msg := range msgs {
				role := "You"
				if !msg.IsUser() {
					role = "Ultron"
				}
				fmt.Fprintf(out, "[%d] %s (%s):\n", i+1, role, msg.Timestamp)

				content := msg.Content
				if !full {
					content = truncate.StringWithTail(content, maxShownContent, "...")
				}
				fmt.Fprintf(out, "  %s\n", content)
				if msg.AttachmentURL != "" {
					fmt.Fprintf(out, "  📎 %s\n", t.AttachmentLink(msg))
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "Print message bodies without truncation")
	return cmd
}

func newSessionsExportCmd(deps *Dependencies) *cobra.Command {
	var (
		format string
		output string
	)
	cmd := &cobra.Command{
		Use:   "export <ref>",
		Short: "Export a session as markdown or JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exportFormat, err := history.ParseExportFormat(format)
			if err != nil {
				return err
			}

			b, err := deps.open(true)
			if err != nil {
				return err
			}
			defer b.Close()

			ctx := cmd.Context()
			s, err := history.NewResolver(b.client).Resolve(ctx, args[0])
			if err != nil {
				return err
			}
			msgs, err := b.client.ListMessages(ctx, s.ID)
			if err != nil {
				return fmt.Errorf("failed to load session %d: %w", s.ID, err)
			}

			t := history.Transcript{Session: &s, Messages: msgs, BaseURL: b.client.BaseURL()}
			if output == "" {
				data, err := history.Export(t, exportFormat)
				if err != nil {
					return err
				}
				_, err = deps.Stdout.Write(data)
				return err
			}

			used, err := history.WriteFile(output, t, exportFormat)
			if err != nil {
				return err
			}
			fmt.Fprintln(deps.Stderr, successStyle.Render(fmt.Sprintf("✓ Exported session #%d to %s (%s)", s.ID, output, used)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "Export format: markdown or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to file; the extension overrides --format")
	return cmd
}

func newSessionsClearCmd(deps *Dependencies) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("this deletes all sessions on the backend; pass --yes to confirm")
			}

			b, err := deps.open(true)
			if err != nil {
				return err
			}
			defer b.Close()

			n, err := b.client.ClearAllHistory(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to clear sessions: %w", err)
			}
			fmt.Fprintf(deps.Stdout, "Deleted %d sessions.\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Confirm deletion")
	return cmd
}

func sessionTitle(s models.Session) string {
	if s.Title == "" {
		return fmt.Sprintf("Session %d", s.ID)
	}
	return s.Title
}
