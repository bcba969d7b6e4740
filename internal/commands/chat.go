package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ultronhq/ultron/internal/chat"
	"github.com/ultronhq/ultron/internal/history"
	"github.com/ultronhq/ultron/internal/tui"
)

func newChatCmd(deps *Dependencies) *cobra.Command {
	var sessionRef string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start the interactive chat",
		Long: `Start the interactive chat with Ultron.

Stored sessions are listed in the sidebar (ctrl+b toggles it, tab focuses
it). Replies stream in as they are generated; esc aborts a reply.
Type /help inside the chat for commands.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd.Context(), deps, sessionRef)
		},
	}
	cmd.Flags().StringVarP(&sessionRef, "session", "s", "", "Open a stored session: @last, index, #id or title")
	return cmd
}

func runChat(ctx context.Context, deps *Dependencies, sessionRef string) error {
	b, err := deps.open(false)
	if err != nil {
		return err
	}
	defer b.Close()

	ctrl := chat.NewController(b.client, chat.WithLogger(b.logger))

	if sessionRef != "" {
		s, err := history.NewResolver(b.client).Resolve(ctx, sessionRef)
		if err != nil {
			ctrl.Close()
			return fmt.Errorf("failed to resolve session: %w", err)
		}
		if err := ctrl.Select(ctx, &s.ID); err != nil {
			ctrl.Close()
			return err
		}
	}

	b.logger.Info().
		Str("base_url", b.client.BaseURL()).
		Str("theme", b.cfg.TUITheme).
		Msg("chat started")

	return deps.TUI.RunChat(ctx, ctrl, tui.Options{
		Config:  b.cfg,
		BaseURL: b.client.BaseURL(),
	})
}
