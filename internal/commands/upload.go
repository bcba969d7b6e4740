package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ultronhq/ultron/internal/history"
	"github.com/ultronhq/ultron/internal/models"
)

func newUploadCmd(deps *Dependencies) *cobra.Command {
	return &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a file and print its attachment marker",
		Long: `Upload a file to the backend and print the marker to paste into a
message, e.g. "[Attached: agenda.pdf]". Inside the chat, /attach <path>
does the same and appends the marker to the draft.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := deps.open(true)
			if err != nil {
				return err
			}
			defer b.Close()

			up, err := b.client.UploadFile(cmd.Context(), args[0])
			if err != nil {
				fmt.Fprintln(deps.Stderr, formatErrorMessage(err, "Upload failed"))
				return reported(err)
			}

			link := history.Transcript{BaseURL: b.client.BaseURL()}.AttachmentLink(models.Message{AttachmentURL: up.URL})
			fmt.Fprintln(deps.Stdout, strings.TrimSpace(up.Marker()))
			fmt.Fprintln(deps.Stderr, dimStyle.Render("URL: "+link))
			return nil
		},
	}
}
