package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/ultronhq/ultron/internal/devserver"
	"github.com/ultronhq/ultron/internal/logging"
)

func newDevServerCmd(deps *Dependencies) *cobra.Command {
	var (
		addr      string
		delay     time.Duration
		words     int
		uploadDir string
	)
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run a local stand-in for the assistant backend",
		Long: `Run an in-memory backend that serves the chat API and streams canned
scheduling replies in fragments. Point the client at it with
--base-url http://` + "127.0.0.1:8000" + ` (the default).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := "info"
			if deps.Debug {
				level = "debug"
			}
			logger, logs, err := logging.New(logging.Options{Level: level, Console: true})
			if err != nil {
				return err
			}
			defer logs.Close()

			srv, err := devserver.New(devserver.Options{
				Logger:           logger,
				FragmentDelay:    delay,
				WordsPerFragment: words,
				UploadDir:        uploadDir,
			})
			if err != nil {
				return err
			}
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8000", "Listen address")
	cmd.Flags().DurationVar(&delay, "delay", 60*time.Millisecond, "Pause between streamed fragments")
	cmd.Flags().IntVar(&words, "words", 2, "Words per streamed fragment")
	cmd.Flags().StringVar(&uploadDir, "upload-dir", "", "Directory for uploaded files (default: a temp directory)")
	return cmd
}
