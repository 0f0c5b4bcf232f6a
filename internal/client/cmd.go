package client

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// Options are the mudclient flags.
type Options struct {
	Addr    string
	Path    string
	NoColor bool
}

// DefaultOptions targets a local server's WebSocket frontend.
func DefaultOptions() Options {
	return Options{Addr: "localhost:8000", Path: "/ws/client/"}
}

// NewRootCmd creates the mudclient command.
func NewRootCmd() *cobra.Command {
	opts := DefaultOptions()
	cmd := &cobra.Command{
		Use:   "mudclient",
		Short: "Play k6mud from a terminal over WebSocket",
		Long: `mudclient connects to a k6mud server's WebSocket frontend, sends each
line typed on stdin as a command and prints every server message.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, err := Dial(ctx, opts.Addr, opts.Path)
			if err != nil {
				return err
			}
			return c.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), !opts.NoColor)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", opts.Addr, "server host:port")
	cmd.Flags().StringVar(&opts.Path, "path", opts.Path, "WebSocket path")
	cmd.Flags().BoolVar(&opts.NoColor, "no-color", opts.NoColor, "disable ANSI styling")
	return cmd
}
