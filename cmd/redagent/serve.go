package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xhad/redagent/server"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	var stream bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the assistant over a websocket at /ws",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			if !cmd.Flags().Changed("stream") {
				stream = a.cfg.UI.Streaming
			}

			svc, err := a.openRAG(ctx, nil)
			if err != nil {
				return err
			}
			defer svc.Close()

			assistant, err := a.newAssistant(svc)
			if err != nil {
				return err
			}
			return server.NewWSServer(server.Config{Addr: addr, Streaming: stream}, assistant).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream responses (default from config)")
	return cmd
}
