package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/rfp-inbound/internal/app"
	"github.com/nhle/rfp-inbound/internal/server"
)

func newServeCmd() *cobra.Command {
	var (
		port      int
		perMinute int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP sync trigger",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(app.Options{})
			if err != nil {
				return err
			}
			defer a.Close()

			if port == 0 {
				port = a.Config.Server.Port
			}

			srv := server.New(a.Syncer, a.Store, server.Options{
				SyncPerMinute: perMinute,
				AccessLog:     os.Stderr,
				Logger:        a.Logger("http"),
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Listen(fmt.Sprintf(":%d", port)) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "listen port (default from config or PORT)")
	cmd.Flags().IntVar(&perMinute, "sync-per-minute", 6, "maximum sync triggers per minute, 0 for unlimited")
	return cmd
}
