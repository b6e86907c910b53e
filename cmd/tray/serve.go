package main

import (
	"context"
	"errors"

	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"

	"github.com/smarteating/tray/internal/app"
	"github.com/smarteating/tray/internal/server"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var listen string
	var noCamera bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run headless and stream the plate view to browser displays",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := flags.options()
			opts.LogToStderr = true
			opts.OpenCamera = !noCamera

			kiosk, err := app.Open(opts)
			if err != nil {
				return err
			}
			defer kiosk.Close()

			addr := kiosk.Config.ServerListen
			if listen != "" {
				addr = listen
			}
			srv := server.New(kiosk.Controller, kiosk.Poller, kiosk.Images, kiosk.Logger)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			var wg conc.WaitGroup
			var kioskErr, serveErr error
			wg.Go(func() {
				kioskErr = kiosk.Run(ctx)
			})
			wg.Go(func() {
				// A listen failure stops the kiosk too.
				defer cancel()
				serveErr = srv.Run(ctx, addr)
			})
			wg.Wait()

			return errors.Join(serveErr, kioskErr)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (defaults to server.listen from config)")
	cmd.Flags().BoolVar(&noCamera, "no-camera", false, "leave the QR camera closed until a display asks for it")
	return cmd
}
