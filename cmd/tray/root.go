package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/smarteating/tray/internal/app"
	"github.com/smarteating/tray/internal/prefs"
	"github.com/smarteating/tray/internal/ui"
)

type globalFlags struct {
	configPath string
	pollMS     int
}

func (g *globalFlags) options() app.Options {
	opts := app.Options{ConfigPath: g.configPath}
	if g.pollMS > 0 {
		opts.PollInterval = time.Duration(g.pollMS) * time.Millisecond
	}
	return opts
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:           "tray",
		Short:         "Plate scanning kiosk for the Smart Eating cafeteria",
		Long:          "tray reads plate QR codes and NFC tags, starts the meal on the cafeteria backend and shows the live plate while it is weighed.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKiosk(cmd.Context(), flags.options())
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "override tray config path (optional)")
	root.PersistentFlags().IntVar(&flags.pollMS, "poll", 0, "meal poll interval in milliseconds (optional, defaults to 3000)")

	root.AddCommand(
		newServeCmd(flags),
		newMenuCmd(flags),
		newFoodsCmd(flags),
		newHistoryCmd(flags),
		newCacheCmd(flags),
	)
	return root
}

// runKiosk drives the terminal screen. Scanning and polling run in the
// background until the operator quits.
func runKiosk(ctx context.Context, opts app.Options) error {
	kiosk, err := app.Open(opts)
	if err != nil {
		return err
	}
	defer kiosk.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- kiosk.Run(ctx)
	}()

	uiOpts := ui.Options{
		Context:    ctx,
		Controller: kiosk.Controller,
		Visibility: kiosk.Poller,
		LogPath:    kiosk.LogPath(),
		Prefs:      prefs.Load(prefs.DefaultPath()),
		PrefsPath:  prefs.DefaultPath(),
	}
	if kiosk.Config.QR.Device != "" {
		uiOpts.Camera = kiosk.Plate.QR()
	}

	uiErr := ui.Run(uiOpts)
	cancel()
	runErr := <-done
	if uiErr != nil {
		return fmt.Errorf("tray ui: %w", uiErr)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
