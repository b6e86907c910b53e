package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smarteating/tray/internal/config"
	"github.com/smarteating/tray/internal/imagecache"
	"github.com/smarteating/tray/internal/logging"
)

func newCacheCmd(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or prune the food photo cache",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Show where the cache lives and how many photos it holds",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, store, err := openCache(flags)
				if err != nil {
					return err
				}
				defer store.Close()
				n, err := store.Count(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n%d photos, ttl %s\n", cfg.CachePath, n, cfg.CacheTTL)
				return nil
			},
		},
		&cobra.Command{
			Use:   "prune",
			Short: "Delete photos older than the cache ttl",
			RunE: func(cmd *cobra.Command, args []string) error {
				cfg, store, err := openCache(flags)
				if err != nil {
					return err
				}
				defer store.Close()
				sink, err := logging.Open("", cfg.LogLevel)
				if err != nil {
					return err
				}
				loader := imagecache.NewLoader(store, nil, cfg.CacheTTL, sink.Logger)
				pruned, err := loader.Prune(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "pruned %d photos\n", pruned)
				return nil
			},
		},
	)
	return cmd
}

func openCache(flags *globalFlags) (config.Config, *imagecache.Store, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load tray config: %w", err)
	}
	store, err := imagecache.Open(cfg.CachePath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("open image cache: %w", err)
	}
	return cfg, store, nil
}
