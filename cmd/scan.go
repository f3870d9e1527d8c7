package main

import (
	"fmt"

	"filerelay/internal/app"
	"filerelay/internal/config"
	"filerelay/internal/logger"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List the files a restart would relay, without relaying them",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile, cmd.Flags())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		log, err := logger.New(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer log.Sync()

		relay, err := app.New(cfg, log)
		if err != nil {
			return fmt.Errorf("failed to create relay: %w", err)
		}
		defer relay.Close()

		planned, err := relay.Plan(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		var total int64
		for _, p := range planned {
			fmt.Fprintf(out, "%s -> %s (%s)\n", p.Path, p.Destination, humanize.Bytes(uint64(p.Size)))
			total += p.Size
		}
		fmt.Fprintf(out, "%d files, %s\n", len(planned), humanize.Bytes(uint64(total)))
		return nil
	},
}
