package main

import (
	"streammux/internal/config"

	"github.com/spf13/cobra"
)

// loadConfig resolves the config file and applies the flags which were set explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Resolve(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Output = output
	}
	if flags.Changed("tty") {
		cfg.TTY = tty
	}
	if flags.Changed("stats-interval") {
		cfg.StatsInterval = statsInterval
	}
	if flags.Changed("buffer-size") {
		cfg.BufferSize = bufferSize
	}
	if flags.Changed("listen") {
		cfg.Listen = listen
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
