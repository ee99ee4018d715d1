package main

import (
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/btpick/discovery"
	"github.com/srg/btpick/internal/device"
	"github.com/srg/btpick/internal/radiofactory"
	"github.com/srg/btpick/pkg/config"
	"github.com/srg/btpick/pkg/connection"
)

// app wires the radio, discovery service and connection manager for one command run
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	radio   device.Radio
	scanner *discovery.Service
	conn    *connection.Manager
}

// newApp loads the config file, applies command-line overrides and builds the radio.
func newApp(cmd *cobra.Command) (*app, error) {
	logger, err := configureLogger(cmd, "verbose")
	if err != nil {
		return nil, err
	}

	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configPath, func(c *config.Config) { applyFlagOverrides(cmd, c) })
	if err != nil {
		return nil, err
	}
	if configPath != "" && !loggerRequested(cmd, "verbose") {
		logger = cfg.NewLogger()
		logger.SetOutput(cmd.ErrOrStderr())
	}

	radio, err := radiofactory.RadioFactory(cfg, logger)
	if err != nil {
		return nil, err
	}

	scanner := discovery.NewService(radio, cfg.ScanOptions(), logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		radio:   radio,
		scanner: scanner,
		conn:    connection.NewManager(radio, scanner.Catalog(), cfg.ConnectOptions(), logger),
	}, nil
}

// Close releases the radio
func (a *app) Close() {
	if err := a.radio.Close(); err != nil {
		a.logger.WithError(err).Warn("Failed to close radio")
	}
}

// applyFlagOverrides copies explicitly set flags over config file values
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()

	stringFlags := map[string]*string{
		"radio":        &cfg.Radio,
		"sim-file":     &cfg.SimFile,
		"adapter":      &cfg.Adapter,
		"unknown-name": &cfg.UnknownName,
		"format":       &cfg.OutputFormat,
	}
	for name, dst := range stringFlags {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}

	durations := map[string]*time.Duration{
		"duration":        &cfg.ScanDuration,
		"connect-timeout": &cfg.ConnectTimeout,
	}
	for name, dst := range durations {
		if flags.Lookup(name) != nil && flags.Changed(name) {
			*dst, _ = flags.GetDuration(name)
		}
	}

	if flags.Lookup("auto-ack") != nil && flags.Changed("auto-ack") {
		cfg.AutoAcknowledge, _ = flags.GetBool("auto-ack")
	}
}
