package main

import (
	"fmt"

	"github.com/joshuachristie/biofunc-models/internal/mcp"
	"github.com/joshuachristie/biofunc-models/internal/metrics"
	"github.com/spf13/cobra"
)

func newMCPServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp-server",
		Short: "Serve wfsim tools over the Model Context Protocol",
		Long: `Run an MCP server on stdin/stdout.

Tools:
  wfsim_estimate   run a small simulation and optionally record it
  wfsim_runs       list recorded runs or show one with its curve
  wfsim_diffusion  Kimura's fixation probability

Logs go to stderr; stdout carries the protocol.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			dataDir, err := settings.DataDir()
			if err != nil {
				return err
			}
			logger := newLogger(settings, cmd.ErrOrStderr())

			ctx, cancel := signalContext(cmd.Context())
			defer cancel()

			var m *metrics.Metrics
			if metricsAddr != "" {
				m = metrics.New(true)
				go func() {
					if err := m.Serve(ctx, metricsAddr); err != nil {
						logger.Error("metrics server stopped", "error", err)
					}
				}()
				logger.Info("serving metrics", "addr", metricsAddr)
			}

			server, err := mcp.NewServer(&mcp.Config{
				Name:     "wfsim",
				Version:  version,
				DataDir:  dataDir,
				Settings: settings,
				Logger:   logger,
				Metrics:  m,
			})
			if err != nil {
				return fmt.Errorf("failed to start MCP server: %w", err)
			}
			return server.Run(ctx)
		},
	}

	cmd.Flags().String("metrics-addr", "", "Serve Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	return cmd
}
