package commands

import (
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/globalesm/internal/mcp"
	"github.com/Sumatoshi-tech/globalesm/internal/observability"
)

func newMCPCommand(globals *Globals) *cobra.Command {
	var debug bool

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for AI agent integration",
		Long: `Start a Model Context Protocol (MCP) server on stdio transport.

The MCP server exposes the lowering pipeline as tools that AI agents can
discover and invoke:
  - esm_transform: Lower or canonicalize the module declarations of inline code
  - esm_inspect: List the import and export bindings of inline code

Configured registry, import paths and cache apply to every call. Logs are
written to stderr as JSON.`,
		RunE: func(cobraCmd *cobra.Command, _ []string) error {
			application, err := newApp(globals, appOptions{
				mode:      observability.ModeMCP,
				logOutput: cobraCmd.ErrOrStderr(),
				debug:     debug,
			})
			if err != nil {
				return err
			}
			defer application.close()

			cfg := application.cfg
			logger := application.logger()

			if cfg.Telemetry.MetricsAddr != "" {
				srv := observability.ServeMetrics(cfg.Telemetry.MetricsAddr, application.metricsHandler(), func(serveErr error) {
					logger.Error("metrics server failed", "addr", cfg.Telemetry.MetricsAddr, "error", serveErr)
				})
				defer srv.Close()
			}

			srv := mcp.NewServer(mcp.ServerDeps{
				Logger:   logger,
				Compiler: application.comp,
				Defaults: cfg.Options,
				Tracer:   application.providers.Tracer,
			})

			return srv.Run(cobraCmd.Context())
		},
	}

	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging to stderr")

	return cmd
}
