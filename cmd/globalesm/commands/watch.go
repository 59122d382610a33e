package commands

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/globalesm/internal/build"
	"github.com/Sumatoshi-tech/globalesm/internal/observability"
)

// ErrNoOutDir is returned when watch has nowhere to write.
var ErrNoOutDir = errors.New("watch needs an output directory (--out or build.out_dir)")

func newWatchCommand(globals *Globals) *cobra.Command {
	var (
		out      string
		debounce time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Rebuild a directory incrementally as it changes",
		Long: `Build every module under <dir> into --out, then rebuild each module when it
changes and remove its output when it is deleted. Failures are logged and do
not stop the watcher.

When telemetry.metrics_addr is configured, Prometheus metrics are served on
/metrics at that address.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(cmd, globals, args[0], out, debounce)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory (default: build.out_dir)")
	cmd.Flags().DurationVar(&debounce, "debounce", build.DefaultDebounce, "quiet period before a changed file is rebuilt")

	return cmd
}

func runWatch(cmd *cobra.Command, globals *Globals, root, out string, debounce time.Duration) error {
	application, err := newApp(globals, appOptions{mode: observability.ModeWatch, logOutput: cmd.ErrOrStderr()})
	if err != nil {
		return err
	}
	defer application.close()

	cfg := application.cfg
	if out != "" {
		cfg.Build.OutDir = out
	}

	if cfg.Build.OutDir == "" {
		return ErrNoOutDir
	}

	logger := application.logger()

	if cfg.Telemetry.MetricsAddr != "" {
		srv := observability.ServeMetrics(cfg.Telemetry.MetricsAddr, application.metricsHandler(), func(serveErr error) {
			logger.Error("metrics server failed", "addr", cfg.Telemetry.MetricsAddr, "error", serveErr)
		})
		defer srv.Close()

		logger.Info("serving metrics", "addr", cfg.Telemetry.MetricsAddr)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	builder := build.New(application.comp, build.Config{
		Workers:   cfg.Build.Workers,
		KeepGoing: true,
		Options:   cfg.Options,
		Logger:    logger,
	})

	watcher := build.NewWatcher(builder, build.WatchConfig{
		Root:     root,
		OutDir:   cfg.Build.OutDir,
		Prefix:   cfg.ModulePrefix,
		Debounce: debounce,
		Logger:   logger,
	})

	logger.Info("watching", "root", root, "out", cfg.Build.OutDir)

	return watcher.Run(ctx)
}
