package commands

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/Sumatoshi-tech/globalesm/internal/cache"
	"github.com/Sumatoshi-tech/globalesm/internal/observability"
	"github.com/Sumatoshi-tech/globalesm/pkg/compiler"
	"github.com/Sumatoshi-tech/globalesm/pkg/config"
	"github.com/Sumatoshi-tech/globalesm/pkg/version"
)

// app bundles what every command needs: configuration, telemetry, and a
// compiler wired to both.
type app struct {
	cfg       *config.Config
	providers observability.Providers
	comp      *compiler.Compiler
	store     *cache.Store
}

type appOptions struct {
	mode observability.AppMode
	// logOutput defaults to stderr.
	logOutput io.Writer
	// debug forces debug logging regardless of config.
	debug bool
}

func newApp(globals *Globals, opts appOptions) (*app, error) {
	cfg, err := config.Load(globals.ConfigPath)
	if err != nil {
		return nil, err
	}

	obsCfg, err := observabilityConfig(cfg, globals, opts)
	if err != nil {
		return nil, err
	}

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, err
	}

	metrics, err := observability.NewCompileMetrics(providers.Meter)
	if err != nil {
		shutdownTelemetry(providers)

		return nil, err
	}

	compOpts := []compiler.Option{
		compiler.WithMetrics(metrics),
		compiler.WithTracer(providers.Tracer),
		compiler.WithLogger(providers.Logger),
	}

	var store *cache.Store

	if cfg.Cache.Enabled {
		maxBytes, sizeErr := cfg.CacheMaxBytes()
		if sizeErr != nil {
			shutdownTelemetry(providers)

			return nil, sizeErr
		}

		store, err = cache.New(cache.Config{
			MaxEntries: cfg.Cache.MaxEntries,
			MaxBytes:   maxBytes,
			Dir:        cfg.Cache.Dir,
		})
		if err != nil {
			shutdownTelemetry(providers)

			return nil, err
		}

		compOpts = append(compOpts, compiler.WithCache(store))
	}

	return &app{
		cfg:       cfg,
		providers: providers,
		comp:      compiler.New(compOpts...),
		store:     store,
	}, nil
}

func observabilityConfig(cfg *config.Config, globals *Globals, opts appOptions) (observability.Config, error) {
	level, err := cfg.LogLevel()
	if err != nil {
		return observability.Config{}, err
	}

	switch {
	case globals.Verbose || opts.debug:
		level = slog.LevelDebug
	case globals.Quiet:
		level = slog.LevelError
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.ServiceVersion = version.Version
	obsCfg.Mode = opts.mode
	obsCfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(cfg.Telemetry.OTLPHeaders)
	obsCfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	obsCfg.SampleRatio = cfg.Telemetry.SampleRatio
	obsCfg.LogLevel = level
	obsCfg.LogJSON = cfg.Log.JSON || opts.mode == observability.ModeMCP
	obsCfg.LogOutput = opts.logOutput

	if obsCfg.OTLPEndpoint == "" {
		obsCfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
		obsCfg.OTLPInsecure = obsCfg.OTLPInsecure || os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"
	}

	// One-shot runs exit before anyone could scrape.
	obsCfg.Prometheus = cfg.Telemetry.MetricsAddr != "" && opts.mode != observability.ModeCLI

	return obsCfg, nil
}

// close flushes telemetry.
func (a *app) close() {
	shutdownTelemetry(a.providers)
}

// metricsHandler is the traced /metrics handler.
func (a *app) metricsHandler() http.Handler {
	return observability.HTTPMiddleware(a.providers.Tracer, a.providers.MetricsHandler)
}

func (a *app) logger() *slog.Logger {
	return a.providers.Logger
}

func shutdownTelemetry(providers observability.Providers) {
	err := providers.Shutdown(context.Background())
	if err != nil && providers.Logger != nil {
		providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}
