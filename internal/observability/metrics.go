package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricModulesTotal   = "globalesm.modules.total"
	metricModuleDuration = "globalesm.module.duration.seconds"
	metricErrorsTotal    = "globalesm.errors.total"
	metricCacheLookups   = "globalesm.cache.lookups.total"
	metricBindingsTotal  = "globalesm.bindings.total"

	attrStatus    = "status"
	attrKind      = "kind"
	attrResult    = "result"
	attrDirection = "direction"

	// StatusOK marks a module that compiled.
	StatusOK = "ok"
	// StatusError marks a module that failed to compile.
	StatusError = "error"

	resultHit  = "hit"
	resultMiss = "miss"
)

// durationBucketBoundaries covers 100µs to 5s; a single module lowering is
// usually sub-millisecond, while cold parser pools and huge bundles are slower.
var durationBucketBoundaries = []float64{0.0001, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5}

// CompileMetrics holds the OTel instruments recorded per compiled module.
// A nil *CompileMetrics records nothing.
type CompileMetrics struct {
	modulesTotal   metric.Int64Counter
	moduleDuration metric.Float64Histogram
	errorsTotal    metric.Int64Counter
	cacheLookups   metric.Int64Counter
	bindingsTotal  metric.Int64Counter
}

// NewCompileMetrics creates the compile instruments from the given meter.
func NewCompileMetrics(mt metric.Meter) (*CompileMetrics, error) {
	modules, err := mt.Int64Counter(metricModulesTotal,
		metric.WithDescription("Total number of compiled modules"),
		metric.WithUnit("{module}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricModulesTotal, err)
	}

	duration, err := mt.Float64Histogram(metricModuleDuration,
		metric.WithDescription("Module compile duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBucketBoundaries...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricModuleDuration, err)
	}

	errorsTotal, err := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Total number of compile errors by kind"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	lookups, err := mt.Int64Counter(metricCacheLookups,
		metric.WithDescription("Transform cache lookups by result"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricCacheLookups, err)
	}

	bindings, err := mt.Int64Counter(metricBindingsTotal,
		metric.WithDescription("Collected import and export bindings"),
		metric.WithUnit("{binding}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBindingsTotal, err)
	}

	return &CompileMetrics{
		modulesTotal:   modules,
		moduleDuration: duration,
		errorsTotal:    errorsTotal,
		cacheLookups:   lookups,
		bindingsTotal:  bindings,
	}, nil
}

// RecordModule records one compiled module with its status and duration.
func (cm *CompileMetrics) RecordModule(ctx context.Context, status string, duration time.Duration) {
	if cm == nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String(attrStatus, status))

	cm.modulesTotal.Add(ctx, 1, attrs)
	cm.moduleDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordError counts a failure of the given kind (syntax, unsupported, ...).
func (cm *CompileMetrics) RecordError(ctx context.Context, kind string) {
	if cm == nil {
		return
	}

	cm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrKind, kind)))
}

// RecordCacheLookup counts a cache hit or miss.
func (cm *CompileMetrics) RecordCacheLookup(ctx context.Context, hit bool) {
	if cm == nil {
		return
	}

	result := resultMiss
	if hit {
		result = resultHit
	}

	cm.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordBindings counts the import and export bindings of one module.
func (cm *CompileMetrics) RecordBindings(ctx context.Context, imports, exports int) {
	if cm == nil {
		return
	}

	cm.bindingsTotal.Add(ctx, int64(imports), metric.WithAttributes(attribute.String(attrDirection, "import")))
	cm.bindingsTotal.Add(ctx, int64(exports), metric.WithAttributes(attribute.String(attrDirection, "export")))
}
