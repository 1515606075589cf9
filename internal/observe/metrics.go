// Package observe provides the OpenTelemetry metric instruments recorded by
// the mutation engine and rule ingestion.
//
// Instruments are created from a [metric.MeterProvider]. [DefaultMetrics]
// uses the global provider, which is a no-op until [InitProvider] installs
// the Prometheus-backed SDK provider. Tests should use [NewMetrics] with an
// SDK provider and a ManualReader.
package observe

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope for all StashKeeper metrics.
const meterName = "github.com/solatis/stashkeeper"

// Metrics holds all metric instruments. Safe for concurrent use.
type Metrics struct {
	// ContainersHandled counts container events. Attribute: trigger.
	ContainersHandled metric.Int64Counter

	// RulesApplied counts rule applications. Attribute: kind.
	RulesApplied metric.Int64Counter

	// RulesRegistered counts rules accepted by the store. Attribute: kind.
	RulesRegistered metric.Int64Counter

	// ItemsAdded and ItemsRemoved count item quantities moved by rules.
	ItemsAdded   metric.Int64Counter
	ItemsRemoved metric.Int64Counter

	// ContainerDuration tracks the time spent on one container event.
	ContainerDuration metric.Float64Histogram
}

// durationBuckets are in seconds; a container pass is expected to take well
// under a millisecond.
var durationBuckets = []float64{
	0.00001, 0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05,
}

// NewMetrics creates all instruments from mp.
func NewMetrics(mp metric.MeterProvider) (*Metrics, error) {
	m := mp.Meter(meterName)
	var err error
	met := &Metrics{}

	if met.ContainersHandled, err = m.Int64Counter("stashkeeper.containers.handled",
		metric.WithDescription("Container events handled by trigger."),
	); err != nil {
		return nil, err
	}
	if met.RulesApplied, err = m.Int64Counter("stashkeeper.rules.applied",
		metric.WithDescription("Rule applications by rule kind."),
	); err != nil {
		return nil, err
	}
	if met.RulesRegistered, err = m.Int64Counter("stashkeeper.rules.registered",
		metric.WithDescription("Rules registered by rule kind."),
	); err != nil {
		return nil, err
	}
	if met.ItemsAdded, err = m.Int64Counter("stashkeeper.items.added",
		metric.WithDescription("Item quantity added to containers."),
	); err != nil {
		return nil, err
	}
	if met.ItemsRemoved, err = m.Int64Counter("stashkeeper.items.removed",
		metric.WithDescription("Item quantity removed from containers."),
	); err != nil {
		return nil, err
	}
	if met.ContainerDuration, err = m.Float64Histogram("stashkeeper.container.duration",
		metric.WithDescription("Time spent evaluating and mutating one container."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(durationBuckets...),
	); err != nil {
		return nil, err
	}

	return met, nil
}

var (
	defaultMetrics     *Metrics
	defaultMetricsOnce sync.Once
)

// DefaultMetrics returns the package-level instance built from the global
// meter provider. Panics if instrument creation fails.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		var err error
		defaultMetrics, err = NewMetrics(otel.GetMeterProvider())
		if err != nil {
			panic("observe: failed to create default metrics: " + err.Error())
		}
	})
	return defaultMetrics
}

// RecordContainerHandled counts one container event and its duration.
func (m *Metrics) RecordContainerHandled(ctx context.Context, trigger string, seconds float64) {
	attrs := metric.WithAttributes(attribute.String("trigger", trigger))
	m.ContainersHandled.Add(ctx, 1, attrs)
	m.ContainerDuration.Record(ctx, seconds, attrs)
}

// RecordRuleApplied counts one rule application and the quantities it moved.
func (m *Metrics) RecordRuleApplied(ctx context.Context, kind string, added, removed int) {
	attrs := metric.WithAttributes(attribute.String("kind", kind))
	m.RulesApplied.Add(ctx, 1, attrs)
	if added > 0 {
		m.ItemsAdded.Add(ctx, int64(added), attrs)
	}
	if removed > 0 {
		m.ItemsRemoved.Add(ctx, int64(removed), attrs)
	}
}

// RecordRuleRegistered counts one rule accepted by the store.
func (m *Metrics) RecordRuleRegistered(ctx context.Context, kind string) {
	m.RulesRegistered.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}
