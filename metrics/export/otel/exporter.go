package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() tenantauth.MetricsSnapshot
	AuditDropped() uint64
}

// point is one series with its attribute set resolved up front, so
// collection allocates nothing per series.
type point struct {
	id   tenantauth.MetricID
	opts metric.ObserveOption
}

type family struct {
	instrument metric.Int64ObservableCounter
	points     []point
}

type histogram struct {
	id      tenantauth.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	le      [8]metric.ObserveOption
}

type OTelExporter struct {
	source       metricsSource
	registration metric.Registration
	families     []family
	histograms   []histogram
	auditDropped metric.Int64ObservableCounter
}

func NewOTelExporter(meter metric.Meter, engine *tenantauth.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{source: source}
	var observables []metric.Observable

	for _, def := range internaldefs.Families {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		f := family{instrument: ins, points: make([]point, 0, len(def.Series))}
		for _, s := range def.Series {
			f.points = append(f.points, point{id: s.ID, opts: attributes(s.Labels)})
		}
		e.families = append(e.families, f)
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket", metric.WithDescription(def.Help+" Cumulative count per upper bound."))
		if err != nil {
			return nil, fmt.Errorf("gauge %s_bucket: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableGauge(def.Name+"_count", metric.WithDescription(def.Help+" Total samples."))
		if err != nil {
			return nil, fmt.Errorf("gauge %s_count: %w", def.Name, err)
		}
		h := histogram{id: def.ID, buckets: buckets, count: count}
		for i, le := range internaldefs.HistogramBounds {
			h.le[i] = attributes([]internaldefs.Label{{Name: "le", Value: le}})
		}
		e.histograms = append(e.histograms, h)
		observables = append(observables, buckets, count)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription("Audit events dropped under dispatcher backpressure."))
	if err != nil {
		return nil, fmt.Errorf("counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, f := range e.families {
		for _, p := range f.points {
			o.ObserveInt64(f.instrument, int64(snapshot.Counters[p.id]), p.opts)
		}
	}
	for _, h := range e.histograms {
		cumulative := internaldefs.Cumulative(snapshot.Histograms[h.id])
		for i, v := range cumulative {
			o.ObserveInt64(h.buckets, int64(v), h.le[i])
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

func attributes(labels []internaldefs.Label) metric.ObserveOption {
	kvs := make([]attribute.KeyValue, 0, len(labels))
	for _, l := range labels {
		kvs = append(kvs, attribute.String(l.Name, l.Value))
	}
	return metric.WithAttributeSet(attribute.NewSet(kvs...))
}

// Close unregisters the collection callback. The instruments stay on the
// meter but report nothing afterwards.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
