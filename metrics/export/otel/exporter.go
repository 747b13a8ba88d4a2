package otel

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/tokenguard"
	"github.com/MrEthical07/tokenguard/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// MetricsSource is satisfied by *tokenguard.Engine.
type MetricsSource interface {
	MetricsSnapshot() tokenguard.MetricsSnapshot
	AuditDropped() uint64
}

type latencyInstruments struct {
	id      tokenguard.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableCounter
}

// Exporter publishes engine snapshots through observable instruments.
// Close unregisters the callback.
type Exporter struct {
	source       MetricsSource
	registration metric.Registration
	counters     map[tokenguard.MetricID]metric.Int64ObservableCounter
	latency      []latencyInstruments
	auditDropped metric.Int64ObservableCounter
	// leSets holds one attribute option per bucket so collection does not
	// rebuild them.
	leSets []metric.ObserveOption
}

// NewExporter registers one observable counter per engine counter and, per
// histogram, a bucket gauge keyed by the "le" attribute plus a sample count.
// A single callback reads the snapshot on each collection.
func NewExporter(meter metric.Meter, source MetricsSource) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:   source,
		counters: make(map[tokenguard.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
	}
	for _, label := range internaldefs.HistogramBoundLabels {
		e.leSets = append(e.leSets, metric.WithAttributeSet(attribute.NewSet(attribute.String("le", label))))
	}

	var observables []metric.Observable
	for _, def := range internaldefs.CounterDefs {
		c, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("otel: counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = c
		observables = append(observables, c)
	}

	for _, def := range internaldefs.HistogramDefs {
		buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound."))
		if err != nil {
			return nil, fmt.Errorf("otel: histogram %s: %w", def.Name, err)
		}
		count, err := meter.Int64ObservableCounter(def.Name+"_count",
			metric.WithDescription(def.Help+" Total samples."))
		if err != nil {
			return nil, fmt.Errorf("otel: histogram %s: %w", def.Name, err)
		}
		e.latency = append(e.latency, latencyInstruments{id: def.ID, buckets: buckets, count: count})
		observables = append(observables, buckets, count)
	}

	dropped, err := meter.Int64ObservableCounter(internaldefs.AuditDroppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("otel: counter %s: %w", internaldefs.AuditDroppedName, err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	e.registration, err = meter.RegisterCallback(e.collect, observables...)
	if err != nil {
		return nil, fmt.Errorf("otel: register callback: %w", err)
	}
	return e, nil
}

func (e *Exporter) collect(_ context.Context, o metric.Observer) error {
	snap := e.source.MetricsSnapshot()
	for id, c := range e.counters {
		o.ObserveInt64(c, int64(snap.Counters[id]))
	}

	for _, h := range e.latency {
		raw, ok := snap.Histograms[h.id]
		if !ok {
			continue
		}
		running := internaldefs.Cumulative(raw)
		for i, n := range running {
			o.ObserveInt64(h.buckets, int64(n), e.leSets[i])
		}
		o.ObserveInt64(h.count, int64(running[len(running)-1]))
	}

	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
