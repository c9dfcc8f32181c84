package sinks

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ragops/harvester/internal/progress"
)

// PrometheusSink exports progress events as Prometheus series.
type PrometheusSink struct {
	events     *prometheus.CounterVec
	queueDepth prometheus.Gauge
	batchDur   prometheus.Histogram
}

// NewPrometheusSink registers the sink's collectors on the registerer.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "harvester_progress_events_total",
			Help: "Progress events observed, labeled by stage.",
		}, []string{"stage"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "harvester_frontier_queue_depth",
			Help: "Frontier queue depth at the last observed batch.",
		}),
		batchDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "harvester_batch_duration_seconds",
			Help:    "Batch wall-clock duration.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if err := register(reg, &s.events); err != nil {
		return nil, err
	}
	if err := register(reg, &s.queueDepth); err != nil {
		return nil, err
	}
	if err := register(reg, &s.batchDur); err != nil {
		return nil, err
	}
	return s, nil
}

// register registers the collector, reusing an already-registered duplicate
// so repeated sink construction against one registerer stays safe.
func register[C prometheus.Collector](reg prometheus.Registerer, c *C) error {
	if err := reg.Register(*c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return err
		}
		existing, ok := are.ExistingCollector.(C)
		if !ok {
			return err
		}
		*c = existing
	}
	return nil
}

// Consume updates the exported series from the event.
func (s *PrometheusSink) Consume(_ context.Context, evt progress.Event) error {
	s.events.WithLabelValues(string(evt.Stage)).Inc()
	if evt.Stage == progress.StageBatchDone || evt.Stage == progress.StageFinalPass {
		s.queueDepth.Set(float64(evt.QueueDepth))
		s.batchDur.Observe(evt.Dur.Seconds())
	}
	return nil
}

// Close is a no-op; collectors stay registered for the process lifetime.
func (s *PrometheusSink) Close(_ context.Context) error {
	return nil
}
