package telemetry

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector captures recovery events emitted by resource managers.
//
// Implementations are called inline from the coordinator's recovery path,
// so they must be cheap and must not block.
type Collector interface {
	IncRecovery(resource, outcome string)
	IncResourceCreated(resource string)
	IncResourceCreateFailed(resource string)
	IncResourceReturned(resource string)
	IncResourceCloseFailed(resource string)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) IncRecovery(string, string)     {}
func (noopCollector) IncResourceCreated(string)      {}
func (noopCollector) IncResourceCreateFailed(string) {}
func (noopCollector) IncResourceReturned(string)     {}
func (noopCollector) IncResourceCloseFailed(string)  {}

// PrometheusCollector exposes recovery counters via Prometheus.
type PrometheusCollector struct {
	recoveries    *prometheus.CounterVec
	created       *prometheus.CounterVec
	createFailed  *prometheus.CounterVec
	returned      *prometheus.CounterVec
	closeFailures *prometheus.CounterVec
}

// NewPrometheusCollector registers the recovery metrics with the provided
// registerer. Metrics already registered by an earlier collector are reused.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	recoveries, err := registerCounter(reg, prometheus.CounterOpts{
		Name: "xarecover_recovery_total",
		Help: "Number of recovery registrations attempted per resource manager and outcome.",
	}, "resource", "outcome")
	if err != nil {
		return nil, err
	}
	created, err := registerCounter(reg, prometheus.CounterOpts{
		Name: "xarecover_named_resource_created_total",
		Help: "Number of named XA resources handed to the coordinator.",
	}, "resource")
	if err != nil {
		return nil, err
	}
	createFailed, err := registerCounter(reg, prometheus.CounterOpts{
		Name: "xarecover_named_resource_create_failures_total",
		Help: "Number of failed attempts to open a named XA resource.",
	}, "resource")
	if err != nil {
		return nil, err
	}
	returned, err := registerCounter(reg, prometheus.CounterOpts{
		Name: "xarecover_named_resource_returned_total",
		Help: "Number of named XA resources returned by the coordinator.",
	}, "resource")
	if err != nil {
		return nil, err
	}
	closeFailures, err := registerCounter(reg, prometheus.CounterOpts{
		Name: "xarecover_named_resource_close_failures_total",
		Help: "Number of returned named XA resources whose connection failed to close.",
	}, "resource")
	if err != nil {
		return nil, err
	}
	return &PrometheusCollector{
		recoveries:    recoveries,
		created:       created,
		createFailed:  createFailed,
		returned:      returned,
		closeFailures: closeFailures,
	}, nil
}

func registerCounter(reg prometheus.Registerer, opts prometheus.CounterOpts, labels ...string) (*prometheus.CounterVec, error) {
	counter := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(counter); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return nil, err
		}
		return existing, nil
	}
	return counter, nil
}

// IncRecovery counts a RecoverResource outcome.
func (p *PrometheusCollector) IncRecovery(resource, outcome string) {
	if p == nil || p.recoveries == nil {
		return
	}
	p.recoveries.WithLabelValues(resource, outcome).Inc()
}

// IncResourceCreated counts a named resource handed out.
func (p *PrometheusCollector) IncResourceCreated(resource string) {
	if p == nil || p.created == nil {
		return
	}
	p.created.WithLabelValues(resource).Inc()
}

// IncResourceCreateFailed counts a failed named resource creation.
func (p *PrometheusCollector) IncResourceCreateFailed(resource string) {
	if p == nil || p.createFailed == nil {
		return
	}
	p.createFailed.WithLabelValues(resource).Inc()
}

// IncResourceReturned counts a named resource given back by the coordinator.
func (p *PrometheusCollector) IncResourceReturned(resource string) {
	if p == nil || p.returned == nil {
		return
	}
	p.returned.WithLabelValues(resource).Inc()
}

// IncResourceCloseFailed counts a returned resource whose connection failed to close.
func (p *PrometheusCollector) IncResourceCloseFailed(resource string) {
	if p == nil || p.closeFailures == nil {
		return
	}
	p.closeFailures.WithLabelValues(resource).Inc()
}
