package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var _ inventory.Observer = (*Metrics)(nil)

// Metrics métricas del libro de stock sobre un registro propio.
type Metrics struct {
	registry *prometheus.Registry

	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	LockWaitDuration  prometheus.Histogram
	HTTPRequestsTotal *prometheus.CounterVec
}

// New registra los colectores bajo el namespace dado ("stock_ledger" si está vacío).
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "stock_ledger"
	}
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Operaciones del motor por tipo y resultado",
		},
		[]string{"operation", "outcome"},
	)
	m.OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duración de las operaciones del motor",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)
	m.LockWaitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Espera por el bloqueo exclusivo de un registro de stock",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		},
	)
	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Peticiones HTTP por método, ruta y estado",
		},
		[]string{"method", "route", "status"},
	)

	registry.MustRegister(m.OperationsTotal, m.OperationDuration, m.LockWaitDuration, m.HTTPRequestsTotal)
	return m
}

// ObserveOperation cuenta la operación con su resultado ("ok" o la clase del error).
func (m *Metrics) ObserveOperation(operation string, kind domain.ErrorKind, elapsed time.Duration) {
	outcome := "ok"
	if kind != domain.KindNone {
		outcome = string(kind)
	}
	m.OperationsTotal.WithLabelValues(operation, outcome).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveLockWait se pasa como hook a los adaptadores de almacenamiento.
func (m *Metrics) ObserveLockWait(d time.Duration) {
	m.LockWaitDuration.Observe(d.Seconds())
}

// ObserveRequest cuenta una petición HTTP atendida.
func (m *Metrics) ObserveRequest(method, route string, status int) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

// Registry expone el registro (tests).
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler devuelve el handler HTTP de exposición.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
