package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type StewardMetrics struct {
	registry      *prometheus.Registry
	operations    *prometheus.CounterVec
	events        *prometheus.CounterVec
	blockedPayout *prometheus.CounterVec
	deposit       prometheus.Gauge
	price         prometheus.Gauge
	totalCollect  prometheus.Gauge
	owned         prometheus.Gauge
	httpRequests  *prometheus.CounterVec
}

var (
	stewardOnce    sync.Once
	stewardMetrics *StewardMetrics
)

// Steward returns the process-wide steward metrics.
func Steward() *StewardMetrics {
	stewardOnce.Do(func() {
		stewardMetrics = New()
	})
	return stewardMetrics
}

// New builds the steward metrics on a registry of their own, together with
// the Go runtime and process collectors.
func New() *StewardMetrics {
	m := &StewardMetrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "steward_operations_total",
			Help: "Steward operations by name and result.",
		}, []string{"operation", "result"}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "steward_events_total",
			Help: "Committed steward events by type.",
		}, []string{"type"}),
		blockedPayout: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "steward_payout_blocked_total",
			Help: "Payouts refused by the recipient, by path.",
		}, []string{"path"}),
		deposit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "steward_deposit_wei",
			Help: "Patron deposit after the last committed operation.",
		}),
		price: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "steward_price_wei",
			Help: "Declared price after the last committed operation.",
		}),
		totalCollect: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "steward_total_collected_wei",
			Help: "Patronage collected over the asset's lifetime.",
		}),
		owned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "steward_owned",
			Help: "1 while a patron holds the asset, 0 while foreclosed.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "steward_http_requests_total",
			Help: "HTTP requests by method and status code.",
		}, []string{"method", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.operations,
		m.events,
		m.blockedPayout,
		m.deposit,
		m.price,
		m.totalCollect,
		m.owned,
		m.httpRequests,
	)
	return m
}

// Handler serves this registry in the Prometheus text format.
func (m *StewardMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *StewardMetrics) ObserveOperation(operation string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(operation, result).Inc()
}

func (m *StewardMetrics) ObserveEvent(eventType string) {
	if m == nil {
		return
	}
	if eventType == "" {
		eventType = "unknown"
	}
	m.events.WithLabelValues(eventType).Inc()
}

func (m *StewardMetrics) ObserveBlockedPayout(path string) {
	if m == nil {
		return
	}
	m.blockedPayout.WithLabelValues(path).Inc()
}

// SetState records the headline figures of the committed state. Wei values
// are exported as floats, which is lossy but fine for dashboards.
func (m *StewardMetrics) SetState(price, deposit, totalCollected float64, owned bool) {
	if m == nil {
		return
	}
	m.price.Set(price)
	m.deposit.Set(deposit)
	m.totalCollect.Set(totalCollected)
	if owned {
		m.owned.Set(1)
	} else {
		m.owned.Set(0)
	}
}

func (m *StewardMetrics) ObserveHTTPRequest(method, status string) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, status).Inc()
}
