package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "podrepo"

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Collector holds the Prometheus metrics for discovery and updates.
// A nil *Collector is valid and records nothing.
type Collector struct {
	discoveries       *prometheus.CounterVec
	discoveryDuration prometheus.Histogram
	coalesced         prometheus.Counter
	updates           *prometheus.CounterVec
	updateDuration    *prometheus.HistogramVec
	rejected          *prometheus.CounterVec
	catalogSize       prometheus.Gauge
	updating          prometheus.Gauge
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		discoveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discoveries_total",
			Help:      "Repository discoveries run, by outcome",
		}, []string{"outcome"}),

		discoveryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_duration_seconds",
			Help:      "Time spent enumerating source repositories",
			Buckets:   prometheus.DefBuckets,
		}),

		coalesced: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discoveries_coalesced_total",
			Help:      "Discovery requests served by an in-flight discovery",
		}),

		updates: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_total",
			Help:      "Repository updates run, by outcome",
		}, []string{"outcome"}),

		updateDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "update_duration_seconds",
			Help:      "Time spent updating a source repository",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"kind"}),

		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "updates_rejected_total",
			Help:      "Update requests rejected before running, by reason",
		}, []string{"reason"}),

		catalogSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_repositories",
			Help:      "Number of repositories in the catalog",
		}),

		updating: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "repositories_updating",
			Help:      "Number of repositories currently updating",
		}),

		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Status API requests, by route and status code",
		}, []string{"route", "code"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Status API request latency, by route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ObserveDiscovery records a finished discovery
func (c *Collector) ObserveDiscovery(seconds float64, err error, catalogSize int) {
	if c == nil {
		return
	}
	c.discoveries.WithLabelValues(outcome(err)).Inc()
	c.discoveryDuration.Observe(seconds)
	if err == nil {
		c.catalogSize.Set(float64(catalogSize))
	}
}

// DiscoveryCoalesced records a discovery request that joined an in-flight one
func (c *Collector) DiscoveryCoalesced() {
	if c == nil {
		return
	}
	c.coalesced.Inc()
}

// UpdateStarted records an accepted update
func (c *Collector) UpdateStarted() {
	if c == nil {
		return
	}
	c.updating.Inc()
}

// ObserveUpdate records a finished update
func (c *Collector) ObserveUpdate(kind string, seconds float64, err error) {
	if c == nil {
		return
	}
	c.updating.Dec()
	c.updates.WithLabelValues(outcome(err)).Inc()
	c.updateDuration.WithLabelValues(kind).Observe(seconds)
}

// UpdateRejected records an update refused before it ran
func (c *Collector) UpdateRejected(reason string) {
	if c == nil {
		return
	}
	c.rejected.WithLabelValues(reason).Inc()
}

// ObserveRequest records a served status API request
func (c *Collector) ObserveRequest(route string, code int, seconds float64) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	c.requestDuration.WithLabelValues(route).Observe(seconds)
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
