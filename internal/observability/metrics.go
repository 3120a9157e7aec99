package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/vialtrack/vialtrack/internal/inventory"
)

// Metrics collects Prometheus metrics for the HTTP server and inventory snapshots.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	snapshots       prometheus.Counter
	computeSeconds  prometheus.Histogram
	discrepancy     *prometheus.GaugeVec
	locationStock   *prometheus.GaugeVec
	unresolved      prometheus.Gauge
}

// NewMetrics initialises the registry and collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vialtrack_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vialtrack_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	snapshots := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "vialtrack_snapshots_computed_total",
		Help: "Inventory snapshots computed from the full event log.",
	})
	compute := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "vialtrack_snapshot_compute_seconds",
		Help:    "Time spent loading and replaying the event log.",
		Buckets: prometheus.DefBuckets,
	})
	discrepancy := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vialtrack_depot_discrepancy_vials",
		Help: "Inferred minus reported vials per product and depot.",
	}, []string{"product", "depot"})
	stock := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "vialtrack_available_vials",
		Help: "Available vials per product and location.",
	}, []string{"product", "location", "type"})
	unresolved := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "vialtrack_unresolved_treatments",
		Help: "Treatments referencing vials without shipment history.",
	})
	registry.MustRegister(requests, duration, snapshots, compute, discrepancy, stock, unresolved)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		snapshots:       snapshots,
		computeSeconds:  compute,
		discrepancy:     discrepancy,
		locationStock:   stock,
		unresolved:      unresolved,
	}
}

// Handler returns the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records request count and latency per chi route pattern.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveSnapshot publishes the figures of a freshly computed snapshot. Stock
// gauges are reset first so locations that emptied out disappear.
func (m *Metrics) ObserveSnapshot(snap inventory.Snapshot, took time.Duration) {
	if m == nil {
		return
	}
	m.snapshots.Inc()
	m.computeSeconds.Observe(took.Seconds())
	m.discrepancy.Reset()
	for _, p := range snap.Reconciliation.Products {
		for _, rec := range p.Records {
			m.discrepancy.WithLabelValues(rec.Product, rec.Location).Set(float64(rec.Difference))
		}
	}
	m.locationStock.Reset()
	for _, entry := range snap.Inventory.Depots {
		m.observeEntry(entry, inventory.LocationDepot)
	}
	for _, entry := range snap.Inventory.Sites {
		m.observeEntry(entry, inventory.LocationSite)
	}
	m.unresolved.Set(float64(len(snap.Unresolved)))
}

// Registerer exposes the registry for custom collectors.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

func (m *Metrics) observeEntry(entry inventory.LocationInventoryEntry, kind inventory.LocationType) {
	for product, stock := range entry.PerProduct {
		m.locationStock.WithLabelValues(product, entry.Location, string(kind)).Set(float64(stock.Count))
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
