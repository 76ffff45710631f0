package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Row verdict labels
const (
	RowAccepted         = "accepted"
	RowMalformed        = "malformed"
	RowRejectedCategory = "rejected_category"
	RowRejectedPort     = "rejected_port"
	RowRejectedETA      = "rejected_eta"
)

// Registry holds the service metrics. A nil *Registry is valid and
// records nothing.
type Registry struct {
	reg             *prometheus.Registry
	Rows            *prometheus.CounterVec
	Extractions     *prometheus.CounterVec
	BatchesStored   prometheus.Counter
	RecordsStored   prometheus.Counter
	FetchFailures   prometheus.Counter
	HTTPRequests    *prometheus.CounterVec
	HTTPLatencySec  *prometheus.HistogramVec
	ExtractDuration prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "berthwatch_rows_total",
		Help: "Extracted table rows by normalizer verdict.",
	}, []string{"verdict"})
	extractions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "berthwatch_extractions_total",
		Help: "Extraction runs by outcome.",
	}, []string{"outcome"})
	batches := prometheus.NewCounter(prometheus.CounterOpts{Name: "berthwatch_batches_stored_total"})
	records := prometheus.NewCounter(prometheus.CounterOpts{Name: "berthwatch_records_stored_total"})
	fetchFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "berthwatch_fetch_failures_total"})
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "berthwatch_http_requests_total",
	}, []string{"method", "route", "status"})
	httpLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "berthwatch_http_request_duration_seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	extractDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "berthwatch_extract_duration_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(rows, extractions, batches, records, fetchFailures, httpRequests, httpLatency, extractDuration)
	return &Registry{
		reg:             r,
		Rows:            rows,
		Extractions:     extractions,
		BatchesStored:   batches,
		RecordsStored:   records,
		FetchFailures:   fetchFailures,
		HTTPRequests:    httpRequests,
		HTTPLatencySec:  httpLatency,
		ExtractDuration: extractDuration,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }

// Gatherer exposes the underlying registry for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) ObserveRows(verdict string, n int) {
	if r == nil || n == 0 {
		return
	}
	r.Rows.WithLabelValues(verdict).Add(float64(n))
}

func (r *Registry) ObserveExtraction(outcome string, took time.Duration) {
	if r == nil {
		return
	}
	r.Extractions.WithLabelValues(outcome).Inc()
	r.ExtractDuration.Observe(took.Seconds())
}

func (r *Registry) ObserveBatch(records int) {
	if r == nil {
		return
	}
	r.BatchesStored.Inc()
	r.RecordsStored.Add(float64(records))
}

func (r *Registry) ObserveFetchFailure() {
	if r == nil {
		return
	}
	r.FetchFailures.Inc()
}

func (r *Registry) ObserveRequest(method, route string, status int, took time.Duration) {
	if r == nil {
		return
	}
	r.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.HTTPLatencySec.WithLabelValues(method, route).Observe(took.Seconds())
}
