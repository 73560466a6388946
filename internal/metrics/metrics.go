package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appErr "github.com/xxxsen/ragbase/internal/pkg/errors"
)

var (
	global *Metrics
	once   sync.Once
)

type Metrics struct {
	IngestedChunks  prometheus.Counter
	IngestFailures  *prometheus.CounterVec
	EmbedDuration   *prometheus.HistogramVec
	StoreOperations *prometheus.CounterVec
	SearchDuration  prometheus.Histogram
	HTTPRequests    *prometheus.HistogramVec
	ProviderSwitch  *prometheus.CounterVec
	StoredChunks    prometheus.Gauge
}

// Get returns the process-wide collectors, registering them on first use.
func Get() *Metrics {
	once.Do(func() {
		global = &Metrics{
			IngestedChunks: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ragbase_ingested_chunks_total",
				Help: "Chunks stored by ingestion",
			}),
			IngestFailures: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "ragbase_ingest_failures_total",
				Help: "Ingestions aborted, by error kind",
			}, []string{"kind"}),
			EmbedDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "ragbase_embed_duration_seconds",
				Help:    "Latency of embedding calls",
				Buckets: prometheus.DefBuckets,
			}, []string{"result"}),
			StoreOperations: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "ragbase_store_operations_total",
				Help: "Vector store operations by provider, operation and result",
			}, []string{"provider", "op", "result"}),
			SearchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "ragbase_search_duration_seconds",
				Help:    "End to end latency of similarity queries",
				Buckets: prometheus.DefBuckets,
			}),
			HTTPRequests: promauto.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "ragbase_http_request_duration_seconds",
				Help:    "HTTP request latency by route and status",
				Buckets: prometheus.DefBuckets,
			}, []string{"method", "route", "status"}),
			ProviderSwitch: promauto.NewCounterVec(prometheus.CounterOpts{
				Name: "ragbase_provider_switches_total",
				Help: "Runtime vector store switches by target provider",
			}, []string{"provider"}),
			StoredChunks: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "ragbase_stored_chunks",
				Help: "Chunks held by the active vector store at the last stats run",
			}),
		}
	})
	return global
}

func Handler() http.Handler {
	return promhttp.Handler()
}

func (m *Metrics) ObserveEmbed(start time.Time, err error) {
	m.EmbedDuration.WithLabelValues(result(err)).Observe(time.Since(start).Seconds())
}

func (m *Metrics) ObserveStore(provider, op string, err error) {
	m.StoreOperations.WithLabelValues(provider, op, result(err)).Inc()
}

func (m *Metrics) ObserveIngestFailure(err error) {
	m.IngestFailures.WithLabelValues(appErr.Kind(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
