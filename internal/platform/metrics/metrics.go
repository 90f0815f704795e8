package metrics

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters for the archiving engine.
type Metrics struct {
	registry                *prometheus.Registry
	segmentsDownloadedTotal *prometheus.CounterVec
	segmentFailuresTotal    *prometheus.CounterVec
	videosArchivedTotal     *prometheus.CounterVec
	pollCyclesTotal         *prometheus.CounterVec
}

// New creates and registers Prometheus metrics for the archiver.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	segmentsDownloadedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kickvod_segments_downloaded_total",
		Help: "Total number of media segments downloaded",
	}, []string{"channel"})
	segmentFailuresTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kickvod_segment_failures_total",
		Help: "Total number of failed segment fetches",
	}, []string{"channel"})
	videosArchivedTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kickvod_videos_archived_total",
		Help: "Total number of videos fully archived",
	}, []string{"channel"})
	pollCyclesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kickvod_poll_cycles_total",
		Help: "Total number of channel poll cycles",
	}, []string{"channel"})

	registry.MustRegister(
		segmentsDownloadedTotal,
		segmentFailuresTotal,
		videosArchivedTotal,
		pollCyclesTotal,
	)

	return &Metrics{
		registry:                registry,
		segmentsDownloadedTotal: segmentsDownloadedTotal,
		segmentFailuresTotal:    segmentFailuresTotal,
		videosArchivedTotal:     videosArchivedTotal,
		pollCyclesTotal:         pollCyclesTotal,
	}
}

// AddSegmentsDownloaded increments the downloaded-segment counter.
func (m *Metrics) AddSegmentsDownloaded(channel string, n int) {
	m.segmentsDownloadedTotal.WithLabelValues(channel).Add(float64(n))
}

// IncSegmentFailure increments the failed-segment counter.
func (m *Metrics) IncSegmentFailure(channel string) {
	m.segmentFailuresTotal.WithLabelValues(channel).Inc()
}

// IncVideoArchived increments the archived-video counter.
func (m *Metrics) IncVideoArchived(channel string) {
	m.videosArchivedTotal.WithLabelValues(channel).Inc()
}

// IncPollCycle increments the poll-cycle counter.
func (m *Metrics) IncPollCycle(channel string) {
	m.pollCyclesTotal.WithLabelValues(channel).Inc()
}

// Handler returns the /metrics HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Router returns an HTTP router exposing /metrics and /healthz. The endpoint
// is purely observational; the archiver runs the same without it.
func (m *Metrics) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/metrics", m.Handler().ServeHTTP)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return r
}
