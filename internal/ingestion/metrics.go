package ingestion

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for ragqa_ingest_documents_total.
const (
	outcomeOK         = "ok"
	outcomeLoadError  = "load_error"
	outcomeIndexError = "index_error"
)

// Metrics holds the Prometheus collectors for ingestion. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	// documentsTotal counts ingest attempts by outcome.
	documentsTotal *prometheus.CounterVec
	// chunksTotal counts index entries created.
	chunksTotal prometheus.Counter
}

// NewMetrics registers the ingestion collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		documentsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragqa",
			Subsystem: "ingest",
			Name:      "documents_total",
			Help:      "Documents submitted for ingestion, partitioned by outcome.",
		}, []string{"outcome"}),
		chunksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "ragqa",
			Subsystem: "ingest",
			Name:      "chunks_total",
			Help:      "Index entries created by ingestion.",
		}),
	}
}

func (m *Metrics) document(outcome string) {
	if m == nil {
		return
	}
	m.documentsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) chunks(n int) {
	if m == nil {
		return
	}
	m.chunksTotal.Add(float64(n))
}
