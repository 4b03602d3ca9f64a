package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for ragqa_query_total.
const (
	outcomeAnswered = "answered"
	outcomeAdvisory = "advisory"
	outcomeError    = "error"
)

// Metrics holds the Prometheus collectors for question answering. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	total     *prometheus.CounterVec
	retrieval prometheus.Histogram
}

// NewMetrics registers the query collectors against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		total: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ragqa",
			Subsystem: "query",
			Name:      "total",
			Help:      "Questions handled, partitioned by outcome.",
		}, []string{"outcome"}),
		retrieval: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ragqa",
			Subsystem: "query",
			Name:      "retrieved_chunks",
			Help:      "Chunks placed in the prompt context per question.",
			Buckets:   []float64{0, 1, 2, 4, 8, 12, 20},
		}),
	}
}

func (m *Metrics) answer(outcome string) {
	if m == nil {
		return
	}
	m.total.WithLabelValues(outcome).Inc()
}

func (m *Metrics) retrieved(n int) {
	if m == nil {
		return
	}
	m.retrieval.Observe(float64(n))
}
