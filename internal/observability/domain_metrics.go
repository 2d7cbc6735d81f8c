package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salesbot_questions_total",
			Help: "Questions handled by the conversation pipeline, by reply kind.",
		},
		[]string{"outcome"},
	)
	translationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salesbot_translations_total",
			Help: "Translation attempts by translator source and result.",
		},
		[]string{"source", "result"},
	)
	llmErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salesbot_llm_errors_total",
			Help: "Language model failures by kind.",
		},
		[]string{"kind"},
	)
	queryDurationMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "salesbot_query_duration_ms",
			Help:    "Sales store query latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
	)
	queryErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "salesbot_query_errors_total",
			Help: "Sales store query failures.",
		},
	)
	guardRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salesbot_sql_guard_rejections_total",
			Help: "Translated statements rejected before execution, by translator source.",
		},
		[]string{"source"},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		translationsTotal,
		llmErrorsTotal,
		queryDurationMs,
		queryErrorsTotal,
		guardRejectionsTotal,
	)
}

func IncrementQuestion(outcome string) {
	questionsTotal.WithLabelValues(outcome).Inc()
}

func ObserveTranslation(source, result string) {
	translationsTotal.WithLabelValues(source, result).Inc()
}

func IncrementLLMError(kind string) {
	llmErrorsTotal.WithLabelValues(kind).Inc()
}

func ObserveQuery(elapsed time.Duration, err error) {
	queryDurationMs.Observe(float64(elapsed.Milliseconds()))
	if err != nil {
		queryErrorsTotal.Inc()
	}
}

func IncrementGuardRejection(source string) {
	guardRejectionsTotal.WithLabelValues(source).Inc()
}
