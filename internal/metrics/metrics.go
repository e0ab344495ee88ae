package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels investigations that completed every stage cleanly.
	OutcomeSuccess = "success"
	// OutcomeDegraded labels investigations that finished with stage errors.
	OutcomeDegraded = "degraded"
	// OutcomeSkipped labels investigations stopped at the triage gate.
	OutcomeSkipped = "skipped"
	// OutcomeError labels investigations that hit the defensive boundary.
	OutcomeError = "error"
)

const namespace = "mirador_investigator"

var (
	investigationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "investigations_total",
			Help:      "Total number of investigations handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	investigationDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "investigation_seconds",
			Help:      "End-to-end investigation latency in seconds.",
			Buckets:   []float64{1, 2.5, 5, 10, 20, 30, 45, 60, 90, 120, 180},
		},
	)

	stageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_seconds",
			Help:      "Per-stage latency in seconds.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		},
		[]string{"stage"},
	)

	stageFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_failures_total",
			Help:      "Stage runs that fell back to their conservative default.",
		},
		[]string{"stage"},
	)

	executionRoutesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_routes_total",
			Help:      "Remediation classifications by execution type.",
		},
		[]string{"type"},
	)

	inferenceRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inference_retries_total",
			Help:      "Inference calls retried after a throttling response.",
		},
	)

	parseRepairsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_repairs_total",
			Help:      "Responses that needed the repair pass, by whether decoding then succeeded.",
		},
		[]string{"result"},
	)

	logQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "log_queries_total",
			Help:      "Log queries executed during analysis, partitioned by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register attaches investigator collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		investigationsTotal,
		investigationDurationSeconds,
		stageDurationSeconds,
		stageFailuresTotal,
		executionRoutesTotal,
		inferenceRetriesTotal,
		parseRepairsTotal,
		logQueriesTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveInvestigation records an investigation duration and outcome label.
func ObserveInvestigation(duration time.Duration, outcome string) {
	switch outcome {
	case OutcomeSuccess, OutcomeDegraded, OutcomeSkipped, OutcomeError:
	default:
		outcome = OutcomeError
	}
	investigationsTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	investigationDurationSeconds.Observe(duration.Seconds())
}

// ObserveStage records one stage run.
func ObserveStage(stage string, duration time.Duration, ok bool) {
	if duration < 0 {
		duration = 0
	}
	stageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
	if !ok {
		stageFailuresTotal.WithLabelValues(stage).Inc()
	}
}

// ObserveRoute counts an execution-router decision.
func ObserveRoute(executionType string) {
	executionRoutesTotal.WithLabelValues(executionType).Inc()
}

// ObserveInferenceRetry counts a throttled inference call that will be retried.
func ObserveInferenceRetry() {
	inferenceRetriesTotal.Inc()
}

// ObserveRepair counts a repair pass and whether it rescued the response.
func ObserveRepair(recovered bool) {
	if recovered {
		parseRepairsTotal.WithLabelValues("recovered").Inc()
		return
	}
	parseRepairsTotal.WithLabelValues("failed").Inc()
}

// ObserveLogQuery counts one analysis log query.
func ObserveLogQuery(ok bool) {
	if ok {
		logQueriesTotal.WithLabelValues(OutcomeSuccess).Inc()
		return
	}
	logQueriesTotal.WithLabelValues(OutcomeError).Inc()
}
