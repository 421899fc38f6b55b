package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels successful retrains.
	OutcomeSuccess = "success"
	// OutcomeError labels failed retrains; the previous model stays in service.
	OutcomeError = "error"

	// VerdictNormal and VerdictAnomaly partition scored vectors.
	VerdictNormal  = "normal"
	VerdictAnomaly = "anomaly"
	// VerdictRejected counts malformed or unservable score requests.
	VerdictRejected = "rejected"
)

var (
	scoresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "anomaly_engine",
			Name:      "scores_total",
			Help:      "Total number of scoring requests, partitioned by verdict.",
		},
		[]string{"verdict"},
	)

	scoreDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "anomaly_engine",
			Name:      "score_seconds",
			Help:      "Scoring latency in seconds.",
			Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05},
		},
	)

	retrainsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "anomaly_engine",
			Name:      "retrains_total",
			Help:      "Total number of retrain attempts, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	retrainDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "anomaly_engine",
			Name:      "retrain_seconds",
			Help:      "Training latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
	)

	modelReady = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "anomaly_engine",
			Name:      "model_ready",
			Help:      "1 when a trained or loaded model is serving, 0 otherwise.",
		},
	)

	modelThreshold = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "anomaly_engine",
			Name:      "model_threshold",
			Help:      "Decision threshold of the serving model.",
		},
	)

	persistFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "anomaly_engine",
			Name:      "persist_failures_total",
			Help:      "Model persistence failures, partitioned by store.",
		},
		[]string{"store"},
	)
)

// Register attaches anomaly-engine collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		scoresTotal,
		scoreDurationSeconds,
		retrainsTotal,
		retrainDurationSeconds,
		modelReady,
		modelThreshold,
		persistFailuresTotal,
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

// ObserveScore records a scoring duration and verdict label.
func ObserveScore(duration time.Duration, verdict string) {
	switch verdict {
	case VerdictAnomaly, VerdictRejected:
	default:
		verdict = VerdictNormal
	}
	scoresTotal.WithLabelValues(verdict).Inc()
	if verdict == VerdictRejected {
		return
	}
	scoreDurationSeconds.Observe(clamp(duration).Seconds())
}

// ObserveRetrain records a retrain duration and outcome label.
func ObserveRetrain(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	retrainsTotal.WithLabelValues(label).Inc()
	retrainDurationSeconds.Observe(clamp(duration).Seconds())
}

// SetModel publishes readiness and the serving threshold.
func SetModel(ready bool, threshold float64) {
	if !ready {
		modelReady.Set(0)
		return
	}
	modelReady.Set(1)
	modelThreshold.Set(threshold)
}

// ObservePersistFailure counts a failed write to the named store.
func ObservePersistFailure(store string) {
	persistFailuresTotal.WithLabelValues(store).Inc()
}

func clamp(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}
