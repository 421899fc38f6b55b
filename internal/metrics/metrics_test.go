package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterIsIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}
}

func TestObserveScoreNormalisesVerdict(t *testing.T) {
	before := testutil.ToFloat64(scoresTotal.WithLabelValues(VerdictNormal))
	ObserveScore(time.Millisecond, "something-else")
	ObserveScore(-time.Second, VerdictNormal)
	after := testutil.ToFloat64(scoresTotal.WithLabelValues(VerdictNormal))
	if after-before != 2 {
		t.Fatalf("expected two normal verdicts, got %v", after-before)
	}
}

func TestObserveRetrainAndModelGauges(t *testing.T) {
	before := testutil.ToFloat64(retrainsTotal.WithLabelValues(OutcomeError))
	ObserveRetrain(time.Second, OutcomeError)
	if got := testutil.ToFloat64(retrainsTotal.WithLabelValues(OutcomeError)) - before; got != 1 {
		t.Fatalf("expected one failed retrain, got %v", got)
	}

	SetModel(true, 0.61)
	if testutil.ToFloat64(modelReady) != 1 || testutil.ToFloat64(modelThreshold) != 0.61 {
		t.Fatalf("unexpected gauges ready=%v threshold=%v", testutil.ToFloat64(modelReady), testutil.ToFloat64(modelThreshold))
	}
	SetModel(false, 0)
	if testutil.ToFloat64(modelReady) != 0 {
		t.Fatalf("expected model_ready 0")
	}

	ObservePersistFailure("s3")
	if testutil.ToFloat64(persistFailuresTotal.WithLabelValues("s3")) < 1 {
		t.Fatalf("expected persist failure to be counted")
	}
}
