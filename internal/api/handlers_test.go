package api

import (
	"errors"
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/anomaly-engine/internal/models"
)

func TestFromProtoScoreRequest(t *testing.T) {
	req, err := structpb.NewStruct(map[string]any{"cpu_usage": 91.0, "network_usage": "640"})
	if err != nil {
		t.Fatalf("build struct: %v", err)
	}

	v, err := FromProtoScoreRequest(req)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if v != models.NewFeatureVector(91, 0, 640) {
		t.Fatalf("unexpected vector %v", v)
	}

	if _, err := FromProtoScoreRequest(nil); !errors.Is(err, ErrInvalidFeatures) {
		t.Fatalf("expected nil request to be rejected, got %v", err)
	}
}

func TestToProtoScoreResult(t *testing.T) {
	res := models.ScoreResult{
		IsAnomaly:       true,
		NormalizedScore: 0.995,
		RawScore:        -5.3,
		AnomalyScore:    0.71,
		Threshold:       0.59,
		Severity:        models.SeverityHigh,
		ModelID:         "model-1",
	}

	fields := ToProtoScoreResult(res).AsMap()
	if fields["anomaly"] != true {
		t.Fatalf("unexpected anomaly field: %v", fields["anomaly"])
	}
	if fields["score"] != 0.995 || fields["raw_score"] != -5.3 {
		t.Fatalf("unexpected scores: %v", fields)
	}
	if fields["severity"] != "high" || fields["model_id"] != "model-1" {
		t.Fatalf("unexpected metadata: %v", fields)
	}
}

func TestToProtoSafeScore(t *testing.T) {
	fields := ToProtoSafeScore(&FeatureError{Field: "cpu_usage", Reason: "must not be null"}).AsMap()
	if fields["anomaly"] != false || fields["score"] != 0.0 {
		t.Fatalf("unexpected safe default: %v", fields)
	}
	if fields["error"] != "cpu_usage: must not be null" {
		t.Fatalf("unexpected error text: %v", fields["error"])
	}
}

func TestRetrainFieldsOmitsModelOnFailure(t *testing.T) {
	failed := RetrainFields(models.RetrainResult{Success: false, Message: "boom"})
	if _, ok := failed["model_id"]; ok {
		t.Fatalf("failed retrain should not carry a model id")
	}

	ok := RetrainFields(models.RetrainResult{Success: true, Message: "done", ModelID: "m", Threshold: 0.6, TrainedAt: time.Unix(0, 0)})
	if ok["trained_at"] != "1970-01-01T00:00:00Z" {
		t.Fatalf("unexpected trained_at %v", ok["trained_at"])
	}
}
