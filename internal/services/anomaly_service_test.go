package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/anomaly-engine/internal/engine"
	"github.com/miradorstack/anomaly-engine/internal/lifecycle"
	"github.com/miradorstack/anomaly-engine/internal/models"
	"github.com/miradorstack/anomaly-engine/internal/utils"
)

type managerStub struct {
	result     models.ScoreResult
	scoreErr   error
	retrainErr error
	state      lifecycle.State
	ready      bool
	scored     []models.FeatureVector
	retrains   int
}

func (m *managerStub) Score(v models.FeatureVector) (models.ScoreResult, error) {
	m.scored = append(m.scored, v)
	if m.scoreErr != nil {
		return models.SafeScoreResult(), m.scoreErr
	}
	return m.result, nil
}

func (m *managerStub) Retrain(context.Context) (*engine.Ensemble, error) {
	m.retrains++
	if m.retrainErr != nil {
		return nil, m.retrainErr
	}
	return &engine.Ensemble{ID: "model-2", Threshold: 0.58, TrainedAt: time.Unix(1700000000, 0)}, nil
}

func (m *managerStub) IsModelReady() bool { return m.ready }
func (m *managerStub) State() lifecycle.State { return m.state }

func mustStruct(t *testing.T, fields map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(fields)
	if err != nil {
		t.Fatalf("build struct: %v", err)
	}
	return s
}

func TestScoreReturnsResultFields(t *testing.T) {
	stub := &managerStub{ready: true, result: models.ScoreResult{
		IsAnomaly:       true,
		NormalizedScore: 0.99,
		RawScore:        -5.1,
		AnomalyScore:    0.72,
		Threshold:       0.6,
		Severity:        models.SeverityHigh,
		ModelID:         "model-1",
	}}
	service := NewAnomalyService(utils.DiscardLogger(), stub, 0)

	resp, err := service.Score(context.Background(), mustStruct(t, map[string]any{
		"cpu_usage":    95.0,
		"memory_usage": "12.5",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields := resp.AsMap()
	if fields["anomaly"] != true || fields["severity"] != "high" || fields["model_id"] != "model-1" {
		t.Fatalf("unexpected response %v", fields)
	}
	if got := stub.scored[0]; got != models.NewFeatureVector(95, 12.5, 0) {
		t.Fatalf("unexpected vector %v", got)
	}
}

func TestScoreMalformedInputIsFailedPrecondition(t *testing.T) {
	stub := &managerStub{ready: true}
	service := NewAnomalyService(utils.DiscardLogger(), stub, 0)

	_, err := service.Score(context.Background(), mustStruct(t, map[string]any{"cpu_usage": "high"}))
	st := status.Convert(err)
	if st.Code() != codes.FailedPrecondition {
		t.Fatalf("expected failed precondition, got %v", err)
	}
	details := st.Details()
	if len(details) != 1 {
		t.Fatalf("expected one detail, got %d", len(details))
	}
	safe, ok := details[0].(*structpb.Struct)
	if !ok {
		t.Fatalf("unexpected detail type %T", details[0])
	}
	fields := safe.AsMap()
	if fields["anomaly"] != false || fields["score"] != 0.0 || fields["error"] == "" {
		t.Fatalf("unexpected safe default %v", fields)
	}
	if len(stub.scored) != 0 {
		t.Fatalf("malformed input must not reach the model")
	}
}

func TestScoreNotReadyIsUnavailable(t *testing.T) {
	stub := &managerStub{scoreErr: utils.NewKindError(utils.ErrModelNotReady, "lifecycle.Score", "model not ready", nil)}
	service := NewAnomalyService(utils.DiscardLogger(), stub, 0)

	_, err := service.Score(context.Background(), mustStruct(t, map[string]any{}))
	if status.Code(err) != codes.Unavailable {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestRetrainMapsOutcomes(t *testing.T) {
	stub := &managerStub{ready: true, state: lifecycle.StateTrained}
	service := NewAnomalyService(utils.DiscardLogger(), stub, 0)

	resp, err := service.Retrain(context.Background(), &emptypb.Empty{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fields := resp.AsMap()
	if fields["success"] != true || fields["model_id"] != "model-2" {
		t.Fatalf("unexpected response %v", fields)
	}

	stub.retrainErr = utils.NewKindError(utils.ErrTraining, "lifecycle.Retrain", "retrain failed", errors.New("boom"))
	_, err = service.Retrain(context.Background(), &emptypb.Empty{})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected internal, got %v", err)
	}
}

func TestRetrainThrottle(t *testing.T) {
	stub := &managerStub{ready: true, state: lifecycle.StateTrained}
	service := NewAnomalyService(utils.DiscardLogger(), stub, time.Hour)

	if _, err := service.RetrainModel(context.Background()); err != nil {
		t.Fatalf("first retrain should pass: %v", err)
	}
	res, err := service.RetrainModel(context.Background())
	if !errors.Is(err, ErrRetrainThrottled) {
		t.Fatalf("expected throttled, got %v", err)
	}
	if res.Success {
		t.Fatalf("throttled retrain must not report success")
	}
	if _, err := service.Retrain(context.Background(), &emptypb.Empty{}); status.Code(err) != codes.ResourceExhausted {
		t.Fatalf("expected resource exhausted, got %v", err)
	}

	stub.state = lifecycle.StateRetraining
	if _, err := service.RetrainModel(context.Background()); err != nil {
		t.Fatalf("joining an in-flight retrain should not be throttled: %v", err)
	}
	if stub.retrains != 2 {
		t.Fatalf("expected two retrains to reach the manager, got %d", stub.retrains)
	}
}

func TestPredictRejectsNull(t *testing.T) {
	stub := &managerStub{ready: true}
	service := NewAnomalyService(utils.DiscardLogger(), stub, 0)

	res, err := service.Predict(context.Background(), map[string]any{"network_usage": nil})
	if !errors.Is(err, utils.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if res != models.SafeScoreResult() {
		t.Fatalf("expected safe default, got %+v", res)
	}
}
