package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/anomaly-engine/internal/api"
	"github.com/miradorstack/anomaly-engine/internal/engine"
	"github.com/miradorstack/anomaly-engine/internal/grpc/anomalyv1"
	"github.com/miradorstack/anomaly-engine/internal/lifecycle"
	"github.com/miradorstack/anomaly-engine/internal/metrics"
	"github.com/miradorstack/anomaly-engine/internal/models"
	"github.com/miradorstack/anomaly-engine/internal/utils"
)

// ErrRetrainThrottled is returned when retrains arrive faster than the configured interval.
var ErrRetrainThrottled = fmt.Errorf("retrain requested too soon: %w", utils.ErrThrottled)

const latencyReportEvery = 1000

// ModelManager is the lifecycle surface the facade drives.
type ModelManager interface {
	Score(v models.FeatureVector) (models.ScoreResult, error)
	Retrain(ctx context.Context) (*engine.Ensemble, error)
	IsModelReady() bool
	State() lifecycle.State
}

// AnomalyService implements the gRPC AnomalyDetector service and the domain
// methods behind the HTTP gateway.
type AnomalyService struct {
	anomalyv1.UnimplementedAnomalyDetectorServer

	logger    *slog.Logger
	manager   ModelManager
	limiter   *rate.Limiter
	latencies *utils.LatencyTracker
	scored    atomic.Uint64
}

// NewAnomalyService constructs the facade. A positive minRetrainInterval
// throttles retrains that would start a new training run.
func NewAnomalyService(logger *slog.Logger, manager ModelManager, minRetrainInterval time.Duration) *AnomalyService {
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if minRetrainInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(minRetrainInterval), 1)
	}
	return &AnomalyService{
		logger:    logger,
		manager:   manager,
		limiter:   limiter,
		latencies: utils.NewLatencyTracker(4096),
	}
}

// Score implements anomalyv1.AnomalyDetectorServer.
func (s *AnomalyService) Score(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	v, err := api.FromProtoScoreRequest(req)
	if err != nil {
		metrics.ObserveScore(0, metrics.VerdictRejected)
		return nil, toStatus(err)
	}
	res, err := s.score(v)
	if err != nil {
		return nil, toStatus(err)
	}
	return api.ToProtoScoreResult(res), nil
}

// Retrain implements anomalyv1.AnomalyDetectorServer.
func (s *AnomalyService) Retrain(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	res, err := s.RetrainModel(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return api.ToProtoRetrainResult(res), nil
}

// Predict scores a decoded HTTP body.
func (s *AnomalyService) Predict(_ context.Context, fields map[string]any) (models.ScoreResult, error) {
	v, err := api.ParseFeatures(fields)
	if err != nil {
		metrics.ObserveScore(0, metrics.VerdictRejected)
		return models.SafeScoreResult(), err
	}
	return s.score(v)
}

func (s *AnomalyService) score(v models.FeatureVector) (models.ScoreResult, error) {
	start := time.Now()
	res, err := s.manager.Score(v)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveScore(duration, metrics.VerdictRejected)
		return res, err
	}

	verdict := metrics.VerdictNormal
	if res.IsAnomaly {
		verdict = metrics.VerdictAnomaly
		s.logger.Debug("anomaly detected",
			slog.Float64("cpu_usage", v.CPU()),
			slog.Float64("memory_usage", v.Memory()),
			slog.Float64("network_usage", v.Network()),
			slog.Float64("anomaly_score", res.AnomalyScore),
			slog.String("severity", string(res.Severity)),
		)
	}
	metrics.ObserveScore(duration, verdict)
	s.latencies.Observe(duration)
	if s.scored.Add(1)%latencyReportEvery == 0 {
		summary := s.latencies.Summary()
		s.logger.Info("scoring latency", slog.Duration("p50", summary.P50), slog.Duration("p95", summary.P95), slog.Int("samples", summary.Count))
	}
	return res, nil
}

// RetrainModel rebuilds the model. Callers arriving while a retrain is
// running join it without being throttled.
func (s *AnomalyService) RetrainModel(ctx context.Context) (models.RetrainResult, error) {
	if s.limiter != nil && s.manager.State() != lifecycle.StateRetraining && !s.limiter.Allow() {
		s.logger.Warn("retrain throttled")
		return models.RetrainResult{Success: false, Message: ErrRetrainThrottled.Error()}, ErrRetrainThrottled
	}

	ens, err := s.manager.Retrain(ctx)
	if err != nil {
		return models.RetrainResult{Success: false, Message: utils.Message(err)}, err
	}
	return models.RetrainResult{
		Success:   true,
		Message:   "Model retrained successfully",
		ModelID:   ens.ID,
		Threshold: ens.Threshold,
		TrainedAt: ens.TrainedAt,
	}, nil
}

// IsModelReady reports whether the manager has a serving model.
func (s *AnomalyService) IsModelReady() bool {
	return s.manager.IsModelReady()
}

// Latency returns the recent scoring latency summary.
func (s *AnomalyService) Latency() utils.LatencySummary {
	return s.latencies.Summary()
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, utils.ErrInvalidInput):
		st := status.New(codes.FailedPrecondition, err.Error())
		if detailed, derr := st.WithDetails(api.ToProtoSafeScore(err)); derr == nil {
			st = detailed
		}
		return st.Err()
	case errors.Is(err, utils.ErrModelNotReady):
		return status.Error(codes.Unavailable, "model not ready")
	case errors.Is(err, utils.ErrThrottled):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, utils.ErrTraining):
		return status.Error(codes.Internal, fmt.Sprintf("training failed: %v", err))
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
