// Command anomaly-probe feeds synthetic usage samples with random load spikes
// to a running anomaly-engine over gRPC and logs each verdict.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/anomaly-engine/internal/grpc/anomalyv1"
	"github.com/miradorstack/anomaly-engine/internal/models"
	"github.com/miradorstack/anomaly-engine/internal/utils"
)

type probeConfig struct {
	target   string
	interval time.Duration
	count    int
	seed     int64
	timeout  time.Duration
}

func main() {
	var cfg probeConfig
	var logLevel string
	var logJSON bool
	flag.StringVar(&cfg.target, "target", "localhost:50051", "anomaly-engine gRPC address")
	flag.DurationVar(&cfg.interval, "interval", 5*time.Second, "delay between samples")
	flag.IntVar(&cfg.count, "count", 0, "number of samples to send; 0 runs until interrupted")
	flag.Int64Var(&cfg.seed, "seed", time.Now().UnixNano(), "sample generator seed")
	flag.DurationVar(&cfg.timeout, "timeout", 2*time.Second, "per-request timeout")
	flag.StringVar(&logLevel, "log-level", "info", "log level")
	flag.BoolVar(&logJSON, "log-json", false, "emit JSON logs")
	flag.Parse()

	logger := utils.NewLogger(logLevel, logJSON)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := grpc.NewClient(cfg.target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.Error("failed to create client", slog.String("target", cfg.target), slog.Any("error", err))
		os.Exit(1)
	}
	defer conn.Close()

	if err := waitServing(ctx, healthpb.NewHealthClient(conn), logger); err != nil {
		logger.Error("engine never became ready", slog.Any("error", err))
		os.Exit(1)
	}

	stats := run(ctx, cfg, anomalyv1.NewAnomalyDetectorClient(conn), logger)
	logger.Info("probe finished",
		slog.Int("samples", stats.samples),
		slog.Int("spikes", stats.spikes),
		slog.Int("anomalies", stats.anomalies),
		slog.Int("errors", stats.errors),
	)
}

type probeStats struct {
	samples   int
	spikes    int
	anomalies int
	errors    int
}

func run(ctx context.Context, cfg probeConfig, client anomalyv1.AnomalyDetectorClient, logger *slog.Logger) probeStats {
	gen := newGenerator(cfg.seed)
	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()

	var stats probeStats
	for cfg.count <= 0 || stats.samples < cfg.count {
		v, spiked := gen.next()
		stats.samples++
		if spiked {
			stats.spikes++
		}

		res, err := score(ctx, client, v, cfg.timeout)
		switch {
		case err != nil:
			stats.errors++
			logger.Warn("score failed", slog.String("code", status.Code(err).String()), slog.Any("error", err))
		case res["anomaly"] == true:
			stats.anomalies++
			logger.Info("anomaly detected",
				slog.String("sample", describe(v)),
				slog.Bool("spike", spiked),
				slog.Any("score", res["score"]),
				slog.Any("severity", res["severity"]),
			)
		default:
			logger.Debug("sample normal", slog.String("sample", describe(v)), slog.Any("score", res["score"]))
		}

		if cfg.count > 0 && stats.samples >= cfg.count {
			break
		}
		select {
		case <-ctx.Done():
			return stats
		case <-ticker.C:
		}
	}
	return stats
}

func score(ctx context.Context, client anomalyv1.AnomalyDetectorClient, v models.FeatureVector, timeout time.Duration) (map[string]any, error) {
	req, err := structpb.NewStruct(map[string]any{
		models.FeatureCPU.String():     v.CPU(),
		models.FeatureMemory.String():  v.Memory(),
		models.FeatureNetwork.String(): v.Network(),
	})
	if err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := client.Score(callCtx, req)
	if err != nil {
		return nil, err
	}
	return resp.AsMap(), nil
}

func waitServing(ctx context.Context, health healthpb.HealthClient, logger *slog.Logger) error {
	for attempt := 1; ; attempt++ {
		resp, err := health.Check(ctx, &healthpb.HealthCheckRequest{Service: anomalyv1.AnomalyDetector_ServiceDesc.ServiceName})
		if err == nil && resp.GetStatus() == healthpb.HealthCheckResponse_SERVING {
			return nil
		}
		logger.Info("waiting for engine", slog.Int("attempt", attempt), slog.Any("error", err))

		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), err)
		case <-time.After(time.Second):
		}
	}
}

func describe(v models.FeatureVector) string {
	return fmt.Sprintf("cpu=%.1f%% memory=%.1f%% network=%.1fMB/s", v.CPU(), v.Memory(), v.Network())
}
