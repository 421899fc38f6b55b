package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/miradorstack/anomaly-engine/internal/api"
	"github.com/miradorstack/anomaly-engine/internal/cache"
	"github.com/miradorstack/anomaly-engine/internal/config"
	"github.com/miradorstack/anomaly-engine/internal/engine"
	"github.com/miradorstack/anomaly-engine/internal/lifecycle"
	"github.com/miradorstack/anomaly-engine/internal/metrics"
	"github.com/miradorstack/anomaly-engine/internal/repo"
	"github.com/miradorstack/anomaly-engine/internal/services"
	"github.com/miradorstack/anomaly-engine/internal/utils"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load config", slog.String("path", configPath), slog.Any("error", err))
		os.Exit(1)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.JSON)
	slog.SetDefault(logger)
	logger.Info("starting anomaly-engine",
		slog.String("grpc_address", cfg.Server.GRPCAddress),
		slog.String("http_address", cfg.Server.HTTPAddress),
	)

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		logger.Error("failed to register metrics", slog.Any("error", err))
		os.Exit(1)
	}
	metrics.SetModel(false, 0)

	stores := []repo.ModelStore{repo.NewFileStore(cfg.Storage.ModelPath)}

	var valkeyCloser cache.Provider
	if cfg.Cache.Enabled && cfg.Cache.Addr != "" {
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Cache.Addr,
			Username:     cfg.Cache.Username,
			Password:     cfg.Cache.Password,
			DB:           cfg.Cache.DB,
			DialTimeout:  cfg.Cache.DialTimeout,
			ReadTimeout:  cfg.Cache.ReadTimeout,
			WriteTimeout: cfg.Cache.WriteTimeout,
			MaxRetries:   cfg.Cache.MaxRetries,
			TLS:          cfg.Cache.TLS,
		})
		if err != nil {
			logger.Warn("valkey model mirror unavailable", slog.Any("error", err))
		} else {
			stores = append(stores, repo.NewCacheStore(provider, cfg.Cache.Key, cfg.Cache.TTL))
			valkeyCloser = provider
		}
	}
	if valkeyCloser != nil {
		defer valkeyCloser.Close()
	}

	if cfg.ObjectStore.Enabled {
		objectStore, err := repo.NewObjectStore(repo.ObjectStoreConfig{
			Endpoint:        cfg.ObjectStore.Endpoint,
			Bucket:          cfg.ObjectStore.Bucket,
			Object:          cfg.ObjectStore.Object,
			AccessKeyID:     cfg.ObjectStore.AccessKeyID,
			SecretAccessKey: cfg.ObjectStore.SecretAccessKey,
			Region:          cfg.ObjectStore.Region,
			Secure:          cfg.ObjectStore.Secure,
		})
		if err != nil {
			logger.Warn("s3 model mirror unavailable", slog.Any("error", err))
		} else {
			stores = append(stores, objectStore)
		}
	}

	manager := lifecycle.New(lifecycle.Config{
		Params: engine.Params{
			NumTrees:      cfg.Model.NumTrees,
			SubsampleSize: cfg.Model.SubsampleSize,
			Contamination: cfg.Model.Contamination,
			Seed:          cfg.Model.Seed,
			Workers:       cfg.Model.Workers,
		},
		TrainingSize: cfg.Model.TrainingSize,
		RotateSeed:   cfg.Model.RotateSeed,
	}, lifecycle.WithLogger(logger), lifecycle.WithStores(stores...))

	service := services.NewAnomalyService(logger, manager, cfg.Retrain.MinInterval)

	server, err := api.NewServer(cfg.Server, service)
	if err != nil {
		logger.Error("failed to create gRPC server", slog.Any("error", err))
		os.Exit(1)
	}
	manager.OnModelChange(func(*engine.Ensemble) { server.SetServing(true) })
	gateway := api.NewHTTPServer(cfg.Server, service, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var metricsServer *http.Server
	if cfg.Server.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress,
			Handler:      mux,
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 15 * time.Second,
		}
		go func() {
			logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server exited", slog.Any("error", err))
				stop()
			}
		}()
	}

	// Listeners come up first so probes see NOT_SERVING while the model loads.
	go func() {
		if serveErr := server.Start(); serveErr != nil {
			logger.Error("gRPC server exited", slog.Any("error", serveErr))
			stop()
		}
	}()
	go func() {
		logger.Info("http gateway listening", slog.String("address", cfg.Server.HTTPAddress))
		if serveErr := gateway.Start(); serveErr != nil {
			logger.Error("http gateway exited", slog.Any("error", serveErr))
			stop()
		}
	}()

	if _, err := manager.LoadOrTrain(ctx); err != nil {
		logger.Error("failed to load or train model", slog.Any("error", err))
		stop()
	}

	<-ctx.Done()
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulTimeout)
	defer cancel()
	if err := gateway.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http gateway shutdown", slog.Any("error", err))
	}
	server.Shutdown(shutdownCtx)

	if metricsServer != nil {
		metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
		if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown", slog.Any("error", err))
		}
		cancelMetrics()
	}

	time.Sleep(100 * time.Millisecond)
	logger.Info("anomaly-engine stopped")
}
