package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/heptiolabs/healthcheck"
	"github.com/rs/cors"

	"github.com/miradorstack/anomaly-engine/internal/config"
	"github.com/miradorstack/anomaly-engine/internal/models"
	"github.com/miradorstack/anomaly-engine/internal/utils"
)

const maxBodyBytes = 64 << 10

// Detector is the domain surface the HTTP gateway serves.
type Detector interface {
	Predict(ctx context.Context, fields map[string]any) (models.ScoreResult, error)
	RetrainModel(ctx context.Context) (models.RetrainResult, error)
	IsModelReady() bool
}

// HTTPServer exposes the detector over JSON/HTTP.
type HTTPServer struct {
	srv      *http.Server
	detector Detector
	logger   *slog.Logger
}

// NewHTTPServer builds the gateway router; Start binds cfg.HTTPAddress.
func NewHTTPServer(cfg config.ServerConfig, detector Detector, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	h := &HTTPServer{detector: detector, logger: logger}

	health := healthcheck.NewHandler()
	health.AddReadinessCheck("model", func() error {
		if !detector.IsModelReady() {
			return errors.New("model not loaded")
		}
		return nil
	})

	router := mux.NewRouter()
	router.HandleFunc("/predict", h.handlePredict).Methods(http.MethodPost)
	router.HandleFunc("/retrain", h.handleRetrain).Methods(http.MethodPost)
	router.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/live", health.LiveEndpoint).Methods(http.MethodGet)
	router.HandleFunc("/ready", health.ReadyEndpoint).Methods(http.MethodGet)
	router.Use(h.loggingMiddleware)

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	})

	h.srv = &http.Server{
		Addr:              cfg.HTTPAddress,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return h
}

// Handler returns the fully wrapped router, for httptest.
func (h *HTTPServer) Handler() http.Handler {
	return h.srv.Handler
}

// Start listens until Shutdown; http.ErrServerClosed is not an error.
func (h *HTTPServer) Start() error {
	if err := h.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http gateway: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests.
func (h *HTTPServer) Shutdown(ctx context.Context) error {
	return h.srv.Shutdown(ctx)
}

func (h *HTTPServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	fields, err := decodeObject(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, SafeScoreFields(err))
		return
	}

	res, err := h.detector.Predict(r.Context(), fields)
	if err != nil {
		writeJSON(w, statusFor(err), SafeScoreFields(errors.New(utils.Message(err))))
		return
	}
	writeJSON(w, http.StatusOK, ScoreFields(res))
}

func (h *HTTPServer) handleRetrain(w http.ResponseWriter, r *http.Request) {
	res, err := h.detector.RetrainModel(r.Context())
	if err != nil {
		writeJSON(w, statusFor(err), map[string]any{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, RetrainFields(res))
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"model_loaded": h.detector.IsModelReady(),
	})
}

func (h *HTTPServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		h.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rec.status),
			slog.Duration("took", time.Since(start)),
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// decodeObject reads a JSON object, keeping numbers as json.Number.
func decodeObject(body io.Reader) (map[string]any, error) {
	dec := json.NewDecoder(io.LimitReader(body, maxBodyBytes))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, &FeatureError{Reason: "request body must be a JSON object"}
	}
	if fields == nil {
		return nil, &FeatureError{Reason: "request body must be a JSON object"}
	}
	return fields, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, utils.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, utils.ErrModelNotReady):
		return http.StatusServiceUnavailable
	case errors.Is(err, utils.ErrThrottled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
