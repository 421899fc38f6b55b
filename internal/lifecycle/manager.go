// Package lifecycle owns the single serving isolation forest: loading it from
// persistence, training it when none is usable, and replacing it on demand.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/miradorstack/anomaly-engine/internal/engine"
	"github.com/miradorstack/anomaly-engine/internal/metrics"
	"github.com/miradorstack/anomaly-engine/internal/models"
	"github.com/miradorstack/anomaly-engine/internal/repo"
	"github.com/miradorstack/anomaly-engine/internal/synth"
	"github.com/miradorstack/anomaly-engine/internal/utils"
)

// State is the lifecycle stage of the serving model.
type State int32

const (
	StateUnloaded State = iota
	StateLoaded
	StateTrained
	StateRetraining
)

func (s State) String() string {
	switch s {
	case StateLoaded:
		return "loaded"
	case StateTrained:
		return "trained"
	case StateRetraining:
		return "retraining"
	default:
		return "unloaded"
	}
}

// ErrModelNotReady is returned by Score before any model has been installed.
var ErrModelNotReady = utils.ErrModelNotReady

// persistTimeout bounds store writes after a retrain, which run detached from
// the caller's cancellation.
const persistTimeout = 30 * time.Second

// Trainer produces a calibrated ensemble for seed.
type Trainer func(ctx context.Context, seed int64) (*engine.Ensemble, error)

// Config controls how the manager trains.
type Config struct {
	Params       engine.Params
	TrainingSize int
	RotateSeed   bool
}

// Option customises a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithStores sets the persistence chain. The first store is authoritative;
// later ones are mirrors consulted in order when it has nothing usable.
func WithStores(stores ...repo.ModelStore) Option {
	return func(m *Manager) {
		m.stores = append(m.stores[:0], stores...)
	}
}

// WithTrainer replaces synthetic-data training, mainly for tests.
func WithTrainer(trainer Trainer) Option {
	return func(m *Manager) {
		if trainer != nil {
			m.trainer = trainer
		}
	}
}

// Manager holds exactly one current ensemble and swaps it atomically.
type Manager struct {
	cfg     Config
	logger  *slog.Logger
	stores  []repo.ModelStore
	trainer Trainer

	current atomic.Pointer[engine.Ensemble]
	state   atomic.Int32
	flight  singleflight.Group

	seedMu  sync.Mutex
	seedRng *rand.Rand

	listenersMu sync.RWMutex
	listeners   []func(*engine.Ensemble)
}

// New constructs a Manager in StateUnloaded.
func New(cfg Config, opts ...Option) *Manager {
	if cfg.TrainingSize <= 0 {
		cfg.TrainingSize = synth.DefaultSize
	}
	if cfg.Params.NumTrees <= 0 {
		cfg.Params = engine.DefaultParams(cfg.Params.Seed)
	}
	m := &Manager{
		cfg:     cfg,
		logger:  slog.Default(),
		seedRng: synth.NewRand(cfg.Params.Seed),
	}
	m.trainer = m.trainSynthetic
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OnModelChange registers fn to run after every model swap.
func (m *Manager) OnModelChange(fn func(*engine.Ensemble)) {
	m.listenersMu.Lock()
	m.listeners = append(m.listeners, fn)
	m.listenersMu.Unlock()
}

// LoadOrTrain installs the first valid persisted model, or trains and persists
// a new one. It only succeeds with a current model in place.
func (m *Manager) LoadOrTrain(ctx context.Context) (*engine.Ensemble, error) {
	for i, store := range m.stores {
		ens, payload, ok := m.loadFrom(ctx, store)
		if !ok {
			continue
		}
		m.install(ens, StateLoaded)
		m.logger.Info("model loaded",
			slog.String("store", store.Name()),
			slog.String("model_id", ens.ID),
			slog.Float64("threshold", ens.Threshold),
		)
		if i > 0 {
			// backfill the stores that came up empty
			_ = m.save(ctx, payload, m.stores[:i])
		}
		return ens, nil
	}

	start := time.Now()
	ens, err := m.trainer(ctx, m.cfg.Params.Seed)
	if err != nil {
		return nil, utils.NewKindError(utils.ErrTraining, "lifecycle.LoadOrTrain", "initial training failed", err)
	}
	m.logger.Info("model trained",
		slog.String("model_id", ens.ID),
		slog.Int64("seed", ens.Seed),
		slog.Float64("threshold", ens.Threshold),
		slog.Duration("took", time.Since(start)),
	)
	_ = m.Persist(ctx, ens)
	m.install(ens, StateTrained)
	return ens, nil
}

func (m *Manager) loadFrom(ctx context.Context, store repo.ModelStore) (*engine.Ensemble, []byte, bool) {
	logger := m.logger.With(slog.String("store", store.Name()))

	payload, err := store.Load(ctx)
	if err != nil {
		if errors.Is(err, repo.ErrModelNotFound) {
			logger.Debug("no persisted model")
		} else {
			logger.Warn("failed to read persisted model", slog.Any("error", err))
		}
		return nil, nil, false
	}

	ens, err := repo.DecodeEnsemble(payload)
	if err != nil {
		logger.Warn("discarding invalid persisted model", slog.Any("error", err))
		if p, ok := store.(interface{ Purge(context.Context) error }); ok {
			if err := p.Purge(ctx); err != nil {
				logger.Warn("failed to purge invalid model", slog.Any("error", err))
			}
		}
		return nil, nil, false
	}
	return ens, payload, true
}

// Persist writes ens to every configured store. Failures are logged and
// counted; the returned error joins them for callers that care.
func (m *Manager) Persist(ctx context.Context, ens *engine.Ensemble) error {
	payload, err := repo.EncodeEnsemble(ens)
	if err != nil {
		m.logger.Error("failed to encode model", slog.Any("error", err))
		return utils.NewAppError("lifecycle.Persist", "encode model", err)
	}
	return m.save(ctx, payload, m.stores)
}

func (m *Manager) save(ctx context.Context, payload []byte, stores []repo.ModelStore) error {
	var errs []error
	for _, store := range stores {
		if err := store.Save(ctx, payload); err != nil {
			metrics.ObservePersistFailure(store.Name())
			m.logger.Warn("failed to persist model", slog.String("store", store.Name()), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Retrain regenerates the training set, rebuilds, persists and swaps the
// model. Concurrent callers share one run, which outlives any one caller's
// cancellation. On failure the previous model and state are kept.
func (m *Manager) Retrain(ctx context.Context) (*engine.Ensemble, error) {
	runCtx := context.WithoutCancel(ctx)
	v, err, shared := m.flight.Do("retrain", func() (any, error) {
		return m.retrain(runCtx)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		m.logger.Debug("joined in-flight retrain")
	}
	return v.(*engine.Ensemble), nil
}

func (m *Manager) retrain(ctx context.Context) (*engine.Ensemble, error) {
	previous := State(m.state.Swap(int32(StateRetraining)))
	start := time.Now()
	seed := m.nextSeed()

	ens, err := m.trainer(ctx, seed)
	if err != nil {
		m.state.Store(int32(previous))
		metrics.ObserveRetrain(time.Since(start), metrics.OutcomeError)
		m.logger.Error("retrain failed, keeping previous model",
			slog.Int64("seed", seed),
			slog.String("state", previous.String()),
			slog.Any("error", err),
		)
		return nil, utils.NewKindError(utils.ErrTraining, "lifecycle.Retrain", "retrain failed", err)
	}

	persistCtx, cancel := context.WithTimeout(ctx, persistTimeout)
	_ = m.Persist(persistCtx, ens)
	cancel()
	m.install(ens, StateTrained)
	metrics.ObserveRetrain(time.Since(start), metrics.OutcomeSuccess)
	m.logger.Info("model retrained",
		slog.String("model_id", ens.ID),
		slog.Int64("seed", seed),
		slog.Float64("threshold", ens.Threshold),
		slog.Duration("took", time.Since(start)),
	)
	return ens, nil
}

func (m *Manager) nextSeed() int64 {
	if !m.cfg.RotateSeed {
		return m.cfg.Params.Seed
	}
	m.seedMu.Lock()
	defer m.seedMu.Unlock()
	return m.seedRng.Int64()
}

func (m *Manager) install(ens *engine.Ensemble, state State) {
	m.current.Store(ens)
	m.state.Store(int32(state))
	metrics.SetModel(true, ens.Threshold)

	m.listenersMu.RLock()
	defer m.listenersMu.RUnlock()
	for _, fn := range m.listeners {
		fn(ens)
	}
}

func (m *Manager) trainSynthetic(_ context.Context, seed int64) (*engine.Ensemble, error) {
	set, err := synth.Generate(seed, m.cfg.TrainingSize)
	if err != nil {
		return nil, err
	}
	params := m.cfg.Params
	params.Seed = seed
	return engine.Train(set, params)
}

// Current returns the serving ensemble, or nil before one is installed.
func (m *Manager) Current() *engine.Ensemble {
	return m.current.Load()
}

// IsModelReady reports whether a model is serving.
func (m *Manager) IsModelReady() bool {
	return m.current.Load() != nil
}

// State reports the lifecycle stage.
func (m *Manager) State() State {
	return State(m.state.Load())
}

// Score evaluates v against one consistent snapshot of the current model.
func (m *Manager) Score(v models.FeatureVector) (models.ScoreResult, error) {
	ens := m.current.Load()
	if ens == nil {
		return models.SafeScoreResult(), utils.NewKindError(utils.ErrModelNotReady, "lifecycle.Score", "model not ready", nil)
	}
	if err := v.Validate(); err != nil {
		return models.SafeScoreResult(), utils.NewKindError(utils.ErrInvalidInput, "lifecycle.Score", "invalid feature vector", err)
	}
	return ens.Normalize(v), nil
}
