package engine

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/anomaly-engine/internal/models"
	"github.com/miradorstack/anomaly-engine/internal/synth"
)

const (
	// DefaultNumTrees is the ensemble size.
	DefaultNumTrees = 100
	// DefaultSubsampleSize caps the number of points each tree is grown on.
	DefaultSubsampleSize = 256
	// DefaultContamination is the expected anomalous fraction of the baseline.
	DefaultContamination = 0.1

	eulerGamma = 0.5772156649
)

// ErrEmptyTrainingSet is returned when Build is handed no samples.
var ErrEmptyTrainingSet = errors.New("training set is empty")

// Params controls ensemble construction.
type Params struct {
	NumTrees int
	// SubsampleSize is clamped to the training set size; zero means DefaultSubsampleSize.
	SubsampleSize int
	Contamination float64
	Seed          int64
	// Workers bounds concurrent tree construction; zero means GOMAXPROCS.
	Workers int
}

// DefaultParams mirrors the reference model: 100 trees, 256-point subsamples, 10% contamination.
func DefaultParams(seed int64) Params {
	return Params{
		NumTrees:      DefaultNumTrees,
		SubsampleSize: DefaultSubsampleSize,
		Contamination: DefaultContamination,
		Seed:          seed,
	}
}

// Ensemble is an immutable, trained isolation forest.
type Ensemble struct {
	ID            string    `json:"id"`
	Trees         []Tree    `json:"trees"`
	SubsampleSize int       `json:"subsample_size"`
	Normalization float64   `json:"normalization"`
	Threshold     float64   `json:"threshold"`
	Contamination float64   `json:"contamination"`
	Seed          int64     `json:"seed"`
	TrainedAt     time.Time `json:"trained_at"`
}

// AveragePathLength computes c(n), the expected path length of an unsuccessful
// search in a binary search tree holding n items.
func AveragePathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+eulerGamma) - 2*(fn-1)/fn
}

// MaxDepth is the height limit ceil(log2(subsampleSize)).
func MaxDepth(subsampleSize int) int {
	if subsampleSize <= 1 {
		return 0
	}
	return int(math.Ceil(math.Log2(float64(subsampleSize))))
}

// Build grows params.NumTrees isolation trees over random subsamples of set.
// The returned ensemble has no decision threshold; see Train and Calibrate.
func Build(set synth.TrainingSet, params Params) (*Ensemble, error) {
	if len(set) == 0 {
		return nil, ErrEmptyTrainingSet
	}
	if params.NumTrees <= 0 {
		return nil, fmt.Errorf("number of trees must be positive, got %d", params.NumTrees)
	}
	for i, v := range set {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("training sample %d: %w", i, err)
		}
	}

	subsample := params.SubsampleSize
	if subsample <= 0 {
		subsample = DefaultSubsampleSize
	}
	if subsample > len(set) {
		subsample = len(set)
	}
	maxDepth := MaxDepth(subsample)

	// Per-tree seeds are drawn up front so the forest does not depend on
	// goroutine scheduling.
	master := synth.NewRand(params.Seed)
	seeds := make([][2]uint64, params.NumTrees)
	for i := range seeds {
		seeds[i] = [2]uint64{master.Uint64(), master.Uint64()}
	}

	workers := params.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	trees := make([]Tree, params.NumTrees)
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range trees {
		g.Go(func() error {
			rng := rand.New(rand.NewPCG(seeds[i][0], seeds[i][1]))
			trees[i] = growTree(set, subsample, maxDepth, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Ensemble{
		ID:            uuid.NewString(),
		Trees:         trees,
		SubsampleSize: subsample,
		Normalization: AveragePathLength(subsample),
		Contamination: params.Contamination,
		Seed:          params.Seed,
		TrainedAt:     time.Now().UTC(),
	}, nil
}

// Train builds the ensemble and calibrates its decision threshold against the
// same training set.
func Train(set synth.TrainingSet, params Params) (*Ensemble, error) {
	ens, err := Build(set, params)
	if err != nil {
		return nil, err
	}
	threshold, err := Calibrate(ens, set, params.Contamination)
	if err != nil {
		return nil, err
	}
	ens.Threshold = threshold
	return ens, nil
}

// AveragePathLength returns the mean adjusted path length of v across all trees.
func (e *Ensemble) AveragePathLength(v models.FeatureVector) float64 {
	if len(e.Trees) == 0 {
		return 0
	}
	total := 0.0
	for i := range e.Trees {
		total += e.Trees[i].PathLength(v)
	}
	return total / float64(len(e.Trees))
}

// Validate checks structural soundness, typically after decoding.
func (e *Ensemble) Validate() error {
	if e == nil {
		return errors.New("ensemble is nil")
	}
	if len(e.Trees) == 0 {
		return errors.New("ensemble has no trees")
	}
	if e.SubsampleSize <= 0 {
		return fmt.Errorf("invalid subsample size %d", e.SubsampleSize)
	}
	if math.IsNaN(e.Normalization) || math.IsNaN(e.Threshold) {
		return errors.New("ensemble constants are not numbers")
	}
	for i := range e.Trees {
		if err := e.Trees[i].Validate(); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
