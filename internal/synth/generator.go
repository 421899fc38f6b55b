// Package synth produces the synthetic baseline the isolation forest learns
// "normal" resource usage from.
package synth

import (
	"fmt"
	"math/rand/v2"

	"github.com/miradorstack/anomaly-engine/internal/models"
)

// DefaultSize is the number of samples in a training set.
const DefaultSize = 1000

// Synthesis constants. Every sample shares one load factor across its three
// signals so that cpu, memory and network are positively correlated.
const (
	LoadMin = 0.3
	LoadMax = 0.6

	CPUScale     = 100.0
	MemoryScale  = 100.0
	NetworkScale = 500.0

	CPUNoise     = 5.0
	MemoryNoise  = 8.0
	NetworkNoise = 30.0

	CPUMax     = 100.0
	MemoryMax  = 100.0
	NetworkMax = 1000.0
)

// TrainingSet is an ordered, read-only collection of baseline samples.
type TrainingSet []models.FeatureVector

// Generate returns size samples drawn from the baseline distribution. The
// output depends only on seed and size.
func Generate(seed int64, size int) (TrainingSet, error) {
	if size <= 0 {
		return nil, fmt.Errorf("training set size must be positive, got %d", size)
	}

	rng := NewRand(seed)
	set := make(TrainingSet, size)
	for i := range set {
		load := LoadMin + rng.Float64()*(LoadMax-LoadMin)
		cpu := load*CPUScale + rng.NormFloat64()*CPUNoise
		memory := load*MemoryScale + rng.NormFloat64()*MemoryNoise
		network := load*NetworkScale + rng.NormFloat64()*NetworkNoise

		set[i] = models.NewFeatureVector(
			clip(cpu, 0, CPUMax),
			clip(memory, 0, MemoryMax),
			clip(network, 0, NetworkMax),
		)
	}
	return set, nil
}

// NewRand returns the PCG source used for every seeded draw in the engine.
func NewRand(seed int64) *rand.Rand {
	s := uint64(seed)
	return rand.New(rand.NewPCG(s, s^0x9e3779b97f4a7c15))
}

// Column copies one feature out of every sample.
func (s TrainingSet) Column(f models.Feature) []float64 {
	out := make([]float64, len(s))
	for i, v := range s {
		out[i] = v[f]
	}
	return out
}

func clip(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
