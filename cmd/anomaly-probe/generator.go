package main

import (
	"math"
	"math/rand/v2"

	"github.com/miradorstack/anomaly-engine/internal/models"
	"github.com/miradorstack/anomaly-engine/internal/synth"
)

// spikeChance is the probability that a sample carries an injected load spike.
const spikeChance = 0.15

// generator produces live-looking usage samples: the baseline band of the
// training data plus occasional spikes of up to 40% extra load.
type generator struct {
	rng *rand.Rand
}

func newGenerator(seed int64) *generator {
	return &generator{rng: synth.NewRand(seed)}
}

func (g *generator) next() (models.FeatureVector, bool) {
	load := synth.LoadMin + g.rng.Float64()*(synth.LoadMax-synth.LoadMin)
	spike := 0.0
	if g.rng.Float64() < spikeChance {
		spike = g.rng.Float64() * 0.4
	}

	cpu := math.Min(synth.CPUMax, (load+spike)*100+g.rng.Float64()*10)
	memory := math.Min(synth.MemoryMax, (load+spike*0.8)*100+g.rng.Float64()*15)
	network := math.Min(synth.NetworkMax, (load+spike)*500+g.rng.Float64()*50)
	return models.NewFeatureVector(cpu, memory, network), spike > 0
}
