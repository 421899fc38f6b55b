package synth

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miradorstack/anomaly-engine/internal/models"
)

func meanStd(values []float64) (float64, float64) {
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))

	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values))
	return mean, math.Sqrt(variance)
}

func TestGenerateIsDeterministic(t *testing.T) {
	first, err := Generate(42, DefaultSize)
	require.NoError(t, err)
	second, err := Generate(42, DefaultSize)
	require.NoError(t, err)

	require.Len(t, first, DefaultSize)
	assert.Equal(t, first, second)

	other, err := Generate(7, DefaultSize)
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestGenerateMomentsMatchSynthesisFormula(t *testing.T) {
	set, err := Generate(42, DefaultSize)
	require.NoError(t, err)

	// Var(load) = (0.6-0.3)^2 / 12.
	loadVar := (LoadMax - LoadMin) * (LoadMax - LoadMin) / 12
	cases := []struct {
		feature models.Feature
		mean    float64
		std     float64
		meanTol float64
		stdTol  float64
	}{
		{models.FeatureCPU, 45, math.Sqrt(CPUScale*CPUScale*loadVar + CPUNoise*CPUNoise), 1.5, 1.0},
		{models.FeatureMemory, 45, math.Sqrt(MemoryScale*MemoryScale*loadVar + MemoryNoise*MemoryNoise), 1.8, 1.2},
		{models.FeatureNetwork, 225, math.Sqrt(NetworkScale*NetworkScale*loadVar + NetworkNoise*NetworkNoise), 8, 5},
	}

	for _, tc := range cases {
		t.Run(tc.feature.String(), func(t *testing.T) {
			mean, std := meanStd(set.Column(tc.feature))
			assert.InDelta(t, tc.mean, mean, tc.meanTol)
			assert.InDelta(t, tc.std, std, tc.stdTol)
		})
	}
}

func TestGenerateSignalsAreCorrelated(t *testing.T) {
	set, err := Generate(42, DefaultSize)
	require.NoError(t, err)

	cpu := set.Column(models.FeatureCPU)
	network := set.Column(models.FeatureNetwork)
	cpuMean, cpuStd := meanStd(cpu)
	netMean, netStd := meanStd(network)

	cov := 0.0
	for i := range cpu {
		cov += (cpu[i] - cpuMean) * (network[i] - netMean)
	}
	cov /= float64(len(cpu))

	assert.Greater(t, cov/(cpuStd*netStd), 0.6)
}

func TestGenerateClipsToValidRange(t *testing.T) {
	set, err := Generate(1, 5000)
	require.NoError(t, err)
	for _, v := range set {
		assert.GreaterOrEqual(t, v.CPU(), 0.0)
		assert.LessOrEqual(t, v.CPU(), CPUMax)
		assert.GreaterOrEqual(t, v.Memory(), 0.0)
		assert.LessOrEqual(t, v.Memory(), MemoryMax)
		assert.GreaterOrEqual(t, v.Network(), 0.0)
		assert.LessOrEqual(t, v.Network(), NetworkMax)
	}
}

func TestGenerateRejectsEmptySize(t *testing.T) {
	_, err := Generate(42, 0)
	require.Error(t, err)
}
