package models

import (
	"fmt"
	"math"
)

// Feature indexes into a FeatureVector.
type Feature int

const (
	FeatureCPU Feature = iota
	FeatureMemory
	FeatureNetwork

	// NumFeatures is the dimensionality of every FeatureVector.
	NumFeatures = 3
)

func (f Feature) String() string {
	switch f {
	case FeatureCPU:
		return "cpu_usage"
	case FeatureMemory:
		return "memory_usage"
	case FeatureNetwork:
		return "network_usage"
	default:
		return fmt.Sprintf("feature(%d)", int(f))
	}
}

// FeatureVector is an ordered (cpu, memory, network) usage triple.
type FeatureVector [NumFeatures]float64

// NewFeatureVector builds a vector from individual usage readings.
func NewFeatureVector(cpu, memory, network float64) FeatureVector {
	return FeatureVector{cpu, memory, network}
}

// CPU returns the cpu usage component.
func (v FeatureVector) CPU() float64 { return v[FeatureCPU] }

// Memory returns the memory usage component.
func (v FeatureVector) Memory() float64 { return v[FeatureMemory] }

// Network returns the network usage component.
func (v FeatureVector) Network() float64 { return v[FeatureNetwork] }

// Validate rejects NaN and infinite components.
func (v FeatureVector) Validate() error {
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%s must be a finite number, got %v", Feature(i), x)
		}
	}
	return nil
}
