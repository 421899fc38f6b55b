package engine

import (
	"fmt"
	"math"
	"sort"

	"github.com/miradorstack/anomaly-engine/internal/models"
	"github.com/miradorstack/anomaly-engine/internal/synth"
)

// AnomalyScore maps v to s = 2^(-E[h(v)]/c(psi)). Values near 1 are easy to
// isolate; values around 0.5 or below are typical.
func (e *Ensemble) AnomalyScore(v models.FeatureVector) float64 {
	return e.scoreFromPath(e.AveragePathLength(v))
}

func (e *Ensemble) scoreFromPath(pathLength float64) float64 {
	c := e.Normalization
	if c <= 0 {
		c = 1
	}
	return math.Pow(2, -pathLength/c)
}

// Normalize scores v and applies the calibrated decision threshold.
func (e *Ensemble) Normalize(v models.FeatureVector) models.ScoreResult {
	pathLength := e.AveragePathLength(v)
	s := e.scoreFromPath(pathLength)
	isAnomaly := s > e.Threshold

	return models.ScoreResult{
		IsAnomaly:       isAnomaly,
		NormalizedScore: sigmoid(pathLength),
		RawScore:        -pathLength,
		AnomalyScore:    s,
		Threshold:       e.Threshold,
		Severity:        severityFromScore(s, isAnomaly),
		ModelID:         e.ID,
	}
}

// Calibrate returns the (1 - contamination) quantile of the anomaly scores of
// set, so that roughly a contamination fraction of set scores above it.
func Calibrate(e *Ensemble, set synth.TrainingSet, contamination float64) (float64, error) {
	if len(set) == 0 {
		return 0, ErrEmptyTrainingSet
	}
	if contamination <= 0 || contamination >= 0.5 {
		return 0, fmt.Errorf("contamination must be in (0, 0.5), got %v", contamination)
	}

	scores := make([]float64, len(set))
	for i, v := range set {
		scores[i] = e.AnomalyScore(v)
	}
	sort.Float64s(scores)
	return quantile(scores, 1-contamination), nil
}

// FlaggedFraction reports the share of set the ensemble marks anomalous.
func FlaggedFraction(e *Ensemble, set synth.TrainingSet) float64 {
	if len(set) == 0 {
		return 0
	}
	flagged := 0
	for _, v := range set {
		if e.AnomalyScore(v) > e.Threshold {
			flagged++
		}
	}
	return float64(flagged) / float64(len(set))
}

// quantile interpolates linearly between closest ranks of an ascending slice.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lower := int(math.Floor(pos))
	upper := int(math.Ceil(pos))
	if upper >= len(sorted) {
		upper = len(sorted) - 1
	}
	frac := pos - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}

func severityFromScore(score float64, isAnomaly bool) models.Severity {
	switch {
	case !isAnomaly:
		return models.SeverityNone
	case score > 0.7:
		return models.SeverityHigh
	case score > 0.6:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}
