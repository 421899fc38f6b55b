package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/miradorstack/anomaly-engine/internal/models"
	"github.com/miradorstack/anomaly-engine/internal/utils"
)

// ErrInvalidFeatures marks a request whose features cannot be scored.
var ErrInvalidFeatures = fmt.Errorf("invalid features: %w", utils.ErrInvalidInput)

// FeatureError names the offending field of a malformed request.
type FeatureError struct {
	Field  string
	Reason string
}

func (e *FeatureError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *FeatureError) Unwrap() error { return ErrInvalidFeatures }

// ParseFeatures extracts cpu_usage, memory_usage and network_usage from a
// decoded request body. Missing fields default to 0; numbers and numeric
// strings are accepted; everything else, including null and non-finite
// values, is rejected.
func ParseFeatures(fields map[string]any) (models.FeatureVector, error) {
	var v models.FeatureVector
	if fields == nil {
		return v, &FeatureError{Reason: "request body must be a JSON object"}
	}
	for f := models.FeatureCPU; f < models.NumFeatures; f++ {
		raw, ok := fields[f.String()]
		if !ok {
			continue
		}
		x, err := toFloat(raw)
		if err != nil {
			return models.FeatureVector{}, &FeatureError{Field: f.String(), Reason: err.Error()}
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return models.FeatureVector{}, &FeatureError{Field: f.String(), Reason: "must be finite"}
		}
		v[f] = x
	}
	return v, nil
}

func toFloat(raw any) (float64, error) {
	switch x := raw.(type) {
	case nil:
		return 0, errors.New("must not be null")
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case json.Number:
		return parseNumeric(x.String())
	case string:
		return parseNumeric(x)
	default:
		return 0, fmt.Errorf("must be a number, got %T", raw)
	}
}

func parseNumeric(s string) (float64, error) {
	x, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", s)
	}
	return x, nil
}
