package models

// Severity grades a positive anomaly verdict.
type Severity string

const (
	SeverityNone   Severity = "none"
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ScoreResult is the per-request output of the scoring path.
type ScoreResult struct {
	IsAnomaly bool
	// NormalizedScore is sigmoid(mean path length), kept for output compatibility.
	NormalizedScore float64
	// RawScore is the negated mean path length.
	RawScore float64
	// AnomalyScore is the isolation-forest score 2^(-E[h(x)]/c(psi)) in (0,1).
	AnomalyScore float64
	// Threshold is the decision boundary AnomalyScore was compared against.
	Threshold float64
	Severity  Severity
	ModelID   string
}

// SafeScoreResult is returned alongside request-level errors.
func SafeScoreResult() ScoreResult {
	return ScoreResult{Severity: SeverityNone}
}
