package models

import "time"

// RetrainResult reports the outcome of an on-demand retrain.
type RetrainResult struct {
	Success   bool
	Message   string
	ModelID   string
	Threshold float64
	TrainedAt time.Time
}
