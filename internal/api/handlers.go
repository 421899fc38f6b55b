package api

import (
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/anomaly-engine/internal/models"
)

// FromProtoScoreRequest maps a gRPC score request into a feature vector.
func FromProtoScoreRequest(req *structpb.Struct) (models.FeatureVector, error) {
	if req == nil {
		return models.FeatureVector{}, &FeatureError{Reason: "request is nil"}
	}
	return ParseFeatures(req.AsMap())
}

// ScoreFields is the wire shape of a score response, shared by gRPC and HTTP.
func ScoreFields(res models.ScoreResult) map[string]any {
	return map[string]any{
		"anomaly":       res.IsAnomaly,
		"score":         res.NormalizedScore,
		"raw_score":     res.RawScore,
		"anomaly_score": res.AnomalyScore,
		"threshold":     res.Threshold,
		"severity":      string(res.Severity),
		"model_id":      res.ModelID,
	}
}

// SafeScoreFields is the default body returned with a malformed request.
func SafeScoreFields(err error) map[string]any {
	return map[string]any{
		"anomaly": false,
		"score":   0.0,
		"error":   err.Error(),
	}
}

// RetrainFields is the wire shape of a retrain response.
func RetrainFields(res models.RetrainResult) map[string]any {
	fields := map[string]any{
		"success": res.Success,
		"message": res.Message,
	}
	if res.ModelID != "" {
		fields["model_id"] = res.ModelID
		fields["threshold"] = res.Threshold
		fields["trained_at"] = res.TrainedAt.UTC().Format(time.RFC3339)
	}
	return fields
}

// ToProtoScoreResult converts a domain result into the gRPC representation.
func ToProtoScoreResult(res models.ScoreResult) *structpb.Struct {
	return mustStruct(ScoreFields(res))
}

// ToProtoSafeScore builds the default response attached to FailedPrecondition.
func ToProtoSafeScore(err error) *structpb.Struct {
	return mustStruct(SafeScoreFields(err))
}

// ToProtoRetrainResult converts a retrain outcome into the gRPC representation.
func ToProtoRetrainResult(res models.RetrainResult) *structpb.Struct {
	return mustStruct(RetrainFields(res))
}

// mustStruct only receives the scalar maps built above, which structpb always accepts.
func mustStruct(fields map[string]any) *structpb.Struct {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		panic(err)
	}
	return s
}
