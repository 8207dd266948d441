package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonboulle/clockwork"

	"erosion-platform/internal/ml"
	"erosion-platform/internal/models"
	"erosion-platform/internal/repository"
	"erosion-platform/pkg/logging"
	"erosion-platform/pkg/metrics"
)

// Fallback values returned when no model can serve a request.
const (
	fallbackRate       = 0.1
	fallbackLow        = 0.05
	fallbackHigh       = 0.15
	fallbackConfidence = 50.0
)

// Horizon bounds for served predictions, in days.
const (
	DefaultHorizonDays = 30
	MaxHorizonDays     = 365
)

// InferenceService serves erosion-rate predictions from the active model
type InferenceService struct {
	repo    repository.ErosionRepository
	clock   clockwork.Clock
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewInferenceService creates a new inference service
func NewInferenceService(
	repo repository.ErosionRepository,
	clock clockwork.Clock,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *InferenceService {
	return &InferenceService{
		repo:    repo,
		clock:   clock,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// InferenceResult is one served erosion-rate prediction
type InferenceResult struct {
	ZoneID         int64      `json:"zone_id"`
	HorizonDays    int        `json:"horizon_days"`
	RatePerYearM   float64    `json:"rate_per_year_m"`
	ProjectedLossM float64    `json:"projected_loss_m"`
	Interval       [2]float64 `json:"interval"`
	ConfidencePct  float64    `json:"confidence_pct"`
	ModelUsed      string     `json:"model_used"`
	Fallback       bool       `json:"fallback"`
	FallbackReason string     `json:"fallback_reason,omitempty"`
}

// PredictRate predicts the erosion rate for a zone over the given
// horizon using the active model. Any failure along the way degrades
// to the fallback answer instead of an error.
func (s *InferenceService) PredictRate(ctx context.Context, zoneID int64, horizonDays int) (*InferenceResult, error) {
	if horizonDays <= 0 || horizonDays > MaxHorizonDays {
		horizonDays = DefaultHorizonDays
	}

	zone, err := s.repo.GetZone(ctx, zoneID)
	if err != nil {
		return nil, err
	}

	artifact, err := s.repo.GetActiveModel(ctx)
	if err != nil {
		var nf *repository.NotFoundError
		if errors.As(err, &nf) {
			err = fmt.Errorf("%w: %v", ml.ErrNoActiveModel, err)
		}
		return s.fallback(ctx, zoneID, horizonDays, "no_active_model", err), nil
	}

	model, err := ml.UnmarshalArtifact(artifact)
	if err != nil {
		return s.fallback(ctx, zoneID, horizonDays, "model_load_failure", err), nil
	}

	vector, err := s.currentVector(ctx, zone)
	if err != nil {
		return s.fallback(ctx, zoneID, horizonDays, "feature_failure", err), nil
	}

	value, interval, confidence, err := model.Predict(vector)
	if err != nil {
		return s.fallback(ctx, zoneID, horizonDays, "predict_failure", err), nil
	}

	if err := s.repo.RecordModelUse(ctx, artifact.ID); err != nil {
		s.logger.Warn(ctx, "[INFER_USAGE_WARN] Failed to record model use", logging.Fields{
			"artifact_id": artifact.ID,
			"error":       err.Error(),
		})
	}

	return &InferenceResult{
		ZoneID:         zoneID,
		HorizonDays:    horizonDays,
		RatePerYearM:   value,
		ProjectedLossM: value * float64(horizonDays) / 365.0,
		Interval:       interval,
		ConfidencePct:  confidence,
		ModelUsed:      artifact.Name + "@" + artifact.Version,
	}, nil
}

func (s *InferenceService) fallback(ctx context.Context, zoneID int64, horizonDays int, reason string, cause error) *InferenceResult {
	s.metrics.RecordInferenceFallback(reason)
	s.logger.Warn(ctx, "[INFER_FALLBACK] Serving fallback prediction", logging.Fields{
		"zone_id": zoneID,
		"reason":  reason,
		"error":   cause.Error(),
	})

	return &InferenceResult{
		ZoneID:         zoneID,
		HorizonDays:    horizonDays,
		RatePerYearM:   fallbackRate,
		ProjectedLossM: fallbackRate * float64(horizonDays) / 365.0,
		Interval:       [2]float64{fallbackLow, fallbackHigh},
		ConfidencePct:  fallbackConfidence,
		ModelUsed:      "fallback",
		Fallback:       true,
		FallbackReason: reason,
	}
}

func (s *InferenceService) currentVector(ctx context.Context, zone *models.Zone) ([]float64, error) {
	now := s.clock.Now().UTC()

	means, err := s.repo.GetSensorMeans(ctx, zone.ID, now.Add(-featureWindow), now)
	if err != nil {
		return nil, err
	}

	env, err := s.repo.GetEnvironmentalBefore(ctx, zone.ID, now)
	if err != nil {
		return nil, err
	}

	return ml.BuildVector(ml.FeatureSource{
		Zone:          *zone,
		SensorMeans:   means,
		Environmental: env,
	})
}
