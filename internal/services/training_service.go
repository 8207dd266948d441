package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"erosion-platform/internal/ml"
	"erosion-platform/internal/models"
	"erosion-platform/internal/repository"
	"erosion-platform/pkg/logging"
	"erosion-platform/pkg/metrics"
)

// featureWindow is the sensor lookback used when assembling a feature
// vector for one history measurement.
const featureWindow = 7 * 24 * time.Hour

// TrainingService builds training sets and manages model artifacts
type TrainingService struct {
	repo    repository.ErosionRepository
	clock   clockwork.Clock
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewTrainingService creates a new training service
func NewTrainingService(
	repo repository.ErosionRepository,
	clock clockwork.Clock,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *TrainingService {
	return &TrainingService{
		repo:    repo,
		clock:   clock,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// TrainingReport summarizes one training run
type TrainingReport struct {
	Examples    int                     `json:"examples"`
	Candidates  []*models.ModelArtifact `json:"candidates"`
	ActivatedID int64                   `json:"activated_id"`
	Duration    time.Duration           `json:"-"`
}

// TrainAndActivate builds the training set, trains every candidate
// algorithm, persists the artifacts and activates the one with the
// best held-out R-squared.
func (s *TrainingService) TrainAndActivate(ctx context.Context) (*TrainingReport, error) {
	timer := s.metrics.NewTimer(s.metrics.TrainingDuration)
	defer timer.ObserveDuration()

	s.logger.Info(ctx, "[TRAIN_START] Model training starting", logging.Fields{
		"stage": "INITIALIZATION",
	})

	set, err := s.buildTrainingSet(ctx)
	if err != nil {
		s.metrics.TrainingRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	if set.Len() < ml.MinTrainingExamples {
		s.metrics.TrainingRunsTotal.WithLabelValues("skipped").Inc()
		s.logger.Warn(ctx, "[TRAIN_SKIP] Not enough labeled examples", logging.Fields{
			"examples": set.Len(),
			"required": ml.MinTrainingExamples,
		})
		return nil, fmt.Errorf("%w: have %d examples, need %d",
			ml.ErrInsufficientData, set.Len(), ml.MinTrainingExamples)
	}

	s.metrics.TrainingExamples.Observe(float64(set.Len()))

	train, test := set.Split()
	version := s.clock.Now().UTC().Format("20060102-150405")

	type candidate struct {
		algorithm models.ModelAlgorithm
		model     ml.Regressor
		fit       func() error
	}

	forest := ml.NewRandomForest(ml.TrainingSeed)
	linear := ml.NewLinearRegression()
	candidates := []candidate{
		{models.AlgorithmRandomForest, forest, func() error { return forest.Fit(train.X, train.Y) }},
		{models.AlgorithmLinearRegression, linear, func() error { return linear.Fit(train.X, train.Y) }},
	}

	report := &TrainingReport{Examples: set.Len()}
	var best *models.ModelArtifact

	for _, c := range candidates {
		if err := c.fit(); err != nil {
			s.logger.Error(ctx, "[TRAIN_FIT_ERROR] Candidate training failed", logging.Fields{
				"algorithm": c.algorithm,
			}, err)
			continue
		}

		ev, err := ml.Evaluate(c.model, test)
		if err != nil {
			s.logger.Error(ctx, "[TRAIN_EVAL_ERROR] Candidate evaluation failed", logging.Fields{
				"algorithm": c.algorithm,
			}, err)
			continue
		}

		params, err := ml.MarshalParameters(c.model)
		if err != nil {
			s.logger.Error(ctx, "[TRAIN_MARSHAL_ERROR] Candidate serialization failed", logging.Fields{
				"algorithm": c.algorithm,
			}, err)
			continue
		}

		artifact := &models.ModelArtifact{
			Name:         fmt.Sprintf("erosion_rate_%s", c.algorithm),
			Version:      version,
			Algorithm:    c.algorithm,
			FeatureNames: set.FeatureNames,
			R2:           ev.R2,
			MSE:          ev.MSE,
			Parameters:   params,
			CreatedAt:    s.clock.Now().UTC(),
		}
		if err := s.repo.InsertModelArtifact(ctx, artifact); err != nil {
			s.metrics.TrainingRunsTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		report.Candidates = append(report.Candidates, artifact)

		s.logger.Info(ctx, "[TRAIN_CANDIDATE] Candidate trained", logging.Fields{
			"algorithm": c.algorithm,
			"version":   version,
			"r2":        ev.R2,
			"mse":       ev.MSE,
		})

		if best == nil || artifact.R2 >= best.R2 {
			best = artifact
		}
	}

	if best == nil {
		s.metrics.TrainingRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("no candidate model could be trained")
	}

	if err := s.repo.ActivateModel(ctx, best.ID); err != nil {
		s.metrics.TrainingRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to activate model: %w", err)
	}
	report.ActivatedID = best.ID
	s.metrics.ActiveModelR2.Set(best.R2)
	s.metrics.TrainingRunsTotal.WithLabelValues("success").Inc()

	s.logger.Info(ctx, "[TRAIN_COMPLETE] Model training completed", logging.Fields{
		"examples":     set.Len(),
		"candidates":   len(report.Candidates),
		"activated_id": best.ID,
		"algorithm":    best.Algorithm,
		"r2":           best.R2,
		"stage":        "COMPLETE",
	})

	return report, nil
}

// buildTrainingSet pairs every erosion history measurement with the
// feature vector of its zone at measurement time.
func (s *TrainingService) buildTrainingSet(ctx context.Context) (*ml.TrainingSet, error) {
	zones, _, err := s.repo.ListZones(ctx, 10000, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list zones: %w", err)
	}

	set := &ml.TrainingSet{FeatureNames: ml.FeatureNames()}
	for _, zone := range zones {
		history, err := s.repo.ListHistory(ctx, zone.ID, 10000)
		if err != nil {
			return nil, fmt.Errorf("failed to list history for zone %d: %w", zone.ID, err)
		}

		for _, rec := range history {
			vector, err := s.vectorAt(ctx, zone, rec.MeasuredAt)
			if err != nil {
				s.logger.Warn(ctx, "[TRAIN_VECTOR_SKIP] Skipping unusable example", logging.Fields{
					"zone_id":   zone.ID,
					"record_id": rec.ID,
					"error":     err.Error(),
				})
				continue
			}
			set.X = append(set.X, vector)
			set.Y = append(set.Y, rec.RatePerYearM)
		}
	}

	return set, nil
}

// vectorAt assembles the feature vector of a zone as of a timestamp.
func (s *TrainingService) vectorAt(ctx context.Context, zone *models.Zone, at time.Time) ([]float64, error) {
	means, err := s.repo.GetSensorMeans(ctx, zone.ID, at.Add(-featureWindow), at)
	if err != nil {
		return nil, err
	}

	env, err := s.repo.GetEnvironmentalBefore(ctx, zone.ID, at)
	if err != nil {
		return nil, err
	}

	return ml.BuildVector(ml.FeatureSource{
		Zone:          *zone,
		SensorMeans:   means,
		Environmental: env,
	})
}
