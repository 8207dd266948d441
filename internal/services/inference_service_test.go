package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erosion-platform/internal/ml"
	"erosion-platform/internal/models"
	"erosion-platform/internal/repository"
)

func TestPredictRateFallbackWithoutModel(t *testing.T) {
	repo := newFakeRepo()
	svc := NewInferenceService(repo, clockwork.NewFakeClock(), testLogger, testMetrics)

	zone := stageZone(t, repo)

	result, err := svc.PredictRate(context.Background(), zone.ID, 0)
	require.NoError(t, err)

	assert.True(t, result.Fallback)
	assert.Equal(t, "fallback", result.ModelUsed)
	assert.Equal(t, "no_active_model", result.FallbackReason)
	assert.Equal(t, DefaultHorizonDays, result.HorizonDays)
	assert.InDelta(t, 0.1, result.RatePerYearM, 1e-9)
	assert.InDelta(t, 0.1*30.0/365.0, result.ProjectedLossM, 1e-9)
	assert.InDelta(t, 0.05, result.Interval[0], 1e-9)
	assert.InDelta(t, 0.15, result.Interval[1], 1e-9)
	assert.InDelta(t, 50.0, result.ConfidencePct, 1e-9)
}

func TestPredictRateFallbackOnCorruptModel(t *testing.T) {
	repo := newFakeRepo()
	svc := NewInferenceService(repo, clockwork.NewFakeClock(), testLogger, testMetrics)

	zone := stageZone(t, repo)

	artifact := &models.ModelArtifact{
		Name:         "erosion_rate_random_forest",
		Version:      "broken",
		Algorithm:    models.AlgorithmRandomForest,
		FeatureNames: ml.FeatureNames(),
		Parameters:   json.RawMessage(`{"trees":[]}`),
	}
	require.NoError(t, repo.InsertModelArtifact(context.Background(), artifact))
	require.NoError(t, repo.ActivateModel(context.Background(), artifact.ID))

	result, err := svc.PredictRate(context.Background(), zone.ID, 0)
	require.NoError(t, err)
	assert.True(t, result.Fallback)
	assert.Equal(t, "model_load_failure", result.FallbackReason)
}

func TestPredictRateUnknownZone(t *testing.T) {
	repo := newFakeRepo()
	svc := NewInferenceService(repo, clockwork.NewFakeClock(), testLogger, testMetrics)

	_, err := svc.PredictRate(context.Background(), 42, 30)
	var nf *repository.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestPredictRateWithActiveModel(t *testing.T) {
	repo := newFakeRepo()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))

	// train for real through the training service
	stageTrainingData(t, repo, 5, 8)
	trainSvc := NewTrainingService(repo, clock, testLogger, testMetrics)
	report, err := trainSvc.TrainAndActivate(context.Background())
	require.NoError(t, err)

	svc := NewInferenceService(repo, clock, testLogger, testMetrics)

	var zoneID int64
	for id := range repo.zones {
		zoneID = id
		break
	}

	result, err := svc.PredictRate(context.Background(), zoneID, 90)
	require.NoError(t, err)

	assert.False(t, result.Fallback)
	assert.NotEqual(t, "fallback", result.ModelUsed)
	assert.Equal(t, 90, result.HorizonDays)
	assert.InDelta(t, result.RatePerYearM*90.0/365.0, result.ProjectedLossM, 1e-9)
	assert.LessOrEqual(t, result.Interval[0], result.RatePerYearM)
	assert.GreaterOrEqual(t, result.Interval[1], result.RatePerYearM)

	// usage counter ticks on the active artifact
	active, err := repo.GetActiveModel(context.Background())
	require.NoError(t, err)
	assert.Equal(t, report.ActivatedID, active.ID)
	assert.Equal(t, int64(1), active.PredictionCount)
}
