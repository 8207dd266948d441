package services

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"erosion-platform/internal/fusion"
	"erosion-platform/internal/models"
	"erosion-platform/internal/repository"
)

func newAnalysisService(repo *fakeRepo, notifier *fakeNotifier, clock clockwork.Clock) *AnalysisService {
	return NewAnalysisService(repo, notifier, clock, testLogger, testMetrics)
}

func stageZone(t *testing.T, repo *fakeRepo) *models.Zone {
	t.Helper()
	zone := &models.Zone{
		Name:     "Pointe des Almadies",
		AreaKm2:  3.5,
		RiskTier: models.RiskHigh,
	}
	require.NoError(t, repo.CreateZone(context.Background(), zone))
	return zone
}

func TestAnalyzeEventHurricane(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	svc := newAnalysisService(repo, notifier, clock)

	zone := stageZone(t, repo)
	event := &models.ExternalEvent{
		ZoneID:     zone.ID,
		Kind:       models.EventHurricane,
		Intensity:  95,
		OccurredAt: clock.Now().Add(-time.Hour),
		Valid:      true,
	}
	require.NoError(t, repo.CreateExternalEvent(context.Background(), event))

	outcome, err := svc.AnalyzeEvent(context.Background(), event.ID)
	require.NoError(t, err)

	// hurricane at 95 with no sensors, context or history: event
	// component saturates, the rest sit at neutral
	assert.InDelta(t, 70.0, outcome.Fusion.Score, 1e-9)
	assert.InDelta(t, 0.731, outcome.Fusion.Probability, 0.001)
	assert.Equal(t, models.FusionComplete, outcome.Fusion.Status)
	require.NotNil(t, outcome.Fusion.EventID)
	assert.Equal(t, event.ID, *outcome.Fusion.EventID)
	assert.Contains(t, []string(outcome.Fusion.DominantFactors), "extreme hurricane event")

	require.NotNil(t, outcome.Prediction)
	assert.True(t, outcome.Prediction.ErosionPredicted)
	assert.Equal(t, models.RiskHigh, outcome.Prediction.RiskLevel)
	assert.InDelta(t, 2.1, outcome.Prediction.RatePerYearM, 1e-9)
	assert.Equal(t, 7, outcome.Prediction.HorizonDays)
	assert.Equal(t, models.ConfidenceMedium, outcome.Prediction.ConfidenceTier)

	require.Len(t, outcome.Alerts, 2)
	assert.Equal(t, models.AlertExtremeEvent, outcome.Alerts[0].Kind)
	assert.Equal(t, models.AlertErosionPredicted, outcome.Alerts[1].Kind)
	for _, alert := range outcome.Alerts {
		require.NotNil(t, alert.PredictionID)
		assert.Equal(t, outcome.Prediction.ID, *alert.PredictionID)
	}

	assert.Len(t, notifier.delivered, 2)
	assert.True(t, repo.events[event.ID].Processed)
}

func TestAnalyzeEventErrors(t *testing.T) {
	repo := newFakeRepo()
	svc := newAnalysisService(repo, &fakeNotifier{}, clockwork.NewFakeClock())

	t.Run("unknown event", func(t *testing.T) {
		_, err := svc.AnalyzeEvent(context.Background(), 999)
		var nf *repository.NotFoundError
		assert.ErrorAs(t, err, &nf)
	})

	t.Run("invalid event", func(t *testing.T) {
		zone := stageZone(t, repo)
		event := &models.ExternalEvent{
			ZoneID:     zone.ID,
			Kind:       models.EventStorm,
			Intensity:  50,
			OccurredAt: time.Now(),
			Valid:      false,
		}
		require.NoError(t, repo.CreateExternalEvent(context.Background(), event))

		_, err := svc.AnalyzeEvent(context.Background(), event.ID)
		assert.Error(t, err)
	})
}

func TestAnalyzeZoneQuiet(t *testing.T) {
	repo := newFakeRepo()
	notifier := &fakeNotifier{}
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	svc := newAnalysisService(repo, notifier, clock)

	zone := stageZone(t, repo)

	outcome, err := svc.AnalyzeZone(context.Background(), zone.ID, 2*time.Hour)
	require.NoError(t, err)

	// no data at all, every component defaults to neutral
	assert.InDelta(t, 50.0, outcome.Fusion.Score, 1e-9)
	assert.InDelta(t, 0.5, outcome.Fusion.Probability, 1e-9)
	assert.Nil(t, outcome.Fusion.EventID)
	assert.False(t, outcome.Prediction.ErosionPredicted)
	assert.Equal(t, models.RiskModerate, outcome.Prediction.RiskLevel)
	assert.Empty(t, outcome.Alerts)
	assert.Empty(t, notifier.delivered)

	// lookback window ends at the injected clock
	assert.Equal(t, clock.Now().UTC(), outcome.Fusion.PeriodEnd)
	assert.Equal(t, clock.Now().UTC().Add(-2*time.Hour), outcome.Fusion.PeriodStart)
}

func TestAnalyzeZoneWithSignals(t *testing.T) {
	repo := newFakeRepo()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	svc := newAnalysisService(repo, &fakeNotifier{}, clock)

	zone := stageZone(t, repo)

	// sustained high sea level and a fast-eroding history
	for i := 0; i < 6; i++ {
		ts := clock.Now().Add(-time.Duration(i+1) * 10 * time.Minute)
		repo.readings[zone.ID] = append(repo.readings[zone.ID], reading(models.SensorSeaLevel, 4.5, ts))
	}
	for i := 0; i < 4; i++ {
		repo.history[zone.ID] = append(repo.history[zone.ID], models.ErosionHistoryRecord{
			ZoneID:       zone.ID,
			RatePerYearM: 2.5,
		})
	}
	recent := clock.Now().Add(-30 * time.Minute)
	repo.contextEvs[zone.ID] = []models.ExternalEvent{
		{Intensity: 85, OccurredAt: recent},
		{Intensity: 75, OccurredAt: recent},
		{Intensity: 72, OccurredAt: recent},
	}

	outcome, err := svc.AnalyzeZone(context.Background(), zone.ID, 2*time.Hour)
	require.NoError(t, err)

	// event 50 (no trigger), sensors 90 (sea level 4.5*20 clamped),
	// context 60 (three severe), history 80
	assert.InDelta(t, 67.0, outcome.Fusion.Score, 1e-9)
	assert.True(t, outcome.Prediction.ErosionPredicted)
	assert.Equal(t, models.RiskHigh, outcome.Prediction.RiskLevel)
	assert.Equal(t, 6, outcome.Fusion.ReadingCount)
	assert.Equal(t, 3, outcome.Fusion.EventCount)
	assert.Contains(t, []string(outcome.Fusion.DominantFactors), "elevated sea level")

	// high risk continuous prediction raises the erosion alert
	require.Len(t, outcome.Alerts, 1)
	assert.Equal(t, models.AlertErosionPredicted, outcome.Alerts[0].Kind)
	assert.Equal(t, models.SeverityAlert, outcome.Alerts[0].Severity)
}

func TestAnalyzeZoneWindowBounds(t *testing.T) {
	repo := newFakeRepo()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC))
	svc := newAnalysisService(repo, &fakeNotifier{}, clock)

	zone := stageZone(t, repo)
	now := clock.Now().UTC()
	start := now.Add(-2 * time.Hour)

	// start is inclusive, end is exclusive
	repo.readings[zone.ID] = []fusion.ReadingWithKind{
		reading(models.SensorSeaLevel, 1.0, start),
		reading(models.SensorSeaLevel, 1.0, now.Add(-time.Hour)),
		reading(models.SensorSeaLevel, 1.0, now),
	}
	repo.contextEvs[zone.ID] = []models.ExternalEvent{
		{Intensity: 80, OccurredAt: start},
		{Intensity: 80, OccurredAt: now},
	}

	outcome, err := svc.AnalyzeZone(context.Background(), zone.ID, 2*time.Hour)
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.Fusion.ReadingCount)
	assert.Equal(t, 1, outcome.Fusion.EventCount)
}

func TestProcessPendingEvents(t *testing.T) {
	repo := newFakeRepo()
	clock := clockwork.NewFakeClock()
	svc := newAnalysisService(repo, &fakeNotifier{}, clock)

	zone := stageZone(t, repo)
	for i := 0; i < 3; i++ {
		event := &models.ExternalEvent{
			ZoneID:     zone.ID,
			Kind:       models.EventStorm,
			Intensity:  55,
			OccurredAt: clock.Now(),
			Valid:      true,
		}
		require.NoError(t, repo.CreateExternalEvent(context.Background(), event))
	}

	processed, err := svc.ProcessPendingEvents(context.Background(), 100)
	require.NoError(t, err)
	assert.Equal(t, 3, processed)

	remaining, err := repo.ListUnprocessedEvents(context.Background(), 100)
	require.NoError(t, err)
	assert.Empty(t, remaining)
}
