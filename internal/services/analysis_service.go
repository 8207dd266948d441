package services

import (
	"context"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"

	"erosion-platform/internal/fusion"
	"erosion-platform/internal/models"
	"erosion-platform/internal/notify"
	"erosion-platform/internal/repository"
	"erosion-platform/pkg/logging"
	"erosion-platform/pkg/metrics"
)

// eventWindow bounds the reading and context lookup around a trigger
// event on both sides.
const eventWindow = 7 * 24 * time.Hour

// AnalysisService runs the fusion pipeline for events and zones
type AnalysisService struct {
	repo     repository.ErosionRepository
	notifier notify.Notifier
	clock    clockwork.Clock
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(
	repo repository.ErosionRepository,
	notifier notify.Notifier,
	clock clockwork.Clock,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *AnalysisService {
	return &AnalysisService{
		repo:     repo,
		notifier: notifier,
		clock:    clock,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// AnalysisOutcome bundles everything one pipeline run produced
type AnalysisOutcome struct {
	Fusion     *models.FusionResult `json:"fusion"`
	Prediction *models.Prediction   `json:"prediction"`
	Alerts     []*models.Alert      `json:"alerts"`
}

// AnalyzeEvent runs the event-anchored pipeline for one external event.
// The analysis window spans seven days on each side of the event.
func (s *AnalysisService) AnalyzeEvent(ctx context.Context, eventID int64) (*AnalysisOutcome, error) {
	event, err := s.repo.GetExternalEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.Valid {
		return nil, fmt.Errorf("event %d is not valid for analysis", eventID)
	}

	s.logger.Info(ctx, "[ANALYSIS_START] Event-anchored analysis starting", logging.Fields{
		"event_id":  event.ID,
		"zone_id":   event.ZoneID,
		"kind":      event.Kind,
		"intensity": event.Intensity,
	})

	start := event.OccurredAt.Add(-eventWindow)
	end := event.OccurredAt.Add(eventWindow)

	outcome, err := s.run(ctx, fusion.EventAnchored, event.ZoneID, event, start, end)
	if err != nil {
		return nil, err
	}

	if err := s.repo.MarkEventProcessed(ctx, event.ID); err != nil {
		s.logger.Error(ctx, "[ANALYSIS_MARK_ERROR] Failed to mark event processed", logging.Fields{
			"event_id": event.ID,
		}, err)
	}

	return outcome, nil
}

// AnalyzeZone runs the continuous pipeline for one zone over the given
// lookback window ending now.
func (s *AnalysisService) AnalyzeZone(ctx context.Context, zoneID int64, lookback time.Duration) (*AnalysisOutcome, error) {
	if _, err := s.repo.GetZone(ctx, zoneID); err != nil {
		return nil, err
	}

	end := s.clock.Now().UTC()
	start := end.Add(-lookback)

	s.logger.Info(ctx, "[ANALYSIS_START] Continuous analysis starting", logging.Fields{
		"zone_id":      zoneID,
		"period_start": start,
		"period_end":   end,
	})

	return s.run(ctx, fusion.Continuous, zoneID, nil, start, end)
}

// run executes the shared pipeline: gather, score, predict, alert.
func (s *AnalysisService) run(
	ctx context.Context,
	variant fusion.PipelineVariant,
	zoneID int64,
	trigger *models.ExternalEvent,
	start, end time.Time,
) (*AnalysisOutcome, error) {
	timer := s.metrics.NewTimer(s.metrics.FusionDuration)
	defer timer.ObserveDuration()

	readings, err := s.repo.GetReadingsInWindow(ctx, zoneID, start, end)
	if err != nil {
		s.metrics.RecordFusionRun(variant.String(), "error")
		return nil, fmt.Errorf("failed to gather readings: %w", err)
	}

	events, err := s.repo.GetEventsInWindow(ctx, zoneID, start, end)
	if err != nil {
		s.metrics.RecordFusionRun(variant.String(), "error")
		return nil, fmt.Errorf("failed to gather events: %w", err)
	}

	history, err := s.repo.ListHistory(ctx, zoneID, 12)
	if err != nil {
		s.metrics.RecordFusionRun(variant.String(), "error")
		return nil, fmt.Errorf("failed to gather history: %w", err)
	}

	in := fusion.Input{
		TriggerEvent: trigger,
		Readings:     readings,
		Events:       events,
		History:      history,
	}

	result := &models.FusionResult{
		ZoneID:      zoneID,
		PeriodStart: start,
		PeriodEnd:   end,
		Status:      models.FusionPending,
		CreatedAt:   s.clock.Now().UTC(),
	}
	if trigger != nil {
		result.EventID = &trigger.ID
	}
	if err := s.repo.CreateFusionResult(ctx, result); err != nil {
		s.metrics.RecordFusionRun(variant.String(), "error")
		return nil, err
	}

	stats := fusion.AggregateReadings(readings)
	scores := fusion.Score(in, stats)
	probability := fusion.Probability(scores.Composite)

	now := s.clock.Now().UTC()
	result.ReadingCount = len(readings)
	result.EventCount = len(events)
	result.Score = scores.Composite
	result.Probability = probability
	result.DominantFactors = fusion.DominantFactors(in, stats)
	result.Status = models.FusionComplete
	result.CompletedAt = &now
	if err := s.repo.CompleteFusionResult(ctx, result); err != nil {
		s.metrics.RecordFusionRun(variant.String(), "error")
		return nil, err
	}

	outcome := fusion.Predict(variant, scores, probability, stats)

	pred := &models.Prediction{
		ZoneID:           zoneID,
		FusionID:         result.ID,
		ErosionPredicted: outcome.ErosionPredicted,
		RiskLevel:        outcome.RiskLevel,
		ConfidencePct:    outcome.ConfidencePct,
		RatePerYearM:     outcome.RatePerYearM,
		HorizonDays:      fusion.HorizonDays,
		EventFactor:      outcome.EventFactor,
		SensorFactor:     outcome.SensorFactor,
		HistoryFactor:    outcome.HistoryFactor,
		Recommendations:  outcome.Recommendations,
		UrgentActions:    outcome.UrgentActions,
		ModelUsed:        "fusion_" + variant.String(),
		CreatedAt:        s.clock.Now().UTC(),
	}
	if err := s.repo.CreatePrediction(ctx, pred); err != nil {
		s.metrics.RecordFusionRun(variant.String(), "error")
		return nil, err
	}
	s.metrics.PredictionsTotal.WithLabelValues(string(pred.RiskLevel)).Inc()

	alerts := fusion.DecideAlerts(zoneID, trigger, outcome)
	saved := make([]*models.Alert, 0, len(alerts))
	for i := range alerts {
		alert := alerts[i]
		alert.PredictionID = &pred.ID
		if trigger != nil {
			alert.EventID = &trigger.ID
		}
		alert.CreatedAt = s.clock.Now().UTC()
		if err := s.repo.CreateAlert(ctx, &alert); err != nil {
			s.logger.Error(ctx, "[ANALYSIS_ALERT_ERROR] Failed to save alert", logging.Fields{
				"zone_id": zoneID,
				"kind":    alert.Kind,
			}, err)
			continue
		}
		if err := s.notifier.Notify(ctx, &alert); err != nil {
			s.logger.Error(ctx, "[ANALYSIS_NOTIFY_ERROR] Failed to deliver alert", logging.Fields{
				"alert_id": alert.ID,
			}, err)
		}
		saved = append(saved, &alert)
	}

	s.metrics.RecordFusionRun(variant.String(), "success")
	s.metrics.FusionScore.Observe(scores.Composite)

	s.logger.Info(ctx, "[ANALYSIS_COMPLETE] Analysis pipeline completed", logging.Fields{
		"zone_id":     zoneID,
		"fusion_id":   result.ID,
		"score":       scores.Composite,
		"probability": probability,
		"risk_level":  pred.RiskLevel,
		"alerts":      len(saved),
	})

	return &AnalysisOutcome{
		Fusion:     result,
		Prediction: pred,
		Alerts:     saved,
	}, nil
}

// ProcessPendingEvents analyzes every unprocessed valid event. Used by
// the scheduler between continuous sweeps.
func (s *AnalysisService) ProcessPendingEvents(ctx context.Context, limit int) (int, error) {
	events, err := s.repo.ListUnprocessedEvents(ctx, limit)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, event := range events {
		if _, err := s.AnalyzeEvent(ctx, event.ID); err != nil {
			s.logger.Error(ctx, "[ANALYSIS_EVENT_ERROR] Failed to analyze event", logging.Fields{
				"event_id": event.ID,
			}, err)
			continue
		}
		processed++
	}
	return processed, nil
}
